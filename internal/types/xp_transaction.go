package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	XpActionChallengeCompleted = "challenge_completed"
	XpActionOnboardingComplete = "onboarding_completed"
)

// XpTransaction is append-only. Total XP is always derived by summing the
// ledger, never stored on the user row.
type XpTransaction struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Action        string         `gorm:"column:action;not null;index" json:"action"`
	XpAmount      int            `gorm:"column:xp_amount;not null" json:"xp_amount"`
	ChallengeSlug *string        `gorm:"column:challenge_slug;index" json:"challenge_slug,omitempty"`
	Description   string         `gorm:"column:description" json:"description"`
	Detail        datatypes.JSON `gorm:"type:jsonb;column:detail" json:"detail,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (XpTransaction) TableName() string { return "xp_transaction" }
