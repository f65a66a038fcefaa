package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProgressNotStarted = "not_started"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

// ChallengeProgress is the one durable row per (user, challenge).
type ChallengeProgress struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_challenge,unique" json:"user_id"`
	User          *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ChallengeSlug string     `gorm:"column:challenge_slug;not null;index:idx_user_challenge,unique" json:"challenge_slug"`
	Status        string     `gorm:"column:status;not null;default:'in_progress'" json:"status"`
	StartedAt     time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ChallengeProgress) TableName() string { return "challenge_progress" }
