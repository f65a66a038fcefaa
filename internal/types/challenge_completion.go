package types

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeCompletion is an append-only completion ledger. The unique index on
// (user_id, challenge_slug, completed_on) is the daily guard: a second winning
// submission for the same calendar day hits the constraint instead of granting
// XP twice, even under concurrent retries.
type ChallengeCompletion struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index:idx_user_challenge_day,unique" json:"user_id"`
	User          *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ChallengeSlug string    `gorm:"column:challenge_slug;not null;index:idx_user_challenge_day,unique" json:"challenge_slug"`
	CompletedOn   string    `gorm:"column:completed_on;type:date;not null;index:idx_user_challenge_day,unique" json:"completed_on"`
	CompletedAt   time.Time `gorm:"column:completed_at;not null" json:"completed_at"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ChallengeCompletion) TableName() string { return "challenge_completion" }

// CompletionDay formats t the way completed_on is stored.
func CompletionDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
