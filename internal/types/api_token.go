package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApiToken is a durable CLI credential. Only the SHA-256 digest of the opaque
// token is stored; the plaintext is shown once at creation time.
type ApiToken struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User       *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Name       string         `gorm:"column:name;not null" json:"name"`
	Digest     string         `gorm:"column:digest;uniqueIndex;not null" json:"-"`
	LastUsedAt *time.Time     `gorm:"column:last_used_at" json:"last_used_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ApiToken) TableName() string { return "api_token" }
