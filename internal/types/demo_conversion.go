package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DemoConversion mirrors an ephemeral demo session for long-term analytics.
// The primary key is the session token itself. Conversion happens exactly
// once; re-linking the same token is a no-op success.
type DemoConversion struct {
	ID              string         `gorm:"primaryKey;column:id" json:"id"`
	CompletedAt     *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ConvertedAt     *time.Time     `gorm:"column:converted_at" json:"converted_at,omitempty"`
	ConvertedUserID *uuid.UUID     `gorm:"type:uuid;column:converted_user_id;index" json:"converted_user_id,omitempty"`
	Attribution     datatypes.JSON `gorm:"type:jsonb;column:attribution" json:"attribution,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (DemoConversion) TableName() string { return "demo_conversion" }
