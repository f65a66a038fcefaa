package types

import (
	"time"

	"github.com/google/uuid"
)

// OnboardingState holds the durable onboarding facts for one user. The wizard
// step shown to the browser is derived on read, never stored here.
type OnboardingState struct {
	ID                   uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	User                 *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	CliAuthenticated     bool       `gorm:"column:cli_authenticated;not null;default:false" json:"cli_authenticated"`
	CliAuthenticatedAt   *time.Time `gorm:"column:cli_authenticated_at" json:"cli_authenticated_at,omitempty"`
	CliVersion           string     `gorm:"column:cli_version" json:"cli_version,omitempty"`
	CliOS                string     `gorm:"column:cli_os" json:"cli_os,omitempty"`
	CliArch              string     `gorm:"column:cli_arch" json:"cli_arch,omitempty"`
	ClusterInitialized   bool       `gorm:"column:cluster_initialized;not null;default:false" json:"cluster_initialized"`
	ClusterInitializedAt *time.Time `gorm:"column:cluster_initialized_at" json:"cluster_initialized_at,omitempty"`
	CompletedAt          *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	SkippedAt            *time.Time `gorm:"column:skipped_at" json:"skipped_at,omitempty"`
	CreatedAt            time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (OnboardingState) TableName() string { return "onboarding_state" }
