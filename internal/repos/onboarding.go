package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

// Every write here is an upsert keyed by user_id, so two CLI retries racing
// each other converge on one row instead of duplicating or losing updates.
type OnboardingRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.OnboardingState, error)
	UpsertCliLogin(ctx context.Context, tx *gorm.DB, userID uuid.UUID, version, osName, arch string, at time.Time) error
	UpsertClusterInit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error
	UpsertCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error
	UpsertSkipped(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error
}

type onboardingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOnboardingRepo(db *gorm.DB, baseLog *logger.Logger) OnboardingRepo {
	return &onboardingRepo{db: db, log: baseLog.With("repo", "OnboardingRepo")}
}

func (r *onboardingRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.OnboardingState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var state types.OnboardingState
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *onboardingRepo) upsert(ctx context.Context, tx *gorm.DB, row *types.OnboardingState, assignments map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	assignments["updated_at"] = time.Now()
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(row).Error
}

func (r *onboardingRepo) UpsertCliLogin(ctx context.Context, tx *gorm.DB, userID uuid.UUID, version, osName, arch string, at time.Time) error {
	row := &types.OnboardingState{
		UserID:             userID,
		CliAuthenticated:   true,
		CliAuthenticatedAt: &at,
		CliVersion:         version,
		CliOS:              osName,
		CliArch:            arch,
	}
	return r.upsert(ctx, tx, row, map[string]interface{}{
		"cli_authenticated":    true,
		"cli_authenticated_at": at,
		"cli_version":          version,
		"cli_os":               osName,
		"cli_arch":             arch,
	})
}

func (r *onboardingRepo) UpsertClusterInit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	row := &types.OnboardingState{
		UserID:               userID,
		ClusterInitialized:   true,
		ClusterInitializedAt: &at,
	}
	return r.upsert(ctx, tx, row, map[string]interface{}{
		"cluster_initialized":    true,
		"cluster_initialized_at": at,
	})
}

func (r *onboardingRepo) UpsertCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	row := &types.OnboardingState{UserID: userID, CompletedAt: &at}
	return r.upsert(ctx, tx, row, map[string]interface{}{
		"completed_at": at,
	})
}

func (r *onboardingRepo) UpsertSkipped(ctx context.Context, tx *gorm.DB, userID uuid.UUID, at time.Time) error {
	row := &types.OnboardingState{UserID: userID, SkippedAt: &at}
	return r.upsert(ctx, tx, row, map[string]interface{}{
		"skipped_at": at,
	})
}
