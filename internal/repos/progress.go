package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

type ProgressRepo interface {
	GetByUserAndChallenge(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string) (*types.ChallengeProgress, error)
	// CreateIfAbsent returns the existing row untouched when one already
	// exists, which is what makes repeated CLI `start` calls safe to retry.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.ChallengeProgress) (*types.ChallengeProgress, error)
	MarkCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string, at time.Time) error
	Restart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string, at time.Time) error
	Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string) error
	CountByUserAndStatus(ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string) (int64, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

func (r *progressRepo) GetByUserAndChallenge(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string) (*types.ChallengeProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.ChallengeProgress
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND challenge_slug = ?", userID, slug).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *progressRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.ChallengeProgress) (*types.ChallengeProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND challenge_slug = ?", row.UserID, row.ChallengeSlug).
		Attrs(row).
		FirstOrCreate(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *progressRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ChallengeProgress{}).
		Where("user_id = ? AND challenge_slug = ?", userID, slug).
		Updates(map[string]interface{}{
			"status":       types.ProgressCompleted,
			"completed_at": at,
		}).Error
}

func (r *progressRepo) Restart(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ChallengeProgress{}).
		Where("user_id = ? AND challenge_slug = ?", userID, slug).
		Updates(map[string]interface{}{
			"status":       types.ProgressInProgress,
			"started_at":   at,
			"completed_at": nil,
		}).Error
}

func (r *progressRepo) Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slug string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Where("user_id = ? AND challenge_slug = ?", userID, slug).
		Delete(&types.ChallengeProgress{}).Error
}

func (r *progressRepo) CountByUserAndStatus(ctx context.Context, tx *gorm.DB, userID uuid.UUID, status string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ChallengeProgress{}).
		Where("user_id = ? AND status = ?", userID, status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *progressRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ChallengeProgress{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
