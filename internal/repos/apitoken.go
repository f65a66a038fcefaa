package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

type ApiTokenRepo interface {
	GetByDigest(ctx context.Context, tx *gorm.DB, digest string) (*types.ApiToken, error)
	CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	TouchLastUsed(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID, at time.Time) error
}

type apiTokenRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApiTokenRepo(db *gorm.DB, baseLog *logger.Logger) ApiTokenRepo {
	return &apiTokenRepo{db: db, log: baseLog.With("repo", "ApiTokenRepo")}
}

func (r *apiTokenRepo) GetByDigest(ctx context.Context, tx *gorm.DB, digest string) (*types.ApiToken, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var token types.ApiToken
	if err := transaction.WithContext(ctx).
		Where("digest = ?", digest).
		First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *apiTokenRepo) CountByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.ApiToken{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *apiTokenRepo) TouchLastUsed(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.ApiToken{}).
		Where("id = ?", tokenID).
		Update("last_used_at", at).Error
}
