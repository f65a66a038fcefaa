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

type DemoConversionRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, token string) (*types.DemoConversion, error)
	// Upsert creates the durable mirror of an ephemeral session if it does
	// not exist yet; an existing row is left untouched.
	Upsert(ctx context.Context, tx *gorm.DB, row *types.DemoConversion) error
	MarkCompleted(ctx context.Context, tx *gorm.DB, token string, at time.Time) error
	// MarkConverted records the conversion once and reports whether this call
	// was the one that converted the row. Rows already converted keep their
	// original converted_at and user.
	MarkConverted(ctx context.Context, tx *gorm.DB, token string, userID uuid.UUID, at time.Time) (bool, error)
}

type demoConversionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDemoConversionRepo(db *gorm.DB, baseLog *logger.Logger) DemoConversionRepo {
	return &demoConversionRepo{db: db, log: baseLog.With("repo", "DemoConversionRepo")}
}

func (r *demoConversionRepo) GetByID(ctx context.Context, tx *gorm.DB, token string) (*types.DemoConversion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.DemoConversion
	if err := transaction.WithContext(ctx).
		Where("id = ?", token).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *demoConversionRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.DemoConversion) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(row).Error
}

func (r *demoConversionRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, token string, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.DemoConversion{}).
		Where("id = ? AND completed_at IS NULL", token).
		Update("completed_at", at).Error
}

func (r *demoConversionRepo) MarkConverted(ctx context.Context, tx *gorm.DB, token string, userID uuid.UUID, at time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.DemoConversion{}).
		Where("id = ? AND converted_at IS NULL", token).
		Updates(map[string]interface{}{
			"converted_at":      at,
			"converted_user_id": userID,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
