package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kubeasy-dev/kubeasy-backend/internal/logger"
	"github.com/kubeasy-dev/kubeasy-backend/internal/types"
)

// XpRepo only ever appends. Totals are derived with a SUM so "has XP already
// been granted" never depends on a mutable counter.
type XpRepo interface {
	Append(ctx context.Context, tx *gorm.DB, row *types.XpTransaction) error
	TotalByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error)
}

type xpRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewXpRepo(db *gorm.DB, baseLog *logger.Logger) XpRepo {
	return &xpRepo{db: db, log: baseLog.With("repo", "XpRepo")}
}

func (r *xpRepo) Append(ctx context.Context, tx *gorm.DB, row *types.XpTransaction) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).Create(row).Error
}

func (r *xpRepo) TotalByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total *int
	if err := transaction.WithContext(ctx).
		Model(&types.XpTransaction{}).
		Select("SUM(xp_amount)").
		Where("user_id = ?", userID).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
