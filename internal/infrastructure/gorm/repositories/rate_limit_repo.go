package repositories

import (
	"context"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RateLimitRepo struct {
	db *gorm.DB
}

func NewRateLimitRepo(db *gorm.DB) domain.RateLimitRepository {
	return &RateLimitRepo{db: db}
}

func (r *RateLimitRepo) Upsert(ctx context.Context, window *domain.RateLimitWindow) error {
	return gormdb.ExtractTx(ctx, r.db).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identifier"}, {Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"count", "window_reset_at", "updated_at"}),
		}).
		Create(window).Error
}

func (r *RateLimitRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := gormdb.ExtractTx(ctx, r.db).WithContext(ctx).
		Where("window_reset_at <= ?", now).
		Delete(&domain.RateLimitWindow{})
	return result.RowsAffected, result.Error
}
