package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openStatuses = []domain.IdempotencyStatus{
	domain.IdempotencyStatusPending,
	domain.IdempotencyStatusProcessing,
}

type IdempotencyRepo struct {
	db *gorm.DB
}

func NewIdempotencyRepo(db *gorm.DB) domain.IdempotencyRepository {
	return &IdempotencyRepo{db: db}
}

func (r *IdempotencyRepo) conn(ctx context.Context) *gorm.DB {
	return gormdb.ExtractTx(ctx, r.db).WithContext(ctx)
}

// Insert is ON CONFLICT DO NOTHING over every unique constraint of the table
// (dedup key, order scope, reservation token).
func (r *IdempotencyRepo) Insert(ctx context.Context, record *domain.IdempotencyRecord) (bool, error) {
	result := r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *IdempotencyRepo) FindByKey(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	return r.first(ctx, "dedup_key = ?", key)
}

func (r *IdempotencyRepo) FindByOrderScope(ctx context.Context, scope string) (*domain.IdempotencyRecord, error) {
	return r.first(ctx, "order_scope = ?", scope)
}

func (r *IdempotencyRepo) first(ctx context.Context, query string, arg any) (*domain.IdempotencyRecord, error) {
	var record domain.IdempotencyRecord
	err := r.conn(ctx).Where(query, arg).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *IdempotencyRepo) Transition(ctx context.Context, token string, from []domain.IdempotencyStatus, to domain.IdempotencyStatus, body []byte, errMsg string) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if body != nil {
		updates["response_body"] = datatypes.JSON(body)
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}

	result := r.conn(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("reservation_token = ? AND status IN ?", token, from).
		Updates(updates)
	return result.RowsAffected == 1, result.Error
}

func (r *IdempotencyRepo) Lock(ctx context.Context, token string, at time.Time) (bool, error) {
	result := r.conn(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("reservation_token = ? AND status = ?", token, domain.IdempotencyStatusPending).
		Updates(map[string]any{
			"status":     domain.IdempotencyStatusProcessing,
			"locked_at":  at,
			"updated_at": at,
		})
	return result.RowsAffected == 1, result.Error
}

// Reclaim is a single conditional update, so of several callers racing for the
// same stale record only one sees a row affected.
func (r *IdempotencyRepo) Reclaim(ctx context.Context, key, token string, staleBefore, now time.Time) (bool, error) {
	result := r.conn(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("dedup_key = ? AND status IN ? AND expires_at > ?", key, openStatuses, now).
		Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
		Updates(map[string]any{
			"reservation_token": token,
			"status":            domain.IdempotencyStatusPending,
			"locked_at":         now,
			"updated_at":        now,
		})
	return result.RowsAffected == 1, result.Error
}

func (r *IdempotencyRepo) DeleteByToken(ctx context.Context, token string, statuses []domain.IdempotencyStatus) (bool, error) {
	result := r.conn(ctx).
		Where("reservation_token = ? AND status IN ?", token, statuses).
		Delete(&domain.IdempotencyRecord{})
	return result.RowsAffected > 0, result.Error
}

// DeleteExpiredConflicts removes expired records that hold either the key or the order scope.
func (r *IdempotencyRepo) DeleteExpiredConflicts(ctx context.Context, key string, scope *string, now time.Time) (int64, error) {
	db := r.conn(ctx)
	holders := db.Where("dedup_key = ?", key)
	if scope != nil {
		holders = holders.Or("order_scope = ?", *scope)
	}

	result := db.Where("expires_at <= ?", now).Where(holders).Delete(&domain.IdempotencyRecord{})
	return result.RowsAffected, result.Error
}

func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.conn(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.IdempotencyRecord{})
	return result.RowsAffected, result.Error
}

func (r *IdempotencyRepo) CountStale(ctx context.Context, staleBefore, now time.Time) (int64, error) {
	var count int64
	err := r.conn(ctx).
		Model(&domain.IdempotencyRecord{}).
		Where("status IN ? AND expires_at > ?", openStatuses, now).
		Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
		Count(&count).Error
	return count, err
}

func (r *IdempotencyRepo) CountByStatus(ctx context.Context, now time.Time) (map[domain.IdempotencyStatus]int64, error) {
	var rows []struct {
		Status domain.IdempotencyStatus
		Count  int64
	}
	err := r.conn(ctx).
		Model(&domain.IdempotencyRecord{}).
		Select("status, COUNT(*) AS count").
		Where("expires_at > ?", now).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.IdempotencyStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
