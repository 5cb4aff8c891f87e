package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"gorm.io/gorm"
)

type SubscriptionRepo struct {
	db *gorm.DB
}

func NewSubscriptionRepo(db *gorm.DB) domain.SubscriptionRepository {
	return &SubscriptionRepo{db: db}
}

func (r *SubscriptionRepo) conn(ctx context.Context) *gorm.DB {
	return gormdb.ExtractTx(ctx, r.db).WithContext(ctx)
}

func (r *SubscriptionRepo) Create(ctx context.Context, sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	return r.conn(ctx).Create(sub).Error
}

func (r *SubscriptionRepo) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *SubscriptionRepo) FindByOrderNo(ctx context.Context, orderNo string) (*domain.Subscription, error) {
	return r.first(ctx, "merchant_order_no = ?", orderNo)
}

func (r *SubscriptionRepo) first(ctx context.Context, query string, arg any) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.conn(ctx).Where(query, arg).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id").
		Find(&subs).Error
	return subs, err
}

// Update is a compare-and-swap on the version column.
func (r *SubscriptionRepo) Update(ctx context.Context, sub *domain.Subscription) error {
	expected := sub.Version
	sub.Version = expected + 1

	result := r.conn(ctx).
		Model(sub).
		Where("version = ?", expected).
		Select("*").
		Omit("id", "created_at").
		Updates(sub)
	if result.Error != nil {
		sub.Version = expected
		return result.Error
	}
	if result.RowsAffected == 0 {
		sub.Version = expected
		return domain.ErrStaleSubscription
	}
	return nil
}

func (r *SubscriptionRepo) AddPayment(ctx context.Context, payment *domain.SubscriptionPayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	return r.conn(ctx).Create(payment).Error
}

func (r *SubscriptionRepo) AddStateLog(ctx context.Context, entry *domain.SubscriptionStateLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.conn(ctx).Create(entry).Error
}

func (r *SubscriptionRepo) ListStateLogs(ctx context.Context, subscriptionID string) ([]domain.SubscriptionStateLog, error) {
	var entries []domain.SubscriptionStateLog
	err := r.conn(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at, id").
		Find(&entries).Error
	return entries, err
}
