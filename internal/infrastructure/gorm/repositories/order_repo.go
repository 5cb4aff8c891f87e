package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"gorm.io/gorm"
)

type OrderRepo struct {
	db *gorm.DB
}

func NewOrderRepo(db *gorm.DB) domain.OrderRepository {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) conn(ctx context.Context) *gorm.DB {
	return gormdb.ExtractTx(ctx, r.db).WithContext(ctx)
}

func (r *OrderRepo) Create(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	return r.conn(ctx).Create(order).Error
}

func (r *OrderRepo) FindByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	var order domain.Order
	err := r.conn(ctx).Where("merchant_order_no = ?", orderNo).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) Save(ctx context.Context, order *domain.Order) error {
	return r.conn(ctx).Save(order).Error
}
