package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"gorm.io/gorm"
)

type WebhookLogRepo struct {
	db *gorm.DB
}

func NewWebhookLogRepo(db *gorm.DB) domain.WebhookLogRepository {
	return &WebhookLogRepo{db: db}
}

func (r *WebhookLogRepo) Create(ctx context.Context, entry *domain.WebhookLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return gormdb.ExtractTx(ctx, r.db).WithContext(ctx).Create(entry).Error
}
