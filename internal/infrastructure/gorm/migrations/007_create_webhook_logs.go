package migrations

import (
	"github.com/vibepay/newebpay-bridge/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "007_create_webhook_logs",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.WebhookLog{})
		},
	})
}
