package migrations

import (
	"github.com/vibepay/newebpay-bridge/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "005_create_subscription_state_logs",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.SubscriptionStateLog{})
		},
	})
}
