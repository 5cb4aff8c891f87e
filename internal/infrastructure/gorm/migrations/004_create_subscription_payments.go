package migrations

import (
	"github.com/vibepay/newebpay-bridge/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "004_create_subscription_payments",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.SubscriptionPayment{})
		},
	})
}
