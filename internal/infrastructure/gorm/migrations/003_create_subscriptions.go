package migrations

import (
	"github.com/vibepay/newebpay-bridge/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "003_create_subscriptions",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.Subscription{})
		},
	})
}
