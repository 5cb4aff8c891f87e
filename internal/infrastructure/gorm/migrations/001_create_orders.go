package migrations

import (
	"github.com/vibepay/newebpay-bridge/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "001_create_orders",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.Order{})
		},
	})
}
