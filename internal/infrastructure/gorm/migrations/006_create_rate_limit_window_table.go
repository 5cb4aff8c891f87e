package migrations

import (
	"github.com/vibepay/newebpay-bridge/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "006_create_rate_limit_windows",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.RateLimitWindow{})
		},
	})
}
