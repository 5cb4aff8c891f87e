package migrations

import (
	"github.com/vibepay/newebpay-bridge/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "002_create_idempotency_records",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&domain.IdempotencyRecord{})
		},
	})
}
