package migrations

import (
	"github.com/vibepay/newebpay-bridge/internal/domain"
	"gorm.io/gorm"
)

func init() {
	Register(Migration{
		ID: "008_add_idempotency_lock_lease",
		Migrate: func(tx *gorm.DB) error {
			m := tx.Migrator()
			if !m.HasColumn(&domain.IdempotencyRecord{}, "LockedAt") {
				if err := m.AddColumn(&domain.IdempotencyRecord{}, "LockedAt"); err != nil {
					return err
				}
			}
			if !m.HasIndex(&domain.IdempotencyRecord{}, "LockedAt") {
				return m.CreateIndex(&domain.IdempotencyRecord{}, "LockedAt")
			}
			return nil
		},
	})
}
