package migrations

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration struct {
	ID      string
	Migrate func(tx *gorm.DB) error
}

type MigrationRecord struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	MigrationID string `gorm:"uniqueIndex;not null"`
	CreatedAt   time.Time
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

var registry []Migration

func Register(m Migration) {
	registry = append(registry, m)
}

// Applied lists the migration ids already recorded, in application order.
func Applied(db *gorm.DB) ([]string, error) {
	var ids []string
	err := db.Model(&MigrationRecord{}).Order("id").Pluck("migration_id", &ids).Error
	return ids, err
}

// Run applies every registered migration that has not been recorded yet.
// Each migration runs in its own transaction together with its record.
func Run(db *gorm.DB, log *zap.Logger) error {
	if err := db.AutoMigrate(&MigrationRecord{}); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range registry {
		var count int64
		if err := db.Model(&MigrationRecord{}).Where("migration_id = ?", m.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("check migration %s: %w", m.ID, err)
		}
		if count > 0 {
			continue
		}

		log.Info("running migration", zap.String("migration", m.ID))
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Migrate(tx); err != nil {
				return err
			}
			return tx.Create(&MigrationRecord{MigrationID: m.ID}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", m.ID, err)
		}
		log.Info("completed migration", zap.String("migration", m.ID))
	}
	return nil
}
