package gormdb

import (
	"github.com/google/uuid"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm/migrations"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestConnection opens a private in-memory database with every migration applied.
// All pooled connections share the same database, so concurrent callers see one store.
func NewTestConnection() (*gorm.DB, error) {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migrations.Run(db, zap.NewNop()); err != nil {
		return nil, err
	}
	return db, nil
}
