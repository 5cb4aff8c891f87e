package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"github.com/vibepay/newebpay-bridge/internal/utils/config"
	"github.com/vibepay/newebpay-bridge/internal/utils/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewRootCommand builds the binary's command tree. Running it without a
// subcommand serves the API.
func NewRootCommand(version string) *cobra.Command {
	serve := newServeCommand()

	root := &cobra.Command{
		Use:           "newebpay-bridge",
		Short:         "Bridge between the shop backend and the NewebPay gateway",
		Version:       version,
		RunE:          serve.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newPurgeCommand())
	return root
}

func Execute(version string) error {
	if err := NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// openStore loads configuration, the logger and a migrated database for the
// maintenance commands, which do not need merchant credentials.
func openStore() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := gormdb.NewConnection(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := gormdb.RunMigrations(db, log); err != nil {
		closeStore(db, log)
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, log, db, nil
}

func closeStore(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("closing database", zap.Error(err))
	}
}
