package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibepay/newebpay-bridge/internal/application/idempotency"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm/repositories"
	"go.uber.org/zap"
)

func newPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired idempotency records and rate limit windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, db, err := openStore()
			if err != nil {
				return err
			}
			defer closeStore(db, log)
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			idem := idempotency.NewService(repositories.NewIdempotencyRepo(db), idempotency.Config{TTL: cfg.IdempotencyKeyTTL}, log, nil)
			records, err := idem.PurgeExpired(ctx)
			if err != nil {
				return fmt.Errorf("purge idempotency records: %w", err)
			}
			windows, err := repositories.NewRateLimitRepo(db).DeleteExpired(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("purge rate limit windows: %w", err)
			}

			log.Info("purge finished", zap.Int64("idempotency_records", records), zap.Int64("rate_limit_windows", windows))
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d idempotency records and %d rate limit windows\n", records, windows)
			return nil
		},
	}
}
