package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/vibepay/newebpay-bridge/internal/application/use_cases"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	echoserver "github.com/vibepay/newebpay-bridge/internal/presentation/echo"
	"github.com/vibepay/newebpay-bridge/internal/utils/config"
	"github.com/vibepay/newebpay-bridge/internal/utils/logger"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"github.com/vibepay/newebpay-bridge/internal/utils/telemetry"
	"go.uber.org/zap"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook receiver",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("configuration loaded", zap.Any("config", cfg.Redacted()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, err := gormdb.NewConnection(cfg)
	if err != nil {
		return err
	}
	defer closeStore(db, log)
	if err := gormdb.RunMigrations(db, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	container, err := use_cases.NewContainer(ctx, db, cfg, log, m, use_cases.Options{})
	if err != nil {
		return fmt.Errorf("wire use cases: %w", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Warn("container close", zap.Error(err))
		}
	}()

	server := echoserver.NewServer(cfg, echoserver.Dependencies{
		Container:   container,
		DB:          db,
		Log:         log,
		Metrics:     m,
		Gatherer:    reg,
		ServiceName: cfg.ServiceName,
	})

	if err := <-server.Start(ctx); err != nil {
		log.Error("server error", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
