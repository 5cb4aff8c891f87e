package use_cases

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/application/idempotency"
	"github.com/vibepay/newebpay-bridge/internal/application/ipguard"
	"github.com/vibepay/newebpay-bridge/internal/application/ratelimit"
	"github.com/vibepay/newebpay-bridge/internal/application/subscription"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm/repositories"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"github.com/vibepay/newebpay-bridge/internal/utils/config"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Container struct {
	CreatePayment       *CreatePaymentUseCase
	CreateSubscription  *CreateSubscriptionUseCase
	HandlePaymentNotify *HandlePaymentNotifyUseCase
	HandlePeriodNotify  *HandlePeriodNotifyUseCase
	ManageSubscription  *ManageSubscriptionUseCase
	ReconcileOrder      *ReconcileOrderUseCase
	GetOrder            *GetOrderUseCase
	GetSubscription     *GetSubscriptionUseCase
	ListSubscriptions   *ListSubscriptionsUseCase
	GetByIdempotencyKey *GetByIdempotencyKeyUseCase

	Idempotency *idempotency.Service
	Limiter     *ratelimit.Limiter
	Guard       *ipguard.Guard
	Gateway     domain.Gateway
	Vault       *newebpay.Vault

	closers []io.Closer
}

// Options overrides collaborators that tests and the sandbox need to control.
type Options struct {
	Gateway domain.Gateway
	Store   ratelimit.Store
	Now     func() time.Time
}

// NewContainer wires every use case and starts the background sweepers; they
// stop when ctx is cancelled.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config, log *zap.Logger, m *metrics.Metrics, opts Options) (*Container, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	vault, err := newebpay.NewVault(newebpay.VaultConfig{
		MerchantID: cfg.MerchantID,
		HashKey:    cfg.HashKey,
		HashIV:     cfg.HashIV,
		Version:    cfg.Version,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}
	endpoints := newebpay.NewEndpoints(cfg.IsProduction)

	gateway := opts.Gateway
	if gateway == nil {
		if cfg.GatewayMode == config.ModeSimulator {
			log.Warn("processor simulator enabled, no real charges will be made")
			gateway = newebpay.NewSimulator(vault)
		} else {
			gateway = newebpay.NewClient(vault, endpoints, cfg.GatewayTimeout, log, m)
		}
	}

	var closers []io.Closer
	store := opts.Store
	if store == nil && cfg.RedisAddr != "" {
		client, err := ratelimit.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis unavailable, rate limiting stays in process", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			store = ratelimit.NewRedisStore(client, "newebpay-bridge:rl:")
			closers = append(closers, client)
		}
	}
	var recorder domain.RateLimitRepository
	if cfg.RateLimitPersist {
		recorder = repositories.NewRateLimitRepo(db)
	}
	limiter := ratelimit.New(ratelimit.Config{
		Policies: policiesFrom(cfg),
		Store:    store,
		Recorder: recorder,
		Now:      now,
	}, log, m)

	guard := ipguard.New(ipguard.Options{
		AllowTestSources: cfg.AllowTestSources,
		Extra:            cfg.ExtraWebhookIPs,
	})

	tx := gormdb.NewTransactionManager(db)
	idempotencyRepo := repositories.NewIdempotencyRepo(db)
	orderRepo := repositories.NewOrderRepo(db)
	subscriptionRepo := repositories.NewSubscriptionRepo(db)
	webhookLogRepo := repositories.NewWebhookLogRepo(db)

	idem := idempotency.NewService(idempotencyRepo, idempotency.Config{
		TTL:         cfg.IdempotencyKeyTTL,
		LockTimeout: cfg.IdempotencyLockTimeout,
		Now:         now,
	}, log, m)

	callbacks := Callbacks{
		ReturnURL:       cfg.ReturnURL,
		NotifyURL:       cfg.NotifyURL,
		ClientBackURL:   cfg.ClientBackURL,
		PeriodReturnURL: cfg.PeriodReturnURL,
		PeriodNotifyURL: cfg.PeriodNotifyURL,
	}
	co := &checkout{tx: tx, idem: idem, vault: vault, endpoints: endpoints, log: log, metrics: m}
	n := &notifier{
		guard:          guard,
		limiter:        limiter,
		vault:          vault,
		idem:           idem,
		tx:             tx,
		webhookLogRepo: webhookLogRepo,
		log:            log,
		metrics:        m,
	}
	t := &transitioner{
		machine:          subscription.NewMachine(cfg.SubscriptionMaxRetries),
		subscriptionRepo: subscriptionRepo,
		log:              log,
		metrics:          m,
	}

	if cfg.CleanupInterval > 0 {
		idem.StartCleanup(ctx, cfg.CleanupInterval)
	}
	if cfg.RateLimitSweep > 0 {
		limiter.StartSweeper(ctx, cfg.RateLimitSweep)
	}

	return &Container{
		CreatePayment:       NewCreatePaymentUseCase(co, orderRepo, limiter, callbacks, now),
		CreateSubscription:  NewCreateSubscriptionUseCase(co, subscriptionRepo, limiter, callbacks),
		HandlePaymentNotify: NewHandlePaymentNotifyUseCase(n, orderRepo, log),
		HandlePeriodNotify:  NewHandlePeriodNotifyUseCase(n, t, subscriptionRepo, log, now),
		ManageSubscription:  NewManageSubscriptionUseCase(gateway, t, subscriptionRepo, tx, limiter, log),
		ReconcileOrder:      NewReconcileOrderUseCase(gateway, orderRepo, log),
		GetOrder:            NewGetOrderUseCase(orderRepo, log),
		GetSubscription:     NewGetSubscriptionUseCase(subscriptionRepo, log),
		ListSubscriptions:   NewListSubscriptionsUseCase(subscriptionRepo, log),
		GetByIdempotencyKey: NewGetByIdempotencyKeyUseCase(idem, orderRepo, subscriptionRepo, log),

		Idempotency: idem,
		Limiter:     limiter,
		Guard:       guard,
		Gateway:     gateway,
		Vault:       vault,

		closers: closers,
	}, nil
}

// Close releases the connections the container opened itself.
func (c *Container) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func policiesFrom(cfg *config.Config) map[ratelimit.Endpoint]ratelimit.Policy {
	policies := ratelimit.DefaultPolicies()
	limits := map[ratelimit.Endpoint]int{
		ratelimit.EndpointPayment:      cfg.RateLimitPayment,
		ratelimit.EndpointWebhook:      cfg.RateLimitWebhook,
		ratelimit.EndpointQuery:        cfg.RateLimitQuery,
		ratelimit.EndpointSubscription: cfg.RateLimitSubscription,
	}
	for endpoint, limit := range limits {
		p := policies[endpoint]
		if limit > 0 {
			p.Limit = limit
		}
		if cfg.RateLimitWindow > 0 {
			p.Window = cfg.RateLimitWindow
		}
		policies[endpoint] = p
	}
	return policies
}
