package ratelimit

import (
	"context"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/domain"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.uber.org/zap"
)

type Endpoint string

const (
	EndpointPayment      Endpoint = "payment"
	EndpointWebhook      Endpoint = "webhook"
	EndpointQuery        Endpoint = "query"
	EndpointSubscription Endpoint = "subscription"
)

type Policy struct {
	Limit  int
	Window time.Duration
}

// DefaultPolicy applies to endpoints without an explicit policy.
var DefaultPolicy = Policy{Limit: 10, Window: time.Minute}

func DefaultPolicies() map[Endpoint]Policy {
	return map[Endpoint]Policy{
		EndpointPayment:      {Limit: 5, Window: time.Minute},
		EndpointWebhook:      {Limit: 100, Window: time.Minute},
		EndpointQuery:        {Limit: 30, Window: time.Minute},
		EndpointSubscription: {Limit: 3, Window: time.Minute},
	}
}

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Config struct {
	Policies map[Endpoint]Policy
	Store    Store
	// Recorder mirrors every window into the database when set.
	Recorder domain.RateLimitRepository
	Now      func() time.Time
}

type Limiter struct {
	policies map[Endpoint]Policy
	store    Store
	fallback *MemoryStore
	recorder domain.RateLimitRepository
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func New(cfg Config, log *zap.Logger, m *metrics.Metrics) *Limiter {
	policies := cfg.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}
	fallback := NewMemoryStore()
	store := cfg.Store
	if store == nil {
		store = fallback
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Limiter{
		policies: policies,
		store:    store,
		fallback: fallback,
		recorder: cfg.Recorder,
		now:      now,
		log:      log,
		metrics:  m,
	}
}

func (l *Limiter) Policy(endpoint Endpoint) Policy {
	if p, ok := l.policies[endpoint]; ok {
		return p
	}
	return DefaultPolicy
}

// Allow counts one request for identifier on endpoint. A shared store that
// cannot be reached degrades to the in-process store.
func (l *Limiter) Allow(ctx context.Context, identifier string, endpoint Endpoint) (Decision, error) {
	policy := l.Policy(endpoint)
	key := identifier + ":" + string(endpoint)
	now := l.now()

	w, err := l.store.Hit(ctx, key, policy.Window, now)
	if err != nil {
		l.log.Warn("rate limit store unavailable, using local window",
			zap.String("endpoint", string(endpoint)),
			zap.Error(err),
		)
		w, err = l.fallback.Hit(ctx, key, policy.Window, now)
		if err != nil {
			return Decision{}, err
		}
	}

	decision := Decision{
		Allowed:   w.Count <= policy.Limit,
		Limit:     policy.Limit,
		Remaining: max(0, policy.Limit-w.Count),
		ResetAt:   w.ResetAt,
	}

	if !decision.Allowed && l.metrics != nil {
		l.metrics.RateLimitRejections.WithLabelValues(string(endpoint)).Inc()
	}
	l.record(ctx, identifier, endpoint, w, now)
	return decision, nil
}

func (l *Limiter) record(ctx context.Context, identifier string, endpoint Endpoint, w Window, now time.Time) {
	if l.recorder == nil {
		return
	}
	err := l.recorder.Upsert(ctx, &domain.RateLimitWindow{
		Identifier:    identifier,
		Endpoint:      string(endpoint),
		Count:         w.Count,
		WindowResetAt: w.ResetAt,
		UpdatedAt:     now,
	})
	if err != nil {
		l.log.Warn("failed to persist rate limit window", zap.String("endpoint", string(endpoint)), zap.Error(err))
	}
}

func (l *Limiter) Reset(ctx context.Context, identifier string, endpoint Endpoint) error {
	key := identifier + ":" + string(endpoint)
	_ = l.fallback.Reset(ctx, key)
	return l.store.Reset(ctx, key)
}

func (l *Limiter) Stats(ctx context.Context) (Stats, error) {
	return l.store.Stats(ctx, l.now())
}

// Sweep evicts expired windows. Expiry is also checked on every Hit, so a
// skipped sweep never lets a request through.
func (l *Limiter) Sweep(ctx context.Context) int {
	now := l.now()
	removed, err := l.store.Sweep(ctx, now)
	if err != nil {
		l.log.Warn("rate limit sweep failed", zap.Error(err))
	}
	if l.store != Store(l.fallback) {
		n, _ := l.fallback.Sweep(ctx, now)
		removed += n
	}
	if l.recorder != nil {
		if _, err := l.recorder.DeleteExpired(ctx, now); err != nil {
			l.log.Warn("failed to purge persisted rate limit windows", zap.Error(err))
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (l *Limiter) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Sweep(ctx); removed > 0 {
					l.log.Debug("swept rate limit windows", zap.Int("removed", removed))
				}
			}
		}
	}()
}
