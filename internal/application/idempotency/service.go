package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.uber.org/zap"
)

const (
	DefaultTTL         = 24 * time.Hour
	DefaultLockTimeout = 5 * time.Minute

	maxKeyLength       = 191
	maxReserveAttempts = 3
)

type Request struct {
	DedupKey    string
	RequestType domain.RequestType
	OrderNo     string
	Amount      int64
	RequestHash string
}

// Check is the outcome of CheckAndReserve. Exactly one of Token (fresh
// reservation) or Duplicate is set.
type Check struct {
	Duplicate    bool
	Token        string
	Status       domain.IdempotencyStatus
	CachedResult []byte
	FailReason   string
}

// Err maps a duplicate that carries no reusable result to the error the
// caller should surface.
func (c *Check) Err() error {
	if !c.Duplicate {
		return nil
	}
	switch c.Status {
	case domain.IdempotencyStatusPending, domain.IdempotencyStatusProcessing:
		return apperrors.ErrRequestInFlight()
	case domain.IdempotencyStatusFailed:
		return apperrors.ErrPreviousAttemptFailed()
	}
	return nil
}

// Config.LockTimeout is how long an open reservation may go unsettled before
// another caller may take it over.
type Config struct {
	TTL         time.Duration
	LockTimeout time.Duration
	Now         func() time.Time
}

type Service struct {
	repo        domain.IdempotencyRepository
	ttl         time.Duration
	lockTimeout time.Duration
	now         func() time.Time
	log         *zap.Logger
	metrics     *metrics.Metrics
}

func NewService(repo domain.IdempotencyRepository, cfg Config, log *zap.Logger, m *metrics.Metrics) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, ttl: ttl, lockTimeout: lockTimeout, now: now, log: log, metrics: m}
}

// OrderScope is the per-order uniqueness slot held by order-creating requests.
// Notifications share their order number with the creating request, so they hold none.
func OrderScope(t domain.RequestType, orderNo string) *string {
	if !t.Creates() || orderNo == "" {
		return nil
	}
	s := string(t) + ":" + orderNo
	return &s
}

// CheckAndReserve relies on the store's unique constraints: under concurrent
// calls for one key exactly one caller gets a token.
func (s *Service) CheckAndReserve(ctx context.Context, req Request) (*Check, error) {
	if req.DedupKey == "" {
		return nil, apperrors.ErrInvalidPaymentRequest("dedup key is required")
	}
	if len(req.DedupKey) > maxKeyLength {
		return nil, apperrors.ErrIdempotencyKeyTooLong()
	}
	scope := OrderScope(req.RequestType, req.OrderNo)

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		now := s.now()
		record := &domain.IdempotencyRecord{
			DedupKey:         req.DedupKey,
			ReservationToken: uuid.NewString(),
			RequestType:      req.RequestType,
			MerchantOrderNo:  req.OrderNo,
			OrderScope:       scope,
			RequestHash:      req.RequestHash,
			Amount:           req.Amount,
			Status:           domain.IdempotencyStatusPending,
			CreatedAt:        now,
			UpdatedAt:        now,
			LockedAt:         &now,
			ExpiresAt:        now.Add(s.ttl),
		}

		inserted, err := s.repo.Insert(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("reserve %s: %w", req.DedupKey, err)
		}
		if inserted {
			s.count("reserved")
			return &Check{Token: record.ReservationToken, Status: record.Status}, nil
		}

		existing, err := s.conflicting(ctx, req.DedupKey, scope)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			continue
		}

		if !now.Before(existing.ExpiresAt) {
			removed, err := s.repo.DeleteExpiredConflicts(ctx, req.DedupKey, scope, now)
			if err != nil {
				return nil, fmt.Errorf("clear expired %s: %w", req.DedupKey, err)
			}
			s.log.Debug("cleared expired idempotency records",
				zap.String("dedup_key", req.DedupKey),
				zap.Int64("removed", removed),
			)
			continue
		}

		if existing.DedupKey != req.DedupKey {
			s.count("order_reused")
			s.log.Warn("order number reused with a different request",
				zap.String("merchant_order_no", req.OrderNo),
				zap.String("request_type", string(req.RequestType)),
			)
			return nil, apperrors.ErrOrderNoReused()
		}
		if s.stale(existing, now) {
			check, err := s.reclaim(ctx, existing, now)
			if err != nil {
				return nil, err
			}
			if check == nil {
				continue
			}
			return check, nil
		}
		return s.duplicate(existing), nil
	}

	s.log.Error("idempotency reservation did not settle", zap.String("dedup_key", req.DedupKey))
	return nil, apperrors.ErrRequestInFlight()
}

func (s *Service) conflicting(ctx context.Context, key string, scope *string) (*domain.IdempotencyRecord, error) {
	existing, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil || scope == nil {
		return existing, nil
	}
	return s.repo.FindByOrderScope(ctx, *scope)
}

// stale reports whether an open reservation outlived its lease, which happens
// when the holder crashed or could not release it.
func (s *Service) stale(rec *domain.IdempotencyRecord, now time.Time) bool {
	if rec.Status != domain.IdempotencyStatusPending && rec.Status != domain.IdempotencyStatusProcessing {
		return false
	}
	return rec.LockedAt == nil || !rec.LockedAt.After(now.Add(-s.lockTimeout))
}

// reclaim returns nil when another caller settled or took the record first.
func (s *Service) reclaim(ctx context.Context, rec *domain.IdempotencyRecord, now time.Time) (*Check, error) {
	token := uuid.NewString()
	ok, err := s.repo.Reclaim(ctx, rec.DedupKey, token, now.Add(-s.lockTimeout), now)
	if err != nil {
		return nil, fmt.Errorf("reclaim %s: %w", rec.DedupKey, err)
	}
	if !ok {
		return nil, nil
	}
	s.count("reclaimed")
	s.log.Warn("reclaimed stale idempotency reservation",
		zap.String("dedup_key", rec.DedupKey),
		zap.String("previous_status", string(rec.Status)),
		zap.String("merchant_order_no", rec.MerchantOrderNo),
	)
	return &Check{Token: token, Status: domain.IdempotencyStatusPending}, nil
}

func (s *Service) duplicate(rec *domain.IdempotencyRecord) *Check {
	check := &Check{Duplicate: true, Status: rec.Status}
	switch rec.Status {
	case domain.IdempotencyStatusCompleted:
		check.CachedResult = rec.ResponseBody
		s.count("completed")
	case domain.IdempotencyStatusFailed:
		check.FailReason = rec.ErrorMessage
		s.count("failed")
	default:
		s.count("in_flight")
	}
	return check
}

// Begin marks the reservation as handed to the side effect and restarts its lease.
func (s *Service) Begin(ctx context.Context, token string) error {
	ok, err := s.repo.Lock(ctx, token, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrReservationLost
	}
	return nil
}

func (s *Service) Complete(ctx context.Context, token string, result any) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode idempotent result: %w", err)
	}
	return s.transition(ctx, token, openStatuses(), domain.IdempotencyStatusCompleted, body, "")
}

func (s *Service) Fail(ctx context.Context, token, reason string) error {
	if reason == "" {
		reason = "failed"
	}
	return s.transition(ctx, token, openStatuses(), domain.IdempotencyStatusFailed, nil, reason)
}

// Release drops an unfinished reservation so the same request can be retried at once.
func (s *Service) Release(ctx context.Context, token string) error {
	deleted, err := s.repo.DeleteByToken(ctx, token, openStatuses())
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrReservationLost
	}
	return nil
}

func (s *Service) transition(ctx context.Context, token string, from []domain.IdempotencyStatus, to domain.IdempotencyStatus, body []byte, reason string) error {
	ok, err := s.repo.Transition(ctx, token, from, to, body, reason)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrReservationLost
	}
	return nil
}

// Lookup returns the live record for key.
func (s *Service) Lookup(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	rec, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil || !s.now().Before(rec.ExpiresAt) {
		return nil, apperrors.ErrIdempotencyKeyNotFound()
	}
	return rec, nil
}

func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleaned, err := s.PurgeExpired(ctx)
				if err != nil {
					s.log.Error("idempotency cleanup failed", zap.Error(err))
					continue
				}
				if cleaned > 0 {
					s.log.Info("cleaned expired idempotency records", zap.Int64("count", cleaned))
				}
			}
		}
	}()
}

type Health struct {
	Counts map[domain.IdempotencyStatus]int64 `json:"counts"`
	Live   int64                              `json:"live"`
	Stuck  int64                              `json:"stuck"`
}

func (s *Service) Health(ctx context.Context) (*Health, error) {
	now := s.now()
	counts, err := s.repo.CountByStatus(ctx, now)
	if err != nil {
		return nil, err
	}
	stuck, err := s.repo.CountStale(ctx, now.Add(-s.lockTimeout), now)
	if err != nil {
		return nil, err
	}
	h := &Health{Counts: counts, Stuck: stuck}
	for _, n := range counts {
		h.Live += n
	}
	return h, nil
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.IdempotencyChecks.WithLabelValues(result).Inc()
	}
}

func openStatuses() []domain.IdempotencyStatus {
	return []domain.IdempotencyStatus{domain.IdempotencyStatusPending, domain.IdempotencyStatusProcessing}
}
