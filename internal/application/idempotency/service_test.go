package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm/repositories"
	"github.com/vibepay/newebpay-bridge/internal/utils/fingerprint"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.uber.org/zap/zaptest"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc     *Service
	repo    domain.IdempotencyRepository
	clock   *clock
	metrics *metrics.Metrics
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gormdb.NewTestConnection()
	require.NoError(t, err)

	repo := repositories.NewIdempotencyRepo(db)
	c := &clock{now: time.Now()}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewService(repo, Config{TTL: DefaultTTL, Now: c.Now}, zaptest.NewLogger(t), m)
	return &fixture{svc: svc, repo: repo, clock: c, metrics: m}
}

func paymentRequest(orderNo string, amount int64, body any) Request {
	return Request{
		DedupKey:    fingerprint.DedupKey("MS12345678", orderNo, amount, body),
		RequestType: domain.RequestTypeMPG,
		OrderNo:     orderNo,
		Amount:      amount,
		RequestHash: fingerprint.Compute(body),
	}
}

var testBody = map[string]any{"amount": 1000, "item_desc": "Test Item", "email": "buyer@example.com"}

func TestCheckAndReserve_FirstCallReserves(t *testing.T) {
	f := setup(t)

	check, err := f.svc.CheckAndReserve(context.Background(), paymentRequest("S1", 1000, testBody))
	require.NoError(t, err)

	assert.False(t, check.Duplicate)
	assert.NotEmpty(t, check.Token)
	assert.Equal(t, domain.IdempotencyStatusPending, check.Status)
	assert.NoError(t, check.Err())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.IdempotencyChecks.WithLabelValues("reserved")))
}

func TestCheckAndReserve_ConcurrentCallersGetOneReservation(t *testing.T) {
	f := setup(t)
	req := paymentRequest("S1", 1000, testBody)

	const callers = 25
	var wg sync.WaitGroup
	checks := make(chan *Check, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check, err := f.svc.CheckAndReserve(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			checks <- check
		}()
	}
	wg.Wait()
	close(checks)
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
	reserved, duplicates := 0, 0
	for c := range checks {
		if c.Duplicate {
			duplicates++
			assert.ErrorIs(t, c.Err(), apperrors.ErrRequestInFlight())
		} else {
			reserved++
		}
	}
	assert.Equal(t, 1, reserved)
	assert.Equal(t, callers-1, duplicates)
}

func TestCheckAndReserve_CompletedReturnsCachedResult(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := paymentRequest("S1", 1000, testBody)

	first, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	require.NoError(t, f.svc.Begin(ctx, first.Token))
	require.NoError(t, f.svc.Complete(ctx, first.Token, map[string]string{"merchant_order_no": "S1"}))

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Hour)
		again, err := f.svc.CheckAndReserve(ctx, req)
		require.NoError(t, err)
		assert.True(t, again.Duplicate)
		assert.Empty(t, again.Token)
		assert.Equal(t, domain.IdempotencyStatusCompleted, again.Status)
		assert.JSONEq(t, `{"merchant_order_no":"S1"}`, string(again.CachedResult))
		assert.NoError(t, again.Err())
	}
}

func TestCheckAndReserve_FailedBlocksUntilExpiry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := paymentRequest("S1", 1000, testBody)

	first, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	require.NoError(t, f.svc.Fail(ctx, first.Token, "gateway timeout"))

	blocked, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	assert.True(t, blocked.Duplicate)
	assert.Equal(t, "gateway timeout", blocked.FailReason)
	assert.ErrorIs(t, blocked.Err(), apperrors.ErrPreviousAttemptFailed())

	f.clock.Advance(DefaultTTL + time.Second)

	fresh, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	assert.False(t, fresh.Duplicate)
	assert.NotEqual(t, first.Token, fresh.Token)
}

func TestCheckAndReserve_ReclaimsStaleReservation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := paymentRequest("S1", 1000, testBody)

	crashed, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	require.NoError(t, f.svc.Begin(ctx, crashed.Token))

	f.clock.Advance(DefaultLockTimeout / 2)
	inFlight, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	assert.True(t, inFlight.Duplicate)
	assert.ErrorIs(t, inFlight.Err(), apperrors.ErrRequestInFlight())

	f.clock.Advance(DefaultLockTimeout)
	health, err := f.svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), health.Stuck)

	retry, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	assert.False(t, retry.Duplicate)
	assert.NotEqual(t, crashed.Token, retry.Token)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.IdempotencyChecks.WithLabelValues("reclaimed")))

	assert.ErrorIs(t, f.svc.Complete(ctx, crashed.Token, "late"), domain.ErrReservationLost)
	require.NoError(t, f.svc.Begin(ctx, retry.Token))
	require.NoError(t, f.svc.Complete(ctx, retry.Token, map[string]string{"merchant_order_no": "S1"}))

	health, err = f.svc.Health(ctx)
	require.NoError(t, err)
	assert.Zero(t, health.Stuck)
}

func TestCheckAndReserve_LeaseFollowsConfig(t *testing.T) {
	f := setup(t)
	svc := NewService(f.repo, Config{LockTimeout: time.Second, Now: f.clock.Now}, zaptest.NewLogger(t), nil)
	ctx := context.Background()
	req := paymentRequest("S1", 1000, testBody)

	_, err := svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Second)
	retry, err := svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	assert.False(t, retry.Duplicate)
}

func TestCheckAndReserve_OrderReuseWithDifferentBody(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CheckAndReserve(ctx, paymentRequest("S1", 1000, testBody))
	require.NoError(t, err)

	_, err = f.svc.CheckAndReserve(ctx, paymentRequest("S1", 2000, map[string]any{"amount": 2000}))

	assert.ErrorIs(t, err, apperrors.ErrOrderNoReused())
}

func TestCheckAndReserve_OrderReuseAllowedAfterExpiry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CheckAndReserve(ctx, paymentRequest("S1", 1000, testBody))
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)

	check, err := f.svc.CheckAndReserve(ctx, paymentRequest("S1", 2000, map[string]any{"amount": 2000}))
	require.NoError(t, err)
	assert.False(t, check.Duplicate)
}

func TestCheckAndReserve_NotificationsDoNotHoldOrderScope(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CheckAndReserve(ctx, paymentRequest("S1", 1000, testBody))
	require.NoError(t, err)

	notify := Request{
		DedupKey:    fingerprint.DedupKey("MS12345678", "S1", 1000, "SUCCESS"),
		RequestType: domain.RequestTypeMPGNotify,
		OrderNo:     "S1",
		Amount:      1000,
		RequestHash: fingerprint.Compute("SUCCESS"),
	}
	check, err := f.svc.CheckAndReserve(ctx, notify)
	require.NoError(t, err)
	assert.False(t, check.Duplicate)
}

func TestCheckAndReserve_RejectsOversizedKey(t *testing.T) {
	f := setup(t)
	req := paymentRequest("S1", 1000, testBody)
	req.DedupKey = string(make([]byte, maxKeyLength+1))

	_, err := f.svc.CheckAndReserve(context.Background(), req)

	assert.ErrorIs(t, err, apperrors.ErrIdempotencyKeyTooLong())
}

func TestLifecycle_TransitionsRequireLiveToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	check, err := f.svc.CheckAndReserve(ctx, paymentRequest("S1", 1000, testBody))
	require.NoError(t, err)

	require.NoError(t, f.svc.Begin(ctx, check.Token))
	assert.ErrorIs(t, f.svc.Begin(ctx, check.Token), domain.ErrReservationLost)
	require.NoError(t, f.svc.Complete(ctx, check.Token, "ok"))
	assert.ErrorIs(t, f.svc.Fail(ctx, check.Token, "late"), domain.ErrReservationLost)
	assert.ErrorIs(t, f.svc.Complete(ctx, "unknown", "ok"), domain.ErrReservationLost)
}

func TestRelease_AllowsImmediateRetry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := paymentRequest("S1", 1000, testBody)

	check, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	require.NoError(t, f.svc.Release(ctx, check.Token))
	assert.ErrorIs(t, f.svc.Release(ctx, check.Token), domain.ErrReservationLost)

	retry, err := f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)
	assert.False(t, retry.Duplicate)
}

func TestLookup(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	req := paymentRequest("S1", 1000, testBody)

	_, err := f.svc.Lookup(ctx, req.DedupKey)
	assert.ErrorIs(t, err, apperrors.ErrIdempotencyKeyNotFound())

	_, err = f.svc.CheckAndReserve(ctx, req)
	require.NoError(t, err)

	rec, err := f.svc.Lookup(ctx, req.DedupKey)
	require.NoError(t, err)
	assert.Equal(t, "S1", rec.MerchantOrderNo)

	f.clock.Advance(DefaultTTL)
	_, err = f.svc.Lookup(ctx, req.DedupKey)
	assert.ErrorIs(t, err, apperrors.ErrIdempotencyKeyNotFound())
}

func TestPurgeExpiredAndHealth(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	done, err := f.svc.CheckAndReserve(ctx, paymentRequest("S1", 1000, testBody))
	require.NoError(t, err)
	require.NoError(t, f.svc.Complete(ctx, done.Token, "ok"))
	_, err = f.svc.CheckAndReserve(ctx, paymentRequest("S2", 1000, testBody))
	require.NoError(t, err)

	health, err := f.svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), health.Live)
	assert.Equal(t, int64(1), health.Counts[domain.IdempotencyStatusCompleted])
	assert.Equal(t, int64(1), health.Counts[domain.IdempotencyStatusPending])

	f.clock.Advance(DefaultTTL)
	purged, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	health, err = f.svc.Health(ctx)
	require.NoError(t, err)
	assert.Zero(t, health.Live)
}

func TestOrderScope(t *testing.T) {
	assert.Equal(t, "MPG:S1", *OrderScope(domain.RequestTypeMPG, "S1"))
	assert.Equal(t, "PERIOD:P1", *OrderScope(domain.RequestTypePeriod, "P1"))
	assert.Nil(t, OrderScope(domain.RequestTypePeriodNotify, "P1"))
	assert.Nil(t, OrderScope(domain.RequestTypeMPG, ""))
}
