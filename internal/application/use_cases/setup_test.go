package use_cases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	gormdb "github.com/vibepay/newebpay-bridge/internal/infrastructure/gorm"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"github.com/vibepay/newebpay-bridge/internal/utils/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testSourceIP = "127.0.0.1"
	testUserID   = "user-001"
)

type testEnv struct {
	*Container
	db        *gorm.DB
	simulator *newebpay.Simulator
}

func testConfig() *config.Config {
	return &config.Config{
		MerchantID:             "MS12345678",
		HashKey:                "12345678901234567890123456789012",
		HashIV:                 "1234567890123456",
		Version:                "2.0",
		ReturnURL:              "https://shop.example.com/return",
		NotifyURL:              "https://shop.example.com/webhooks/newebpay/notify",
		ClientBackURL:          "https://shop.example.com/cart",
		PeriodReturnURL:        "https://shop.example.com/webhooks/newebpay/period",
		PeriodNotifyURL:        "https://shop.example.com/webhooks/newebpay/period-notify",
		GatewayMode:            config.ModeSimulator,
		IdempotencyKeyTTL:      24 * time.Hour,
		RateLimitPayment:       1000,
		RateLimitWebhook:       1000,
		RateLimitQuery:         1000,
		RateLimitSubscription:  1000,
		RateLimitWindow:        time.Minute,
		AllowTestSources:       true,
		SubscriptionMaxRetries: 3,
	}
}

func setupEnv(t *testing.T, mutate ...func(*config.Config, *Options)) *testEnv {
	t.Helper()

	db, err := gormdb.NewTestConnection()
	require.NoError(t, err)

	cfg := testConfig()
	opts := Options{}
	for _, fn := range mutate {
		fn(cfg, &opts)
	}

	var sim *newebpay.Simulator
	if opts.Gateway == nil {
		vault, err := newebpay.NewVault(newebpay.VaultConfig{
			MerchantID: cfg.MerchantID,
			HashKey:    cfg.HashKey,
			HashIV:     cfg.HashIV,
			Version:    cfg.Version,
		})
		require.NoError(t, err)
		sim = newebpay.NewSimulator(vault)
		opts.Gateway = sim
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c, err := NewContainer(ctx, db, cfg, zap.NewNop(), nil, opts)
	require.NoError(t, err)
	return &testEnv{Container: c, db: db, simulator: sim}
}

func validPayment() domain.PaymentRequest {
	return domain.PaymentRequest{
		Amount:   1000,
		ItemDesc: "Test Item",
		Email:    "buyer@example.com",
	}
}

func validSubscription() domain.SubscriptionRequest {
	return domain.SubscriptionRequest{
		Amount:       299,
		ItemDesc:     "Monthly plan",
		Email:        "buyer@example.com",
		PeriodType:   domain.PeriodMonthly,
		PeriodPoint:  "5",
		TotalPeriods: 3,
	}
}

func (env *testEnv) pay(t *testing.T, orderNo string) *CheckoutForm {
	t.Helper()
	req := validPayment()
	req.MerchantOrderNo = orderNo
	form, err := env.CreatePayment.Execute(context.Background(), CreatePaymentCommand{UserID: testUserID, Request: req})
	require.NoError(t, err)
	return form
}

// activeSubscription creates a subscription and delivers its first authorization.
func (env *testEnv) activeSubscription(t *testing.T, total int) *domain.Subscription {
	t.Helper()
	ctx := context.Background()

	req := validSubscription()
	req.TotalPeriods = total
	form, err := env.CreateSubscription.Execute(ctx, CreateSubscriptionCommand{UserID: testUserID, Request: req})
	require.NoError(t, err)

	inbound, err := env.simulator.FirstAuthorization(form.Payload)
	require.NoError(t, err)
	out, err := env.HandlePeriodNotify.FirstAuthorization(ctx, InboundNotification{SourceIP: testSourceIP, Payload: inbound})
	require.NoError(t, err)
	require.Equal(t, string(domain.SubscriptionActive), out.Status)

	return env.subscription(t, form.SubscriptionID)
}

func (env *testEnv) periodNotify(t *testing.T, sub *domain.Subscription, already int, succeed bool) InboundNotification {
	t.Helper()
	return InboundNotification{
		SourceIP: testSourceIP,
		Payload:  env.simulator.PeriodAuthorization(sub.MerchantOrderNo, sub.PeriodNo, sub.Amount, already, sub.TotalPeriods, succeed),
	}
}

func (env *testEnv) subscription(t *testing.T, id string) *domain.Subscription {
	t.Helper()
	var sub domain.Subscription
	require.NoError(t, env.db.First(&sub, "id = ?", id).Error)
	return &sub
}

func (env *testEnv) order(t *testing.T, orderNo string) *domain.Order {
	t.Helper()
	var order domain.Order
	require.NoError(t, env.db.First(&order, "merchant_order_no = ?", orderNo).Error)
	return &order
}

func (env *testEnv) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) AlterStatus(ctx context.Context, orderNo, periodNo string, alter domain.AlterType) error {
	args := m.Called(ctx, orderNo, periodNo, alter)
	return args.Error(0)
}

func (m *mockGateway) QueryTradeInfo(ctx context.Context, orderNo string, amount int64) (*domain.TradeStatus, error) {
	args := m.Called(ctx, orderNo, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TradeStatus), args.Error(1)
}
