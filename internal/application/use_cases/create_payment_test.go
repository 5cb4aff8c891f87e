package use_cases

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"github.com/vibepay/newebpay-bridge/internal/utils/config"
)

var hex64 = regexp.MustCompile(`^[0-9A-F]{64}$`)

func TestCreatePayment_BuildsSignedForm(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	form, err := env.CreatePayment.Execute(ctx, CreatePaymentCommand{UserID: testUserID, Request: validPayment()})
	require.NoError(t, err)

	assert.False(t, form.Duplicate)
	assert.True(t, strings.HasPrefix(form.MerchantOrderNo, newebpay.PrefixSingle))
	assert.Equal(t, "https://ccore.newebpay.com/MPG/mpg_gateway", form.ActionURL)
	assert.Equal(t, "MS12345678", form.Payload.MerchantID)
	assert.NotEmpty(t, form.Payload.TradeInfo)
	assert.Regexp(t, hex64, form.Payload.TradeSha)
	assert.Equal(t, env.Vault.Sign(form.Payload.TradeInfo), form.Payload.TradeSha)
	assert.Contains(t, form.FormHTML, form.Payload.TradeInfo)

	plain, err := env.Vault.Decrypt(form.Payload.TradeInfo)
	require.NoError(t, err)
	fields, err := newebpay.ParseForm(plain)
	require.NoError(t, err)
	assert.Equal(t, "1000", fields.Get("Amt"))
	assert.Equal(t, "Test Item", fields.Get("ItemDesc"))
	assert.Equal(t, "buyer@example.com", fields.Get("Email"))
	assert.Equal(t, form.MerchantOrderNo, fields.Get("MerchantOrderNo"))

	order := env.order(t, form.MerchantOrderNo)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, testUserID, order.UserID)
	assert.Equal(t, int64(1000), order.Amount)
	assert.Equal(t, "CREDIT", order.PaymentMethods)
}

func TestCreatePayment_IdenticalRequestIsDuplicate(t *testing.T) {
	env := setupEnv(t)

	first := env.pay(t, "ORDER_001")
	second := env.pay(t, "ORDER_001")

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.MerchantOrderNo, second.MerchantOrderNo)
	assert.Equal(t, first.Payload.TradeInfo, second.Payload.TradeInfo)
	assert.Equal(t, int64(1), env.count(t, &domain.Order{}, "merchant_order_no = ?", "ORDER_001"))
}

func TestCreatePayment_ClientKeyDerivesStableOrderNo(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	cmd := CreatePaymentCommand{UserID: testUserID, ClientKey: "checkout-42", Request: validPayment()}

	first, err := env.CreatePayment.Execute(ctx, cmd)
	require.NoError(t, err)
	second, err := env.CreatePayment.Execute(ctx, cmd)
	require.NoError(t, err)

	assert.Equal(t, first.MerchantOrderNo, second.MerchantOrderNo)
	assert.True(t, second.Duplicate)

	cmd.UserID = "user-002"
	other, err := env.CreatePayment.Execute(ctx, cmd)
	require.NoError(t, err)
	assert.NotEqual(t, first.MerchantOrderNo, other.MerchantOrderNo)
}

func TestCreatePayment_OrderNoReusedWithDifferentBody(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.pay(t, "ORDER_002")

	req := validPayment()
	req.MerchantOrderNo = "ORDER_002"
	req.Amount = 2000
	_, err := env.CreatePayment.Execute(ctx, CreatePaymentCommand{UserID: testUserID, Request: req})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "ORDER_NO_REUSED", appErr.Code)
	assert.Equal(t, int64(1000), env.order(t, "ORDER_002").Amount)
}

func TestCreatePayment_Rejections(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		cmd     CreatePaymentCommand
		errCode string
	}{
		{
			name:    "missing user",
			cmd:     CreatePaymentCommand{Request: validPayment()},
			errCode: "USER_ID_MISSING",
		},
		{
			name:    "client key too long",
			cmd:     CreatePaymentCommand{UserID: testUserID, ClientKey: strings.Repeat("x", 65), Request: validPayment()},
			errCode: "IDEMPOTENCY_KEY_TOO_LONG",
		},
		{
			name:    "invalid amount",
			cmd:     CreatePaymentCommand{UserID: testUserID, Request: domain.PaymentRequest{Amount: 0, ItemDesc: "x", Email: "a@b.co"}},
			errCode: "INVALID_PAYMENT_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.CreatePayment.Execute(ctx, tt.cmd)
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.errCode, appErr.Code)
		})
	}
	assert.Equal(t, int64(0), env.count(t, &domain.Order{}, "1 = 1"))
}

func TestCreatePayment_RateLimited(t *testing.T) {
	env := setupEnv(t, func(cfg *config.Config, _ *Options) {
		cfg.RateLimitPayment = 2
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.CreatePayment.Execute(ctx, CreatePaymentCommand{UserID: testUserID, Request: validPayment()})
		require.NoError(t, err)
	}
	_, err := env.CreatePayment.Execute(ctx, CreatePaymentCommand{UserID: testUserID, Request: validPayment()})
	assert.ErrorIs(t, err, apperrors.ErrRateLimited(time.Now()))

	_, err = env.CreatePayment.Execute(ctx, CreatePaymentCommand{UserID: "user-002", Request: validPayment()})
	assert.NoError(t, err)
}

func TestCreatePayment_ConcurrentIdenticalRequestsCreateOneOrder(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	req := validPayment()
	req.MerchantOrderNo = "ORDER_RACE"

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, duplicates, inFlight := 0, 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			form, err := env.CreatePayment.Execute(ctx, CreatePaymentCommand{UserID: testUserID, Request: req})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				assert.ErrorIs(t, err, apperrors.ErrRequestInFlight())
				inFlight++
			case form.Duplicate:
				duplicates++
			default:
				created++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers, created+duplicates+inFlight)
	assert.Equal(t, int64(1), env.count(t, &domain.Order{}, "merchant_order_no = ?", "ORDER_RACE"))
}
