package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibepay/newebpay-bridge/internal/domain"
)

func TestOrderRepo_CreateFindSave(t *testing.T) {
	repo := NewOrderRepo(setupDB(t))
	ctx := context.Background()

	order := &domain.Order{
		MerchantOrderNo: "S1",
		UserID:          "user-1",
		Amount:          1000,
		ItemDesc:        "Test Item",
		Email:           "buyer@example.com",
		PaymentMethods:  "CREDIT",
		Status:          domain.OrderStatusPending,
	}
	require.NoError(t, repo.Create(ctx, order))
	assert.NotEmpty(t, order.ID)

	found, err := repo.FindByOrderNo(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, order.ID, found.ID)
	assert.Equal(t, domain.OrderStatusPending, found.Status)

	paidAt := time.Now().UTC()
	found.Status = domain.OrderStatusPaid
	found.TradeNo = "T1"
	found.PaidAt = &paidAt
	found.RawResult = []byte(`{"TradeNo":"T1"}`)
	require.NoError(t, repo.Save(ctx, found))

	again, err := repo.FindByOrderNo(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, again.Status)
	assert.Equal(t, "T1", again.TradeNo)
	require.NotNil(t, again.PaidAt)
	assert.JSONEq(t, `{"TradeNo":"T1"}`, string(again.RawResult))
}

func TestOrderRepo_DuplicateOrderNoRejected(t *testing.T) {
	repo := NewOrderRepo(setupDB(t))
	ctx := context.Background()

	base := domain.Order{MerchantOrderNo: "S1", UserID: "u", Amount: 1, ItemDesc: "x", Email: "a@b.co", Status: domain.OrderStatusPending}
	first, second := base, base
	require.NoError(t, repo.Create(ctx, &first))

	assert.Error(t, repo.Create(ctx, &second))
}

func TestOrderRepo_FindMissing(t *testing.T) {
	repo := NewOrderRepo(setupDB(t))

	found, err := repo.FindByOrderNo(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, found)
}
