package use_cases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
)

func TestFirstAuthorization_ActivatesSubscription(t *testing.T) {
	env := setupEnv(t)
	sub := env.activeSubscription(t, 3)

	assert.Equal(t, domain.SubscriptionActive, sub.State)
	assert.NotEmpty(t, sub.PeriodNo)
	assert.Equal(t, 0, sub.CompletedPeriods)
	assert.Equal(t, "success", sub.LastAuthStatus)
	assert.NotNil(t, sub.NextAuthDate)

	logs, err := env.GetSubscription.Execute(context.Background(), testUserID, sub.ID)
	require.NoError(t, err)
	require.Len(t, logs.History, 1)
	assert.Equal(t, domain.SubscriptionPending, logs.History[0].FromState)
	assert.Equal(t, domain.SubscriptionActive, logs.History[0].ToState)
}

func TestFirstAuthorization_DeclineCancels(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	req := validSubscription()
	req.Amount = newebpay.AmountExpiredCard
	form, err := env.CreateSubscription.Execute(ctx, CreateSubscriptionCommand{UserID: testUserID, Request: req})
	require.NoError(t, err)

	inbound, err := env.simulator.FirstAuthorization(form.Payload)
	require.NoError(t, err)
	out, err := env.HandlePeriodNotify.FirstAuthorization(ctx, InboundNotification{SourceIP: testSourceIP, Payload: inbound})
	require.NoError(t, err)
	assert.Equal(t, string(domain.SubscriptionCancelled), out.Status)

	sub := env.subscription(t, form.SubscriptionID)
	assert.Equal(t, domain.SubscriptionCancelled, sub.State)
	assert.Equal(t, "expired card", sub.CancelReason)
	assert.Equal(t, "failed", sub.LastAuthStatus)
}

func TestPeriodAuthorization_CountsEachPeriodOnce(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sub := env.activeSubscription(t, 3)

	first := env.periodNotify(t, sub, 1, true)
	out, err := env.HandlePeriodNotify.PeriodAuthorization(ctx, first)
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.Equal(t, string(domain.SubscriptionActive), out.Status)

	// Same envelope delivered again.
	out, err = env.HandlePeriodNotify.PeriodAuthorization(ctx, first)
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	// Same cycle reported with a fresh trade number.
	out, err = env.HandlePeriodNotify.PeriodAuthorization(ctx, env.periodNotify(t, sub, 1, true))
	require.NoError(t, err)
	assert.True(t, out.Duplicate)

	stored := env.subscription(t, sub.ID)
	assert.Equal(t, 1, stored.CompletedPeriods)
	assert.Equal(t, int64(1), env.count(t, &domain.SubscriptionPayment{}, "subscription_id = ?", sub.ID))
}

func TestPeriodAuthorization_LastPeriodExpires(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sub := env.activeSubscription(t, 2)

	for already := 1; already <= 2; already++ {
		_, err := env.HandlePeriodNotify.PeriodAuthorization(ctx, env.periodNotify(t, sub, already, true))
		require.NoError(t, err)
	}

	stored := env.subscription(t, sub.ID)
	assert.Equal(t, domain.SubscriptionExpired, stored.State)
	assert.Equal(t, 2, stored.CompletedPeriods)
	assert.Nil(t, stored.NextAuthDate)

	_, err := env.HandlePeriodNotify.PeriodAuthorization(ctx, env.periodNotify(t, sub, 3, true))
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition("", ""))
	assert.Equal(t, 2, env.subscription(t, sub.ID).CompletedPeriods)
}

func TestPeriodAuthorization_PastDueRecovers(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sub := env.activeSubscription(t, 3)

	out, err := env.HandlePeriodNotify.PeriodAuthorization(ctx, env.periodNotify(t, sub, 1, false))
	require.NoError(t, err)
	assert.Equal(t, string(domain.SubscriptionPastDue), out.Status)

	stored := env.subscription(t, sub.ID)
	assert.Equal(t, 1, stored.FailedAttempts)
	assert.Equal(t, 0, stored.CompletedPeriods)

	out, err = env.HandlePeriodNotify.PeriodAuthorization(ctx, env.periodNotify(t, sub, 1, true))
	require.NoError(t, err)
	assert.Equal(t, string(domain.SubscriptionActive), out.Status)

	stored = env.subscription(t, sub.ID)
	assert.Equal(t, 0, stored.FailedAttempts)
	assert.Equal(t, 1, stored.CompletedPeriods)
	assert.Equal(t, int64(2), env.count(t, &domain.SubscriptionPayment{}, "subscription_id = ?", sub.ID))
}

func TestPeriodAuthorization_RetriesExhaustedCancels(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sub := env.activeSubscription(t, 3)

	want := []domain.SubscriptionState{domain.SubscriptionPastDue, domain.SubscriptionPastDue, domain.SubscriptionCancelled}
	for i, state := range want {
		out, err := env.HandlePeriodNotify.PeriodAuthorization(ctx, env.periodNotify(t, sub, 1, false))
		require.NoError(t, err, "attempt %d", i+1)
		assert.Equal(t, string(state), out.Status, "attempt %d", i+1)
	}

	stored := env.subscription(t, sub.ID)
	assert.Equal(t, 3, stored.FailedAttempts)
	assert.Equal(t, "authorization declined", stored.CancelReason)
	assert.Equal(t, int64(4), env.count(t, &domain.SubscriptionStateLog{}, "subscription_id = ?", sub.ID))
}

func TestPeriodAuthorization_Rejections(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	sub := env.activeSubscription(t, 3)

	_, err := env.HandlePeriodNotify.PeriodAuthorization(ctx, InboundNotification{
		SourceIP: "10.0.0.1",
		Payload:  env.simulator.PeriodAuthorization(sub.MerchantOrderNo, sub.PeriodNo, sub.Amount, 1, 3, true),
	})
	assert.ErrorIs(t, err, apperrors.ErrUntrustedSource(""))

	_, err = env.HandlePeriodNotify.PeriodAuthorization(ctx, InboundNotification{
		SourceIP: testSourceIP,
		Payload:  env.simulator.PeriodAuthorization(sub.MerchantOrderNo, "P_OTHER", sub.Amount, 1, 3, true),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSubscriptionRequest(""))

	_, err = env.HandlePeriodNotify.PeriodAuthorization(ctx, InboundNotification{
		SourceIP: testSourceIP,
		Payload:  env.simulator.PeriodAuthorization("P_UNKNOWN", sub.PeriodNo, sub.Amount, 1, 3, true),
	})
	assert.ErrorIs(t, err, apperrors.ErrSubscriptionNotFound())

	assert.Equal(t, 0, env.subscription(t, sub.ID).CompletedPeriods)
}
