package use_cases

import (
	"context"

	"github.com/vibepay/newebpay-bridge/internal/application/ratelimit"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CreateSubscriptionCommand struct {
	UserID    string
	ClientKey string
	Request   domain.SubscriptionRequest
}

type CreateSubscriptionUseCase struct {
	checkout         *checkout
	subscriptionRepo domain.SubscriptionRepository
	limiter          *ratelimit.Limiter
	callbacks        Callbacks
}

func NewCreateSubscriptionUseCase(
	co *checkout,
	subscriptionRepo domain.SubscriptionRepository,
	limiter *ratelimit.Limiter,
	callbacks Callbacks,
) *CreateSubscriptionUseCase {
	return &CreateSubscriptionUseCase{
		checkout:         co,
		subscriptionRepo: subscriptionRepo,
		limiter:          limiter,
		callbacks:        callbacks,
	}
}

// Execute records the subscription as PENDING; it becomes ACTIVE once the
// processor reports the first authorization.
func (uc *CreateSubscriptionUseCase) Execute(ctx context.Context, cmd CreateSubscriptionCommand) (*CheckoutForm, error) {
	ctx, span := tracer.Start(ctx, "CreateSubscription", trace.WithAttributes(
		attribute.Int64("subscription.amount", cmd.Request.Amount),
		attribute.Int("subscription.total_periods", cmd.Request.TotalPeriods),
	))
	defer span.End()

	if cmd.UserID == "" {
		return nil, apperrors.ErrUserIDMissing()
	}
	if err := validateClientKey(cmd.ClientKey); err != nil {
		return nil, err
	}
	if err := enforceLimit(ctx, uc.limiter, cmd.UserID, ratelimit.EndpointSubscription); err != nil {
		return nil, err
	}
	if err := validateSubscriptionRequest(cmd.Request); err != nil {
		return nil, err
	}

	req := cmd.Request
	point, _ := normalizePeriodPoint(req.PeriodType, req.PeriodPoint)
	req.PeriodPoint = point
	orderNo, err := orderNoFor(uc.checkout.vault, newebpay.PrefixPeriod, req.MerchantOrderNo, cmd.UserID, cmd.ClientKey)
	if err != nil {
		return nil, uc.checkout.internal("order number generation failed", err)
	}
	req.MerchantOrderNo = orderNo

	return uc.checkout.submit(ctx, submission{
		kind:        newebpay.KindPeriod,
		requestType: domain.RequestTypePeriod,
		orderNo:     req.MerchantOrderNo,
		amount:      req.Amount,
		body:        dedupBody(cmd.UserID, req),
		fields:      periodFields(req.MerchantOrderNo, point, req, uc.callbacks),
		persist: func(ctx context.Context, form *CheckoutForm) error {
			sub := &domain.Subscription{
				UserID:          cmd.UserID,
				MerchantOrderNo: req.MerchantOrderNo,
				PeriodType:      req.PeriodType,
				PeriodPoint:     point,
				Amount:          req.Amount,
				ItemDesc:        req.ItemDesc,
				Email:           req.Email,
				TotalPeriods:    req.TotalPeriods,
				State:           domain.SubscriptionPending,
			}
			if err := uc.subscriptionRepo.Create(ctx, sub); err != nil {
				return err
			}
			form.SubscriptionID = sub.ID
			return nil
		},
	})
}
