package use_cases

import (
	"context"
	"time"

	"github.com/vibepay/newebpay-bridge/internal/application/ratelimit"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type CreatePaymentCommand struct {
	UserID    string
	ClientKey string
	Request   domain.PaymentRequest
}

type CreatePaymentUseCase struct {
	checkout  *checkout
	orderRepo domain.OrderRepository
	limiter   *ratelimit.Limiter
	callbacks Callbacks
	now       func() time.Time
}

func NewCreatePaymentUseCase(
	co *checkout,
	orderRepo domain.OrderRepository,
	limiter *ratelimit.Limiter,
	callbacks Callbacks,
	now func() time.Time,
) *CreatePaymentUseCase {
	return &CreatePaymentUseCase{
		checkout:  co,
		orderRepo: orderRepo,
		limiter:   limiter,
		callbacks: callbacks,
		now:       now,
	}
}

func (uc *CreatePaymentUseCase) Execute(ctx context.Context, cmd CreatePaymentCommand) (*CheckoutForm, error) {
	ctx, span := tracer.Start(ctx, "CreatePayment", trace.WithAttributes(
		attribute.Int64("payment.amount", cmd.Request.Amount),
	))
	defer span.End()

	if cmd.UserID == "" {
		return nil, apperrors.ErrUserIDMissing()
	}
	if err := validateClientKey(cmd.ClientKey); err != nil {
		return nil, err
	}
	if err := enforceLimit(ctx, uc.limiter, cmd.UserID, ratelimit.EndpointPayment); err != nil {
		return nil, err
	}
	if err := validatePaymentRequest(cmd.Request); err != nil {
		return nil, err
	}

	req := cmd.Request
	orderNo, err := orderNoFor(uc.checkout.vault, newebpay.PrefixSingle, req.MerchantOrderNo, cmd.UserID, cmd.ClientKey)
	if err != nil {
		return nil, uc.checkout.internal("order number generation failed", err)
	}
	req.MerchantOrderNo = orderNo
	span.SetAttributes(attribute.String("payment.merchant_order_no", req.MerchantOrderNo))

	return uc.checkout.submit(ctx, submission{
		kind:        newebpay.KindMPG,
		requestType: domain.RequestTypeMPG,
		orderNo:     req.MerchantOrderNo,
		amount:      req.Amount,
		body:        dedupBody(cmd.UserID, req),
		fields:      mpgFields(req.MerchantOrderNo, req, uc.callbacks, uc.now()),
		persist: func(ctx context.Context, _ *CheckoutForm) error {
			return uc.orderRepo.Create(ctx, &domain.Order{
				MerchantOrderNo:  req.MerchantOrderNo,
				UserID:           cmd.UserID,
				Amount:           req.Amount,
				ItemDesc:         req.ItemDesc,
				Email:            req.Email,
				PaymentMethods:   joinMethods(req.PaymentMethods),
				Status:           domain.OrderStatusPending,
				InvoiceRequested: req.Invoice != nil,
			})
		},
	})
}

// orderNoFor prefers the caller's order number, then one derived from the
// client's idempotency key, and only then a fresh one.
func orderNoFor(v *newebpay.Vault, prefix, requested, userID, clientKey string) (string, error) {
	switch {
	case requested != "":
		return requested, nil
	case clientKey != "":
		return v.DeriveOrderNo(prefix, userID+":"+clientKey), nil
	default:
		return v.GenerateOrderNo(prefix)
	}
}

func dedupBody(userID string, req any) map[string]any {
	return map[string]any{"user_id": userID, "request": req}
}
