package use_cases

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vibepay/newebpay-bridge/internal/application/idempotency"
	"github.com/vibepay/newebpay-bridge/internal/application/ratelimit"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"github.com/vibepay/newebpay-bridge/internal/utils/fingerprint"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/vibepay/newebpay-bridge/internal/application/use_cases")

// CheckoutForm is everything a browser needs to hand the buyer to the processor.
type CheckoutForm struct {
	MerchantOrderNo string                     `json:"merchant_order_no"`
	SubscriptionID  string                     `json:"subscription_id,omitempty"`
	ActionURL       string                     `json:"action_url"`
	Payload         *newebpay.EncryptedPayload `json:"payload"`
	FormHTML        string                     `json:"form_html"`
	Duplicate       bool                       `json:"duplicate"`
}

type checkout struct {
	tx        domain.TransactionManager
	idem      *idempotency.Service
	vault     *newebpay.Vault
	endpoints newebpay.Endpoints
	log       *zap.Logger
	metrics   *metrics.Metrics
}

type submission struct {
	kind        newebpay.Kind
	requestType domain.RequestType
	orderNo     string
	amount      int64
	body        any
	fields      *newebpay.Form
	// persist runs in the same transaction that completes the reservation.
	persist func(ctx context.Context, form *CheckoutForm) error
}

// submit builds and records one outbound envelope at most once per dedup key.
func (c *checkout) submit(ctx context.Context, s submission) (*CheckoutForm, error) {
	check, err := c.idem.CheckAndReserve(ctx, idempotency.Request{
		DedupKey:    fingerprint.DedupKey(c.vault.MerchantID(), s.orderNo, s.amount, s.body),
		RequestType: s.requestType,
		OrderNo:     s.orderNo,
		Amount:      s.amount,
		RequestHash: fingerprint.Compute(s.body),
	})
	if err != nil {
		return nil, c.internal("idempotency reservation failed", err)
	}
	if check.Duplicate {
		return c.replay(s, check)
	}

	if err := c.idem.Begin(ctx, check.Token); err != nil {
		return nil, c.internal("idempotency begin failed", err)
	}

	payload, err := c.vault.BuildOutboundForm(s.kind, s.fields)
	if err != nil {
		c.fail(ctx, check.Token, err)
		return nil, c.internal("envelope build failed", err)
	}
	action := c.endpoints.For(s.kind)
	html, err := newebpay.RenderAutoSubmitForm(s.kind, action, payload)
	if err != nil {
		c.fail(ctx, check.Token, err)
		return nil, c.internal("auto-submit form render failed", err)
	}

	form := &CheckoutForm{
		MerchantOrderNo: s.orderNo,
		ActionURL:       action,
		Payload:         payload,
		FormHTML:        html,
	}

	err = c.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.persist(ctx, form); err != nil {
			return err
		}
		return c.idem.Complete(ctx, check.Token, form)
	})
	if err != nil {
		if relErr := c.idem.Release(ctx, check.Token); relErr != nil {
			c.log.Warn("idempotency release failed", zap.String("merchant_order_no", s.orderNo), zap.Error(relErr))
		}
		c.count(s.kind, "failed")
		return nil, c.internal("checkout persist failed", err)
	}

	c.count(s.kind, "created")
	c.log.Info("checkout form created",
		zap.String("kind", string(s.kind)),
		zap.String("merchant_order_no", s.orderNo),
		zap.Int64("amount", s.amount),
	)
	return form, nil
}

func (c *checkout) replay(s submission, check *idempotency.Check) (*CheckoutForm, error) {
	if len(check.CachedResult) == 0 {
		c.count(s.kind, "in_flight")
		return nil, check.Err()
	}

	var form CheckoutForm
	if err := json.Unmarshal(check.CachedResult, &form); err != nil {
		return nil, c.internal("cached checkout form unreadable", err)
	}
	form.Duplicate = true
	c.count(s.kind, "duplicate")
	return &form, nil
}

func (c *checkout) fail(ctx context.Context, token string, cause error) {
	if err := c.idem.Fail(ctx, token, cause.Error()); err != nil {
		c.log.Warn("idempotency fail transition lost", zap.Error(err))
	}
}

func (c *checkout) count(kind newebpay.Kind, outcome string) {
	if c.metrics != nil {
		c.metrics.PaymentsCreated.WithLabelValues(string(kind), outcome).Inc()
	}
}

func (c *checkout) internal(msg string, err error) error {
	return internalError(c.log, msg, err)
}

// internalError passes application errors through and logs anything else
// before hiding it behind ErrInternal.
func internalError(log *zap.Logger, msg string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	log.Error(msg, zap.Error(err))
	return apperrors.ErrInternal()
}

func enforceLimit(ctx context.Context, limiter *ratelimit.Limiter, identifier string, endpoint ratelimit.Endpoint) error {
	decision, err := limiter.Allow(ctx, identifier, endpoint)
	if err != nil {
		return apperrors.ErrInternal()
	}
	if !decision.Allowed {
		return apperrors.ErrRateLimited(decision.ResetAt)
	}
	return nil
}
