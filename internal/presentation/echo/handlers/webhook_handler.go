package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibepay/newebpay-bridge/internal/application/use_cases"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/infrastructure/newebpay"
	"go.uber.org/zap"
)

type notifyFunc func(ctx context.Context, in use_cases.InboundNotification) (*use_cases.NotifyOutcome, error)

// WebhookHandler receives the processor's form-encoded notifications. Rejected
// envelopes get a 4xx; failures on our side are acknowledged with 200 and
// accepted=false.
type WebhookHandler struct {
	paymentNotify *use_cases.HandlePaymentNotifyUseCase
	periodNotify  *use_cases.HandlePeriodNotifyUseCase
	log           *zap.Logger
}

func NewWebhookHandler(container *use_cases.Container, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		paymentNotify: container.HandlePaymentNotify,
		periodNotify:  container.HandlePeriodNotify,
		log:           log,
	}
}

func (h *WebhookHandler) PaymentNotify(c echo.Context) error {
	return h.handle(c, use_cases.ChannelMPGNotify, h.paymentNotify.Execute)
}

func (h *WebhookHandler) FirstAuthorization(c echo.Context) error {
	return h.handle(c, use_cases.ChannelPeriodFirstAuth, h.periodNotify.FirstAuthorization)
}

func (h *WebhookHandler) PeriodNotify(c echo.Context) error {
	return h.handle(c, use_cases.ChannelPeriodNotify, h.periodNotify.PeriodAuthorization)
}

func (h *WebhookHandler) handle(c echo.Context, channel string, fn notifyFunc) error {
	var payload newebpay.InboundPayload
	if err := c.Bind(&payload); err != nil {
		return apperrors.ErrSignatureMismatch("unreadable envelope")
	}

	outcome, err := fn(c.Request().Context(), use_cases.InboundNotification{
		SourceIP: c.RealIP(),
		Payload:  payload,
	})
	if err == nil {
		return c.JSON(http.StatusOK, outcome)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.HTTPCode < http.StatusInternalServerError {
		return appErr
	}

	h.log.Error("notification not processed",
		zap.String("channel", channel),
		zap.Any("trace_id", c.Get("trace_id")),
		zap.Error(err),
	)
	return c.JSON(http.StatusOK, &use_cases.NotifyOutcome{
		Accepted: false,
		Message:  apperrors.ErrInternal().Code,
	})
}
