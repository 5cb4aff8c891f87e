package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibepay/newebpay-bridge/internal/application/use_cases"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
)

type PaymentHandler struct {
	createPayment       *use_cases.CreatePaymentUseCase
	getOrder            *use_cases.GetOrderUseCase
	reconcileOrder      *use_cases.ReconcileOrderUseCase
	getByIdempotencyKey *use_cases.GetByIdempotencyKeyUseCase
}

func NewPaymentHandler(container *use_cases.Container) *PaymentHandler {
	return &PaymentHandler{
		createPayment:       container.CreatePayment,
		getOrder:            container.GetOrder,
		reconcileOrder:      container.ReconcileOrder,
		getByIdempotencyKey: container.GetByIdempotencyKey,
	}
}

// CreatePayment answers 201 for a new checkout form and 200 for a replayed one.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	var req domain.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrInvalidPaymentRequest("invalid request body")
	}

	form, err := h.createPayment.Execute(c.Request().Context(), use_cases.CreatePaymentCommand{
		UserID:    userID(c),
		ClientKey: clientKey(c),
		Request:   req,
	})
	if err != nil {
		return err
	}

	if form.Duplicate {
		return c.JSON(http.StatusOK, form)
	}
	return c.JSON(http.StatusCreated, form)
}

func (h *PaymentHandler) GetOrder(c echo.Context) error {
	order, err := h.getOrder.Execute(c.Request().Context(), userID(c), c.Param("orderNo"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, order)
}

func (h *PaymentHandler) ReconcileOrder(c echo.Context) error {
	order, err := h.reconcileOrder.Execute(c.Request().Context(), userID(c), c.Param("orderNo"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, order)
}

func (h *PaymentHandler) GetByIdempotencyKey(c echo.Context) error {
	record, err := h.getByIdempotencyKey.Execute(c.Request().Context(), userID(c), c.Param("key"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, record)
}
