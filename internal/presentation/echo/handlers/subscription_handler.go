package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibepay/newebpay-bridge/internal/application/use_cases"
	"github.com/vibepay/newebpay-bridge/internal/domain"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
)

type SubscriptionHandler struct {
	createSubscription *use_cases.CreateSubscriptionUseCase
	manageSubscription *use_cases.ManageSubscriptionUseCase
	getSubscription    *use_cases.GetSubscriptionUseCase
	listSubscriptions  *use_cases.ListSubscriptionsUseCase
}

func NewSubscriptionHandler(container *use_cases.Container) *SubscriptionHandler {
	return &SubscriptionHandler{
		createSubscription: container.CreateSubscription,
		manageSubscription: container.ManageSubscription,
		getSubscription:    container.GetSubscription,
		listSubscriptions:  container.ListSubscriptions,
	}
}

type alterRequest struct {
	Reason string `json:"reason"`
}

func (h *SubscriptionHandler) Create(c echo.Context) error {
	var req domain.SubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ErrInvalidSubscriptionRequest("invalid request body")
	}

	form, err := h.createSubscription.Execute(c.Request().Context(), use_cases.CreateSubscriptionCommand{
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

func (h *SubscriptionHandler) List(c echo.Context) error {
	subs, err := h.listSubscriptions.Execute(c.Request().Context(), userID(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"subscriptions": subs})
}

func (h *SubscriptionHandler) Get(c echo.Context) error {
	view, err := h.getSubscription.Execute(c.Request().Context(), userID(c), c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, view)
}

// Alter returns the handler for one user-initiated lifecycle action. The body
// is optional and only carries a reason.
func (h *SubscriptionHandler) Alter(action use_cases.SubscriptionAction) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req alterRequest
		if c.Request().ContentLength > 0 {
			if err := c.Bind(&req); err != nil {
				return apperrors.ErrInvalidSubscriptionRequest("invalid request body")
			}
		}

		sub, err := h.manageSubscription.Execute(c.Request().Context(), use_cases.ManageSubscriptionCommand{
			UserID:         userID(c),
			SubscriptionID: c.Param("id"),
			Action:         action,
			Reason:         req.Reason,
		})
		if err != nil {
			return err
		}

		return c.JSON(http.StatusOK, sub)
	}
}
