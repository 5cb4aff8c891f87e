package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/vibepay/newebpay-bridge/internal/presentation/echo/middleware"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"

// userID is asserted by the upstream gateway; the use cases reject it when empty.
func userID(c echo.Context) string {
	return c.Request().Header.Get(middleware.HeaderUserID)
}

func clientKey(c echo.Context) string {
	return c.Request().Header.Get(HeaderIdempotencyKey)
}
