package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibepay/newebpay-bridge/internal/application/idempotency"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db   *gorm.DB
	idem *idempotency.Service
	log  *zap.Logger
}

func NewHealthHandler(db *gorm.DB, idem *idempotency.Service, log *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, idem: idem, log: log}
}

func (h *HealthHandler) Check(c echo.Context) error {
	ctx := c.Request().Context()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.log.Error("health check: database unreachable", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":   "DEGRADED",
			"database": "down",
		})
	}

	health, err := h.idem.Health(ctx)
	if err != nil {
		h.log.Error("health check: idempotency counts unavailable", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":   "DEGRADED",
			"database": "up",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":      "OK",
		"database":    "up",
		"idempotency": health,
	})
}
