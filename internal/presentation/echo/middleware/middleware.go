package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/vibepay/newebpay-bridge/internal/application/ratelimit"
	apperrors "github.com/vibepay/newebpay-bridge/internal/domain/errors"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.uber.org/zap"
)

const (
	HeaderTraceID = "X-Trace-Id"
	HeaderUserID  = "X-User-Id"
)

func TraceID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		traceID := c.Request().Header.Get(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Response().Header().Set(HeaderTraceID, traceID)
		c.Set("trace_id", traceID)
		return next(c)
	}
}

func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			fields := []zap.Field{
				zap.Any("trace_id", c.Get("trace_id")),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", StatusOf(c, err)),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			log.Info("request", fields...)
			return err
		}
	}
}

func Recovery(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered",
						zap.Any("panic", r),
						zap.Any("trace_id", c.Get("trace_id")),
						zap.String("path", c.Request().URL.Path),
					)
					err = apperrors.ErrInternal()
				}
			}()
			return next(c)
		}
	}
}

// Metrics observes request latency labelled by the matched route, not the raw path.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(StatusOf(c, err))).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RateLimit counts each request against endpoint, keyed by the caller's user id
// and falling back to the client address.
func RateLimit(limiter *ratelimit.Limiter, endpoint ratelimit.Endpoint) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identifier := c.Request().Header.Get(HeaderUserID)
			if identifier == "" {
				identifier = c.RealIP()
			}

			decision, err := limiter.Allow(c.Request().Context(), identifier, endpoint)
			if err != nil {
				return err
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			if !decision.Allowed {
				return apperrors.ErrRateLimited(decision.ResetAt)
			}
			return next(c)
		}
	}
}

// StatusOf reports the status a request ends with, including one that the
// error handler has not written yet.
func StatusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPCode
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return http.StatusInternalServerError
}
