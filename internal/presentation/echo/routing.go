package echo

import (
	echofw "github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vibepay/newebpay-bridge/internal/application/ratelimit"
	"github.com/vibepay/newebpay-bridge/internal/application/use_cases"
	"github.com/vibepay/newebpay-bridge/internal/presentation/echo/handlers"
	"github.com/vibepay/newebpay-bridge/internal/presentation/echo/middleware"
	"github.com/vibepay/newebpay-bridge/internal/utils/metrics"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Dependencies struct {
	Container   *use_cases.Container
	DB          *gorm.DB
	Log         *zap.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	ServiceName string
}

func ConfigureRoutes(e *echofw.Echo, deps Dependencies) {
	e.Use(middleware.Recovery(deps.Log))
	e.Use(otelecho.Middleware(deps.ServiceName))
	e.Use(middleware.TraceID)
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(middleware.Metrics(deps.Metrics))

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Container.Idempotency, deps.Log)
	e.GET("/health", healthHandler.Check)
	if deps.Gatherer != nil {
		e.GET("/metrics", echofw.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	query := middleware.RateLimit(deps.Container.Limiter, ratelimit.EndpointQuery)

	paymentHandler := handlers.NewPaymentHandler(deps.Container)
	v1 := e.Group("/v1")
	v1.POST("/payments", paymentHandler.CreatePayment)
	v1.GET("/orders/:orderNo", paymentHandler.GetOrder, query)
	v1.POST("/orders/:orderNo/reconcile", paymentHandler.ReconcileOrder, query)
	v1.GET("/idempotency/:key", paymentHandler.GetByIdempotencyKey, query)

	subscriptionHandler := handlers.NewSubscriptionHandler(deps.Container)
	v1.POST("/subscriptions", subscriptionHandler.Create)
	v1.GET("/subscriptions", subscriptionHandler.List, query)
	v1.GET("/subscriptions/:id", subscriptionHandler.Get, query)
	v1.POST("/subscriptions/:id/suspend", subscriptionHandler.Alter(use_cases.ActionSuspend))
	v1.POST("/subscriptions/:id/resume", subscriptionHandler.Alter(use_cases.ActionResume))
	v1.POST("/subscriptions/:id/cancel", subscriptionHandler.Alter(use_cases.ActionCancel))

	webhookHandler := handlers.NewWebhookHandler(deps.Container, deps.Log)
	webhooks := e.Group("/webhooks/newebpay")
	webhooks.POST("/notify", webhookHandler.PaymentNotify)
	webhooks.POST("/period", webhookHandler.FirstAuthorization)
	webhooks.POST("/period-notify", webhookHandler.PeriodNotify)
}
