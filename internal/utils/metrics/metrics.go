package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newebpay_bridge"

type Metrics struct {
	PaymentsCreated         *prometheus.CounterVec
	Notifications           *prometheus.CounterVec
	IdempotencyChecks       *prometheus.CounterVec
	RateLimitRejections     *prometheus.CounterVec
	SubscriptionTransitions *prometheus.CounterVec
	GatewayCalls            *prometheus.HistogramVec
	HTTPDuration            *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PaymentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Outbound payment forms built, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Inbound processor notifications, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		IdempotencyChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_checks_total",
			Help:      "Idempotency reservations, by result.",
		}, []string{"result"}),
		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by endpoint class.",
		}, []string{"endpoint"}),
		SubscriptionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_transitions_total",
			Help:      "Applied subscription state transitions.",
		}, []string{"from", "to"}),
		GatewayCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_call_duration_seconds",
			Help:      "Latency of server-to-server processor calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
