// Package metrics declares the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixer_status_transitions_total",
			Help: "Status transitions applied, by entity and edge",
		},
		[]string{"entity", "from", "to"},
	)

	OperationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixer_operation_rejections_total",
			Help: "Lifecycle operations rejected, by operation and error code",
		},
		[]string{"operation", "code"},
	)

	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixer_gateway_requests_total",
			Help: "Payment gateway calls, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fixer_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixer_webhook_events_total",
			Help: "Webhook events received, by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixer_notifications_delivered_total",
			Help: "Notification deliveries, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	DependencyUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fixer_dependency_up",
			Help: "1 when the last health probe of a dependency succeeded",
		},
		[]string{"dependency"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fixer_http_requests_total",
			Help: "HTTP requests served, by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fixer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	HealthShortCircuits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fixer_health_short_circuits_total",
			Help: "Requests refused because too many dependencies were down",
		},
	)
)
