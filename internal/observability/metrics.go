package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	WebSocketConnectionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of active WebSocket connections",
		},
	)

	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_sent_total",
			Help: "Send attempts by result",
		},
		[]string{"result"},
	)

	FanoutDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_fanout_delivered_total",
			Help: "Frames enqueued to local connections by the fanout coordinator",
		},
	)

	FanoutDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fanout_dropped_total",
			Help: "Broker events dropped by the fanout coordinator",
		},
		[]string{"reason"},
	)

	BrokerPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_broker_publish_failures_total",
			Help: "Failed broker publishes; local delivery still happened",
		},
		[]string{"backend"},
	)

	BrokerSubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_broker_subscriptions_active",
			Help: "Rooms this instance is subscribed to on the broker",
		},
	)

	StoreAppendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_store_append_duration_seconds",
			Help:    "Latency of durable message appends",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "result"},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Requests rejected by the per-user rate limiter",
		},
		[]string{"action"},
	)

	DependencyUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_dependency_up",
			Help: "1 when the last health probe of a dependency succeeded",
		},
		[]string{"dependency"},
	)
)
