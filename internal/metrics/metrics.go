package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesProcessed tracks broker messages handled by the worker
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microgate_messages_processed_total",
			Help: "Total number of broker messages processed",
		},
		[]string{"pattern", "outcome"},
	)

	// ExceptionsCaught tracks failures normalized by the exception filter
	ExceptionsCaught = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microgate_exceptions_caught_total",
			Help: "Total number of exceptions caught while processing messages",
		},
		[]string{"transport", "status"},
	)

	// MessageSettlements tracks acks and nacks sent to the broker on failure paths
	MessageSettlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microgate_message_settlements_total",
			Help: "Total number of failed messages acked or nacked",
		},
		[]string{"action"},
	)

	// RetriesExhausted tracks operations that hit the retry limit
	RetriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microgate_retries_exhausted_total",
			Help: "Total number of operations that exhausted their retry attempts",
		},
		[]string{"operation"},
	)

	// GatewayRequests tracks HTTP requests served by the gateway
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "microgate_gateway_requests_total",
			Help: "Total number of gateway HTTP requests",
		},
		[]string{"route", "status"},
	)

	// BrokerRequestLatency tracks gateway round trips over the broker
	BrokerRequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "microgate_broker_request_latency_seconds",
			Help:    "Broker request/reply latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pattern"},
	)

	// DBConnectionPoolUsage tracks the percentage of used connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "microgate_db_connection_pool_usage_percent",
			Help: "Percentage of database connections in use",
		},
	)
)
