package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Connection outcomes used as the outcome label.
const (
	OutcomeResponded   = "responded"
	OutcomeEarlyClose  = "early_close"
	OutcomeProtocol    = "protocol_error"
	OutcomeTransport   = "transport_error"
	OutcomeAggregation = "aggregation_error"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barcoded",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total ops HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "barcoded",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Ops HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	connections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barcoded",
			Name:      "connections_total",
			Help:      "Query connections by final outcome.",
		},
		[]string{"outcome"},
	)
	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "barcoded",
			Name:      "active_connections",
			Help:      "Query connections currently being handled.",
		},
	)
	rowsServed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "barcoded",
			Name:      "rows_total",
			Help:      "Rows written in responses.",
		},
	)
	aggregateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "barcoded",
			Name:      "aggregate_duration_seconds",
			Help:      "Time spent scanning date directories for one request.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			connections,
			activeConnections,
			rowsServed,
			aggregateDuration,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// ConnectionOpened bumps the active gauge and returns the matching decrement.
func ConnectionOpened() func() {
	RegisterMetrics()
	activeConnections.Inc()
	return activeConnections.Dec
}

func RecordConnection(outcome string, rows int) {
	RegisterMetrics()
	connections.WithLabelValues(outcome).Inc()
	if rows > 0 {
		rowsServed.Add(float64(rows))
	}
}

func RecordAggregate(duration time.Duration) {
	RegisterMetrics()
	aggregateDuration.Observe(duration.Seconds())
}
