// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiptrace_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiptrace_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Shipment writes, by operation (create, patch, next, location, route, delete)
	ShipmentMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiptrace_shipment_mutations_total",
			Help: "Total number of shipment mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	ProgressOverrideDivergence = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiptrace_progress_override_divergence_total",
			Help: "Explicit progress overrides that disagree with the checkpoint index",
		},
	)

	// Route generation
	RouteCheckpoints = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shiptrace_route_checkpoints",
			Help:    "Number of checkpoints in generated routes",
			Buckets: []float64{0, 2, 4, 6, 8, 10},
		},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shiptrace_upstream_requests_total",
			Help: "Calls to the directions/geocoding provider",
		},
		[]string{"endpoint", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shiptrace_upstream_request_duration_seconds",
			Help:    "Latency of directions/geocoding provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shiptrace_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Live feed
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shiptrace_live_subscribers",
			Help: "Open live tracking websocket connections",
		},
	)

	LiveMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shiptrace_live_messages_dropped_total",
			Help: "Live tracking updates dropped because the broadcast buffer was full",
		},
	)
)

// RecordAPIRequest records a finished HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMutation records the outcome of a shipment write.
func RecordMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ShipmentMutations.WithLabelValues(operation, outcome).Inc()
}

// RecordUpstream records one provider call.
func RecordUpstream(endpoint string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	UpstreamDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
