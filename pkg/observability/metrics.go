// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the relay gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for AI provider latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and path.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status", "path"},
	)

	// RequestDuration records HTTP request duration in seconds by method and path.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "path"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// DispatchTotal counts completed dispatches by kind and the adapter that
	// produced the result ("fallback" when the cascade was exhausted).
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dispatch_total",
			Help: "Completed dispatches",
		},
		[]string{"kind", "adapter"},
	)

	// AttemptsTotal counts individual adapter attempts by outcome
	// (success, timeout, error).
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_adapter_attempts_total",
			Help: "Adapter attempts",
		},
		[]string{"adapter", "outcome"},
	)

	// AttemptLatency records adapter attempt latency in seconds.
	AttemptLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_adapter_attempt_latency_seconds",
			Help:    "Adapter attempt latency",
			Buckets: LLMBuckets,
		},
		[]string{"adapter"},
	)

	// AdapterSkippedTotal counts adapters skipped for missing credentials.
	AdapterSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_adapter_skipped_total",
			Help: "Adapters skipped (missing credential)",
		},
		[]string{"adapter"},
	)

	// FallbackTotal counts dispatches answered by the local fallback.
	FallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fallback_total",
			Help: "Dispatches answered by the local fallback",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		DispatchTotal,
		AttemptsTotal,
		AttemptLatency,
		AdapterSkippedTotal,
		FallbackTotal,
	)
}
