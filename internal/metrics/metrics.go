package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts dispatched requests by handler name and response status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeagent_requests_total",
			Help: "Total number of requests processed by the dispatcher.",
		},
		[]string{"request", "status"},
	)

	// RequestDuration observes time spent waiting on handlers, by outcome.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgeagent_request_duration_seconds",
			Help:    "Time from handler invocation to dispatcher resolution.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"request", "outcome"},
	)

	// RequestsInFlight tracks handler invocations the dispatcher is waiting on.
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edgeagent_requests_in_flight",
			Help: "Number of handler invocations currently awaited.",
		},
	)

	// HTTPRequestsTotal counts API requests by route pattern, method and code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeagent_http_requests_total",
			Help: "Total number of HTTP requests handled by the API server.",
		},
		[]string{"path", "method", "code"},
	)

	// ModuleRestartsTotal counts module restarts by result.
	ModuleRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgeagent_module_restarts_total",
			Help: "Total number of module restart attempts.",
		},
		[]string{"module", "result"},
	)
)

// UnknownRequest is the label used for names that matched no handler, so
// arbitrary caller input cannot grow label cardinality.
const UnknownRequest = "unknown"
