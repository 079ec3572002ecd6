// Package metrics defines the Prometheus instrumentation for the encode path.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Encoding Prometheus metrics.
var (
	EncodeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staticembed",
			Name:      "encode_requests_total",
			Help:      "Total number of encode requests",
		},
		[]string{"backend", "model", "status"},
	)

	EncodeRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "staticembed",
			Name:      "encode_request_duration_seconds",
			Help:      "Encode request duration in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "model"},
	)

	EncodeTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staticembed",
			Name:      "encode_tokens_total",
			Help:      "Total tokens consumed by encode requests",
		},
		[]string{"backend", "model", "type"},
	)

	EncodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staticembed",
			Name:      "encode_errors_total",
			Help:      "Total encode errors",
		},
		[]string{"backend", "model", "error_type"},
	)

	BudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "staticembed",
			Name:      "budget_tokens_remaining",
			Help:      "Remaining token budget",
		},
		[]string{"backend", "period"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "staticembed",
			Name:      "encode_cache_total",
			Help:      "Encode cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registered bool

// Register registers the encoding metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(EncodeRequestsTotal)
	prometheus.MustRegister(EncodeRequestDuration)
	prometheus.MustRegister(EncodeTokensTotal)
	prometheus.MustRegister(EncodeErrorsTotal)
	prometheus.MustRegister(BudgetTokensRemaining)
	prometheus.MustRegister(CacheTotal)
	registered = true
}
