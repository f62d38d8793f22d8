package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growmate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "growmate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growmate_ai_requests_total",
			Help: "Total number of AI gateway requests by mode and outcome.",
		},
		[]string{"mode", "status"},
	)

	AIProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "growmate_ai_provider_duration_seconds",
			Help:    "Latency of generateContent calls to the AI provider.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45},
		},
		[]string{"model"},
	)

	QuotaRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growmate_quota_rejections_total",
			Help: "Total number of AI requests rejected by the daily quota.",
		},
	)

	QuotaDegradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growmate_quota_degraded_total",
			Help: "Total number of AI requests admitted fail-open after a storage error.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AIRequestsTotal,
		AIProviderDuration,
		QuotaRejectionsTotal,
		QuotaDegradedTotal,
	)
}
