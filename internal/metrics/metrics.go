package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submission metrics
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrelay_submissions_total",
			Help: "Total number of submissions received",
		},
		[]string{"form_type", "outcome"},
	)

	DuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formrelay_duplicates_total",
			Help: "Total number of submissions short-circuited as duplicates",
		},
	)

	// Forwarding metrics
	ForwardAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "formrelay_forward_attempts_total",
			Help: "Total number of upstream forward attempts",
		},
		[]string{"status_class"},
	)

	ForwardFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formrelay_forward_failures_total",
			Help: "Total number of submissions that exhausted the retry budget",
		},
	)

	UpstreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "formrelay_upstream_duration_seconds",
			Help:    "Duration of upstream forward attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Failure-replay queue metrics
	DLQWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formrelay_dlq_writes_total",
			Help: "Total number of failure artifacts written to disk",
		},
	)

	// Dedup cache metrics
	DedupEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "formrelay_dedup_entries",
			Help: "Current number of live entries in the dedup cache",
		},
	)

	// Async queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "formrelay_queue_depth",
			Help: "Current depth of the async delivery queue",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "formrelay_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)
)

// StatusClass buckets an HTTP status code for the forward-attempts
// counter. A zero status means the attempt never produced a response.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "network"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 200 && code < 300:
		return "2xx"
	default:
		return "other"
	}
}
