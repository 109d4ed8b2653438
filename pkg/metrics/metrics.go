package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blogsvc"

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	// BlogOperations counts store service calls by outcome: ok, not_found, invalid, backend_error.
	BlogOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "operations_total", Help: "Blog store operations by name and outcome."},
		[]string{"op", "result"},
	)
	AutoSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "autosave_total", Help: "Auto-save triggers by outcome: saved, failed, skipped_inflight, skipped_empty."},
		[]string{"result"},
	)
	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_invalidations_total", Help: "Invalidated view paths by origin (local or remote)."},
		[]string{"source"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(BlogOperations)
	reg.MustRegister(AutoSaves)
	reg.MustRegister(CacheInvalidations)
}
