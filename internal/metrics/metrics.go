package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghdash",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by ghdash",
		},
		[]string{"route", "method", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ghdash",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests handled by ghdash",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghdash",
			Name:      "cache_hits_total",
			Help:      "Total cache hits per upstream resource kind",
		},
		[]string{"resource"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghdash",
			Name:      "cache_misses_total",
			Help:      "Total cache misses per upstream resource kind",
		},
		[]string{"resource"},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ghdash",
			Name:      "cache_entries",
			Help:      "Live entries in the response cache after the last sweep",
		},
	)

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghdash",
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the GitHub API by status code",
		},
		[]string{"code"},
	)

	upstreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ghdash",
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of requests sent to the GitHub API",
			Buckets:   prometheus.DefBuckets,
		},
	)

	dashboardLegFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghdash",
			Name:      "dashboard_leg_failures_total",
			Help:      "Dashboard legs that completed with a non-success status",
		},
		[]string{"leg"},
	)

	digestRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ghdash",
			Name:      "digest_requests_total",
			Help:      "Digest requests by period and outcome",
		},
		[]string{"period", "outcome"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ghdash",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	initOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			requestTotal,
			requestDuration,
			cacheHits,
			cacheMisses,
			cacheEntries,
			upstreamRequests,
			upstreamDuration,
			dashboardLegFailures,
			digestRequests,
			breakerState,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveRequest(route, method, code string, d time.Duration) {
	requestTotal.WithLabelValues(route, method, code).Inc()
	requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func IncCacheHit(resource string) {
	cacheHits.WithLabelValues(resource).Inc()
}

func IncCacheMiss(resource string) {
	cacheMisses.WithLabelValues(resource).Inc()
}

func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

func ObserveUpstream(code string, d time.Duration) {
	upstreamRequests.WithLabelValues(code).Inc()
	upstreamDuration.Observe(d.Seconds())
}

func IncDashboardLegFailure(leg string) {
	dashboardLegFailures.WithLabelValues(leg).Inc()
}

func IncDigestRequest(period, outcome string) {
	digestRequests.WithLabelValues(period, outcome).Inc()
}

func SetBreakerState(name string, value float64) {
	breakerState.WithLabelValues(name).Set(value)
}
