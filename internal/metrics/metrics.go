// Package metrics exposes Prometheus metrics for the backoffice service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP server
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Upstream backend
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_upstream_requests_total",
			Help: "Total requests sent to the upstream REST backend",
		},
		[]string{"method", "status"},
	)

	upstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backoffice_upstream_request_duration_seconds",
			Help:    "Upstream request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	schemaMismatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_upstream_schema_mismatch_total",
			Help: "Upstream responses rejected because their shape did not match",
		},
	)

	// Query cache
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_cache_lookups_total",
			Help: "Query cache lookups by outcome (hit, stale, miss)",
		},
		[]string{"outcome"},
	)

	cacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_cache_invalidated_entries_total",
			Help: "Query cache entries removed by invalidation",
		},
	)

	cacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_cache_evicted_entries_total",
			Help: "Query cache entries removed by garbage collection",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backoffice_cache_entries",
			Help: "Number of entries currently held by the query cache",
		},
	)

	// Mutations
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backoffice_mutations_total",
			Help: "Total mutations by name and result",
		},
		[]string{"mutation", "result"},
	)

	stalePagesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backoffice_stale_pages_discarded_total",
			Help: "Pages dropped because they belonged to an abandoned list generation",
		},
	)

	// Sessions
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backoffice_sessions_active",
			Help: "Number of live screen sessions",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpstreamRequest records a request sent to the backend. Status 0 means a transport failure.
func RecordUpstreamRequest(method string, status int, duration time.Duration) {
	upstreamRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	upstreamRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func RecordSchemaMismatch() {
	schemaMismatchTotal.Inc()
}

// RecordCacheLookup records a query cache lookup outcome: "hit", "stale" or "miss".
func RecordCacheLookup(outcome string) {
	cacheLookupsTotal.WithLabelValues(outcome).Inc()
}

func RecordCacheInvalidation(n int) {
	cacheInvalidationsTotal.Add(float64(n))
}

func RecordCacheEviction(n int) {
	cacheEvictionsTotal.Add(float64(n))
}

func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordMutation records a create/update/delete outcome.
func RecordMutation(name string, success bool) {
	result := "success"
	if !success {
		result = "error"
	}
	mutationsTotal.WithLabelValues(name, result).Inc()
}

func RecordStalePageDiscarded() {
	stalePagesDiscarded.Inc()
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}
