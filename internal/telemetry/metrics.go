// Package telemetry exposes engine metrics in Prometheus format.
// Every recorder method is safe to call on a nil *Metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lmssearch"

// Metrics holds all Prometheus collectors of the engine.
type Metrics struct {
	// Query cache
	CacheRequests      *prometheus.CounterVec
	CacheEvictions     prometheus.Counter
	CacheInvalidations prometheus.Counter

	// Search
	SearchDuration    *prometheus.HistogramVec
	ZeroResultQueries *prometheus.CounterVec

	// Sync
	SyncCycles         *prometheus.CounterVec
	SyncDuration       prometheus.Histogram
	DocumentsSubmitted *prometheus.CounterVec
	BatchFailures      *prometheus.CounterVec

	// Background loop
	AdaptiveInterval prometheus.Gauge
	ChangedRows      prometheus.Gauge

	// Health
	HealthChecks *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_requests_total",
				Help:      "Query cache lookups by collection and result (hit, miss).",
			},
			[]string{"collection", "result"},
		),
		CacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_evictions_total",
				Help:      "Query cache entries evicted by capacity.",
			},
		),
		CacheInvalidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_invalidations_total",
				Help:      "Full query cache purges after sync.",
			},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Backend search latency on cache misses.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"collection"},
		),
		ZeroResultQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "zero_result_queries_total",
				Help:      "Backend searches that returned no hits.",
			},
			[]string{"collection"},
		),
		SyncCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_cycles_total",
				Help:      "Sync requests by outcome.",
			},
			[]string{"result"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Duration of completed sync cycles.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		DocumentsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_submitted_total",
				Help:      "Documents submitted to the search backend.",
			},
			[]string{"collection"},
		),
		BatchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_failures_total",
				Help:      "Document batches the backend rejected.",
			},
			[]string{"collection"},
		),
		AdaptiveInterval: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "adaptive_interval_seconds",
				Help:      "Current background sync interval.",
			},
		),
		ChangedRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "changed_rows",
				Help:      "Rows changed since the oldest watermark at the last tick.",
			},
		),
		HealthChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "health_checks_total",
				Help:      "Health probes by result (healthy, unhealthy).",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheRequests, m.CacheEvictions, m.CacheInvalidations,
			m.SearchDuration, m.ZeroResultQueries,
			m.SyncCycles, m.SyncDuration, m.DocumentsSubmitted, m.BatchFailures,
			m.AdaptiveInterval, m.ChangedRows,
			m.HealthChecks,
		)
	}
	return m
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(collection string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(collection, result).Inc()
}

// CacheEvicted records a capacity eviction.
func (m *Metrics) CacheEvicted() {
	if m == nil {
		return
	}
	m.CacheEvictions.Inc()
}

// CacheInvalidated records a full purge.
func (m *Metrics) CacheInvalidated() {
	if m == nil {
		return
	}
	m.CacheInvalidations.Inc()
}

// SearchCompleted records a backend search.
func (m *Metrics) SearchCompleted(collection string, d time.Duration, hits int) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(collection).Observe(d.Seconds())
	if hits == 0 {
		m.ZeroResultQueries.WithLabelValues(collection).Inc()
	}
}

// SyncOutcome records a sync request outcome such as "ok", "partial",
// "failed" or a skip reason.
func (m *Metrics) SyncOutcome(result string) {
	if m == nil {
		return
	}
	m.SyncCycles.WithLabelValues(result).Inc()
}

// SyncCompleted records the duration of a finished cycle.
func (m *Metrics) SyncCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.SyncDuration.Observe(d.Seconds())
}

// BatchSubmitted records one batch handed to the backend.
func (m *Metrics) BatchSubmitted(collection string, docs int, err error) {
	if m == nil {
		return
	}
	m.DocumentsSubmitted.WithLabelValues(collection).Add(float64(docs))
	if err != nil {
		m.BatchFailures.WithLabelValues(collection).Inc()
	}
}

// LoopTick records the adaptive loop state after a tick.
func (m *Metrics) LoopTick(interval time.Duration, changed int64) {
	if m == nil {
		return
	}
	m.AdaptiveInterval.Set(interval.Seconds())
	m.ChangedRows.Set(float64(changed))
}

// HealthChecked records a health probe result.
func (m *Metrics) HealthChecked(healthy bool) {
	if m == nil {
		return
	}
	result := "unhealthy"
	if healthy {
		result = "healthy"
	}
	m.HealthChecks.WithLabelValues(result).Inc()
}
