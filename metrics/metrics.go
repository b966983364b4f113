// Package metrics bundles the Prometheus collectors shared by the search and rank stages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for one run.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ListingsTotal     prometheus.Counter
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	CacheTotal        *prometheus.CounterVec
	SubQueriesTotal   *prometheus.CounterVec
	RankAttemptsTotal *prometheus.CounterVec
	ReconciledTotal   *prometheus.CounterVec
	RankDuration      prometheus.Histogram
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpicks_source_requests_total",
			Help: "Total HTTP requests issued to the listings site.",
		},
		[]string{"page"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carpicks_source_request_duration_seconds",
			Help:    "HTTP request latency for listings site requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	listings := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "carpicks_source_listings_total",
			Help: "Total number of listings extracted from detail pages.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "carpicks_source_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpicks_source_errors_total",
			Help: "Total number of listings site errors by type.",
		},
		[]string{"error_type"},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpicks_cache_operations_total",
			Help: "Result cache lookups and writes by outcome.",
		},
		[]string{"outcome"},
	)
	subQueries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpicks_subqueries_total",
			Help: "Executed sub-queries by outcome.",
		},
		[]string{"outcome"},
	)
	rankAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpicks_rank_attempts_total",
			Help: "AI service calls made by the ranker by outcome.",
		},
		[]string{"outcome"},
	)
	reconciled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carpicks_reconciled_picks_total",
			Help: "AI picks by reconciliation outcome.",
		},
		[]string{"outcome"},
	)
	rankDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carpicks_rank_duration_seconds",
			Help:    "Latency of AI service calls.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	registry.MustRegister(requests, requestDuration, listings, retries, errorsTotal,
		cacheTotal, subQueries, rankAttempts, reconciled, rankDuration)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ListingsTotal:     listings,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		CacheTotal:        cacheTotal,
		SubQueriesTotal:   subQueries,
		RankAttemptsTotal: rankAttempts,
		ReconciledTotal:   reconciled,
		RankDuration:      rankDuration,
	}
}

// IncRequest increments the requests counter for a page kind (search or detail).
func (m *Metrics) IncRequest(page string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(page).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncListings increments the extracted listings counter.
func (m *Metrics) IncListings() {
	if m == nil {
		return
	}
	m.ListingsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncCache records a cache hit, miss, stale or write.
func (m *Metrics) IncCache(outcome string) {
	if m == nil {
		return
	}
	m.CacheTotal.WithLabelValues(outcome).Inc()
}

// IncSubQuery records a sub-query outcome (cached, fetched, failed).
func (m *Metrics) IncSubQuery(outcome string) {
	if m == nil {
		return
	}
	m.SubQueriesTotal.WithLabelValues(outcome).Inc()
}

// IncRankAttempt records one AI service call outcome.
func (m *Metrics) IncRankAttempt(outcome string) {
	if m == nil {
		return
	}
	m.RankAttemptsTotal.WithLabelValues(outcome).Inc()
}

// AddReconciled adds n picks to a reconciliation outcome.
func (m *Metrics) AddReconciled(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReconciledTotal.WithLabelValues(outcome).Add(float64(n))
}

// ObserveRank records an AI service call duration.
func (m *Metrics) ObserveRank(d time.Duration) {
	if m == nil {
		return
	}
	m.RankDuration.Observe(d.Seconds())
}
