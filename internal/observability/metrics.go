// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "patronage_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DonationsTotal counts accepted donations by amount denomination.
	DonationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_donations_total",
		Help: "Total number of donations recorded in the ledger",
	}, []string{"amount"})

	// DonationAmountTotal accumulates gross, fee and author shares.
	DonationAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_donation_amount_total",
		Help: "Sum of donated currency units by share",
	}, []string{"share"})

	// DonationRejections counts rejected submissions by error code.
	DonationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_donation_rejections_total",
		Help: "Donation submissions rejected before reaching the ledger",
	}, []string{"code"})

	// RankingBuilds counts ranking computations by scope and outcome.
	RankingBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_ranking_builds_total",
		Help: "Supporter rankings built by scope and outcome",
	}, []string{"scope", "outcome"})

	// RankingCacheResults counts ranking cache lookups by result (hit, miss, error).
	RankingCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_ranking_cache_results_total",
		Help: "Ranking cache lookups by result",
	}, []string{"result"})

	// LedgerEventsPublished counts outbound ledger events by transport and status.
	LedgerEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "patronage_ledger_events_published_total",
		Help: "Ledger events published by transport and status",
	}, []string{"transport", "status"})

	// ActiveWebSockets tracks currently open realtime connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "patronage_active_websockets",
		Help: "Number of open realtime WebSocket connections",
	})
)

// DatabaseMetrics records query latency for a named store.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// ObserveQuery records the latency of a database query.
func (*DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
