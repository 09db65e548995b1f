// Package xmetrics exposes Prometheus counters and gauges for the store,
// transaction manager, and connection registry.
package xmetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "xacto_connections_active",
			Help: "Number of client connections currently registered",
		},
	)

	TransactionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xacto_transactions_created_total",
			Help: "Total number of transactions created",
		},
	)

	TransactionsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xacto_transactions_finalized_total",
			Help: "Total number of transactions reaching a terminal status, by status",
		},
		[]string{"status"},
	)

	WriteWriteConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xacto_write_write_conflicts_total",
			Help: "Total number of PUTs aborted due to a stale snapshot",
		},
	)

	CascadeAborts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xacto_cascade_aborts_total",
			Help: "Total number of transactions aborted because a dependency aborted",
		},
	)

	GCPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xacto_gc_passes_total",
			Help: "Total number of version-chain GC passes run",
		},
	)

	ChainLength = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xacto_version_chain_length",
			Help:    "Observed version chain length at GC time",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	CommitLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xacto_commit_latency_seconds",
			Help:    "Time spent blocked in Commit waiting on dependencies",
			Buckets: prometheus.DefBuckets,
		},
	)

	ProtocolErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xacto_protocol_errors_total",
			Help: "Total number of sessions ended by a malformed packet or I/O error",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		TransactionsCreated,
		TransactionsFinalized,
		WriteWriteConflicts,
		CascadeAborts,
		GCPasses,
		ChainLength,
		CommitLatency,
		ProtocolErrors,
	)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing an operation before recording it to a
// histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}
