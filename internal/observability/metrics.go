// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indexer.
type Metrics struct {
	// Replay metrics
	EventsProcessed   *prometheus.CounterVec
	EventsSkipped     prometheus.Counter
	ReplayCycles      *prometheus.CounterVec
	ReplayDuration    prometheus.Histogram
	UnprocessedEvents prometheus.Gauge
	HighestBlockSeen  prometheus.Gauge

	// Chain metrics
	RPCCallLatency   *prometheus.HistogramVec
	WSMessageLatency prometheus.Histogram

	// Scoring metrics
	SnapshotsCreated  *prometheus.CounterVec
	SnapshotsScored   *prometheus.CounterVec
	SnapshotsDeferred prometheus.Counter
	PendingSnapshots  *prometheus.GaugeVec
	ScoringDuration   *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulReplay  prometheus.Gauge
	LastSuccessfulScoring prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "starkdex_indexer"
	}

	return &Metrics{
		// Replay metrics
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "events_processed_total",
			Help:      "Total number of raw events applied by type",
		}, []string{"event_type"}),
		EventsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "events_skipped_total",
			Help:      "Total number of events skipped for unknown type",
		}),
		ReplayCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "cycles_total",
			Help:      "Total number of replay cycles by status",
		}, []string{"status"}),
		ReplayDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "cycle_duration_seconds",
			Help:      "Replay cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		UnprocessedEvents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "unprocessed_events",
			Help:      "Number of staged events awaiting replay",
		}),
		HighestBlockSeen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "highest_block_seen",
			Help:      "Highest Starknet block number seen",
		}),

		// Chain metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "starknet",
			Name:      "rpc_call_latency_seconds",
			Help:      "Starknet RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSMessageLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "starknet",
			Name:      "ws_message_latency_seconds",
			Help:      "WebSocket message processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Scoring metrics
		SnapshotsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "snapshots_created_total",
			Help:      "Total number of scoring snapshots created by source",
		}, []string{"source"}),
		SnapshotsScored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "snapshots_scored_total",
			Help:      "Total number of snapshots scored by contest",
		}, []string{"contest"}),
		SnapshotsDeferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "snapshots_deferred_total",
			Help:      "Total number of backfill positions deferred for missing blocks",
		}),
		PendingSnapshots: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "pending_snapshots",
			Help:      "Number of unscored snapshots by contest",
		}, []string{"contest"}),
		ScoringDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "duration_seconds",
			Help:      "Scoring pass duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"contest"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulReplay: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_replay_timestamp",
			Help:      "Unix timestamp of last successful replay cycle",
		}),
		LastSuccessfulScoring: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scoring_timestamp",
			Help:      "Unix timestamp of last successful scoring pass",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventProcessed increments the processed counter for an event type.
func RecordEventProcessed(eventType string) {
	DefaultMetrics.EventsProcessed.WithLabelValues(eventType).Inc()
}

// RecordEventSkipped increments the unknown-type skip counter.
func RecordEventSkipped() {
	DefaultMetrics.EventsSkipped.Inc()
}

// RecordReplayCycle records one replay cycle.
func RecordReplayCycle(status string, durationSeconds float64) {
	DefaultMetrics.ReplayCycles.WithLabelValues(status).Inc()
	DefaultMetrics.ReplayDuration.Observe(durationSeconds)
}

// UpdateUnprocessedEvents updates the staged event backlog gauge.
func UpdateUnprocessedEvents(count int) {
	DefaultMetrics.UnprocessedEvents.Set(float64(count))
}

// UpdateHighestBlock updates the highest block seen gauge.
func UpdateHighestBlock(block int64) {
	DefaultMetrics.HighestBlockSeen.Set(float64(block))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordSnapshotCreated increments the snapshot counter for a source
// ("event", "cron" or "backfill").
func RecordSnapshotCreated(source string) {
	DefaultMetrics.SnapshotsCreated.WithLabelValues(source).Inc()
}

// RecordScoringPass records one scoring pass for a contest.
func RecordScoringPass(contest string, scored int, durationSeconds float64) {
	DefaultMetrics.SnapshotsScored.WithLabelValues(contest).Add(float64(scored))
	DefaultMetrics.ScoringDuration.WithLabelValues(contest).Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
