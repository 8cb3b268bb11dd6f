// Package metrics provides Prometheus metrics for the prediction pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics collects and exposes pipeline-related Prometheus metrics.
type PipelineMetrics struct {
	registry *prometheus.Registry

	// Fetch metrics
	FetchAttempts *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheStale  *prometheus.CounterVec

	// Ledger metrics
	LedgerRows    prometheus.Gauge
	RowsDropped   *prometheus.CounterVec
	RebuildsTotal *prometheus.CounterVec

	// Prediction metrics
	PredictionsTotal  *prometheus.CounterVec
	FixturesSkipped   *prometheus.CounterVec
	ModelAccuracy     prometheus.Gauge
	RetrainingFlagged prometheus.Gauge
}

// NewPipelineMetrics creates a new pipeline metrics collector.
func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()

	pm := &PipelineMetrics{
		registry: registry,

		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_fetch_attempts_total",
				Help: "Total number of outbound fetch attempts",
			},
			[]string{"source"},
		),
		FetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_fetch_failures_total",
				Help: "Total number of terminally failed fetches",
			},
			[]string{"source"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "goalcast_fetch_duration_seconds",
				Help:    "Outbound fetch duration including retries",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"source"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_cache_hits_total",
				Help: "Total number of fresh cache reads",
			},
			[]string{"kind"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"kind"},
		),
		CacheStale: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_cache_stale_fallbacks_total",
				Help: "Total number of stale cache entries served as fallback",
			},
			[]string{"kind"},
		),

		LedgerRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "goalcast_ledger_rows",
				Help: "Number of rows in the enriched match ledger",
			},
		),
		RowsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_rows_dropped_total",
				Help: "Total number of raw rows dropped during cleaning",
			},
			[]string{"reason"},
		),
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_ledger_rebuilds_total",
				Help: "Total number of ledger rebuild runs",
			},
			[]string{"status"},
		),

		PredictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_predictions_total",
				Help: "Total number of predictions served",
			},
			[]string{"league", "outcome"},
		),
		FixturesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goalcast_fixtures_skipped_total",
				Help: "Total number of fixtures skipped during prediction",
			},
			[]string{"reason"},
		),
		ModelAccuracy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "goalcast_model_recent_accuracy",
				Help: "Accuracy over the most recent reconciled predictions",
			},
		),
		RetrainingFlagged: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "goalcast_retraining_flagged",
				Help: "Whether the model monitor has flagged retraining (1=yes, 0=no)",
			},
		),
	}

	pm.registerAll()

	return pm
}

func (pm *PipelineMetrics) registerAll() {
	pm.registry.MustRegister(
		pm.FetchAttempts,
		pm.FetchFailures,
		pm.FetchDuration,
		pm.CacheHits,
		pm.CacheMisses,
		pm.CacheStale,
		pm.LedgerRows,
		pm.RowsDropped,
		pm.RebuildsTotal,
		pm.PredictionsTotal,
		pm.FixturesSkipped,
		pm.ModelAccuracy,
		pm.RetrainingFlagged,
	)
}

// Registry returns the prometheus registry.
func (pm *PipelineMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// --- Helper methods for recording metrics ---

// RecordFetch records one completed fetch, successful or not.
func (pm *PipelineMetrics) RecordFetch(source string, durationSec float64, failed bool) {
	pm.FetchAttempts.WithLabelValues(source).Inc()
	if failed {
		pm.FetchFailures.WithLabelValues(source).Inc()
	}
	if durationSec > 0 {
		pm.FetchDuration.WithLabelValues(source).Observe(durationSec)
	}
}

// RecordCacheRead records a cache lookup result.
func (pm *PipelineMetrics) RecordCacheRead(kind string, hit bool) {
	if hit {
		pm.CacheHits.WithLabelValues(kind).Inc()
	} else {
		pm.CacheMisses.WithLabelValues(kind).Inc()
	}
}

// RecordStaleFallback records a stale cache entry served in place of live data.
func (pm *PipelineMetrics) RecordStaleFallback(kind string) {
	pm.CacheStale.WithLabelValues(kind).Inc()
}

// RecordRebuild records a ledger rebuild run.
func (pm *PipelineMetrics) RecordRebuild(status string, rows int) {
	pm.RebuildsTotal.WithLabelValues(status).Inc()
	if rows >= 0 {
		pm.LedgerRows.Set(float64(rows))
	}
}

// RecordDroppedRow records a raw row dropped during cleaning.
func (pm *PipelineMetrics) RecordDroppedRow(reason string) {
	pm.RowsDropped.WithLabelValues(reason).Inc()
}

// RecordPrediction records a served prediction.
func (pm *PipelineMetrics) RecordPrediction(league, outcome string) {
	pm.PredictionsTotal.WithLabelValues(league, outcome).Inc()
}

// RecordSkippedFixture records a fixture skipped during prediction.
func (pm *PipelineMetrics) RecordSkippedFixture(reason string) {
	pm.FixturesSkipped.WithLabelValues(reason).Inc()
}

// UpdateMonitor updates the model monitor gauges.
func (pm *PipelineMetrics) UpdateMonitor(accuracy float64, retrain bool) {
	pm.ModelAccuracy.Set(accuracy)
	if retrain {
		pm.RetrainingFlagged.Set(1)
	} else {
		pm.RetrainingFlagged.Set(0)
	}
}

// Global instance for convenience
var defaultMetrics *PipelineMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *PipelineMetrics {
	once.Do(func() {
		defaultMetrics = NewPipelineMetrics()
	})
	return defaultMetrics
}
