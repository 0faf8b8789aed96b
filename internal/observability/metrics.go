package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "do3se"

// Metrics holds the Prometheus counters, histograms, and gauges for model runs.
type Metrics struct {
	RunsCompleted   prometheus.Counter
	RunsFailed      prometheus.Counter
	RowsProcessed   prometheus.Counter
	RowsSkipped     prometheus.Counter
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Grid metrics.
	CellsProcessed          prometheus.Counter
	CellsFailed             prometheus.Counter
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
	GridCache               *prometheus.CounterVec // labels: result={hit,miss}

	// Distributed execution metrics.
	WorkersBusy prometheus.Gauge

	SummariesPublished prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total model runs that produced a resultset.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_failed_total",
			Help:      "Total model runs that ended in an error.",
		}),
		RowsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "Total input rows advanced through a kernel.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Total input rows skipped for missing values.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of one resolve, phenology and drive cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "Number of runs currently in progress.",
		}),
		CellsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cells_processed_total",
			Help:      "Total grid cells run successfully.",
		}),
		CellsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cells_failed_total",
			Help:      "Total grid cells skipped after a failure.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grid_batch_size",
			Help:      "Number of real cells per grid batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grid_batch_duration_seconds",
			Help:      "Duration of a complete grid batch.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		GridCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cache_total",
			Help:      "Grid variable cache lookups by result.",
		}, []string{"result"}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_busy",
			Help:      "Workers currently executing a planned run.",
		}),
		SummariesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_published_total",
			Help:      "Total run summaries written to the summary topic.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsCompleted,
		m.RunsFailed,
		m.RowsProcessed,
		m.RowsSkipped,
		m.RunDuration,
		m.PipelineRunning,
		m.CellsProcessed,
		m.CellsFailed,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.GridCache,
		m.WorkersBusy,
		m.SummariesPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
