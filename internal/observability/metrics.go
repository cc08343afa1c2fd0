package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "station_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// forecasting service.
type Metrics struct {
	RunsTotal    *prometheus.CounterVec // labels: outcome={success,cache_hit,not_found,insufficient_data,alignment,data_error,canceled,error}
	RunDuration  prometheus.Histogram
	RunsInFlight prometheus.Gauge

	// Model fitting metrics.
	StageDuration  *prometheus.HistogramVec // labels: stage={load,build,trend,regressor,forecast}
	BoostingRounds prometheus.Histogram
	DegradedRuns   *prometheus.CounterVec // labels: reason={no_validation,no_test}

	// Feed metrics.
	FeedRows     *prometheus.GaugeVec   // labels: feed={ridership,stations,incidents}
	FeedRejected *prometheus.CounterVec // labels: feed={ridership,stations,incidents}

	// Result cache and publishing metrics.
	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss}
	ResultsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunsInFlight,
		m.StageDuration,
		m.BoostingRounds,
		m.DegradedRuns,
		m.FeedRows,
		m.FeedRejected,
		m.CacheLookups,
		m.ResultsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete forecast run, excluding cache hits.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Forecast runs currently executing.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each forecast stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		BoostingRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "boosting_rounds",
			Help:      "Trees kept by the count regressor after early stopping.",
			Buckets:   []float64{10, 50, 100, 200, 400, 600, 800, 1000, 1200},
		}),
		DegradedRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_runs_total",
			Help:      "Runs that trained with an empty validation or test partition.",
		}, []string{"reason"}),
		FeedRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_rows",
			Help:      "Rows accepted from each feed in the current snapshot.",
		}, []string{"feed"}),
		FeedRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_rejected_rows_total",
			Help:      "Feed rows discarded during normalization.",
		}, []string{"feed"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Forecast result cache lookups by result.",
		}, []string{"result"}),
		ResultsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_published_total",
			Help:      "Forecast results handed to the publisher by outcome.",
		}, []string{"outcome"}),
	}
}
