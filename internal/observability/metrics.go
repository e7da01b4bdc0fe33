package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_trends"

// Metrics holds the Prometheus counters, histograms, and gauges for the trend pipeline.
type Metrics struct {
	RowsIngested    prometheus.Counter
	RowsRejected    prometheus.Counter
	WindowsBuilt    *prometheus.CounterVec // labels: granularity={week,month}
	UndefinedStdDev prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Run metrics.
	Runs            *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	ResultsExported *prometheus.CounterVec // labels: table

	// Geocoding metrics.
	ContinentResolutions *prometheus.CounterVec // labels: source={local,remote,unresolved}
	GeocodeRequests      *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache         *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration   prometheus.Histogram
	GeocodeEnabled       prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.RowsIngested,
		m.RowsRejected,
		m.WindowsBuilt,
		m.UndefinedStdDev,
		m.PipelineRunning,
		m.Runs,
		m.RunDuration,
		m.ResultsExported,
		m.ContinentResolutions,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      help("Total time series rows read from the input."),
		}),
		RowsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      help("Total malformed input rows skipped during ingestion."),
		}),
		WindowsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_built_total",
			Help:      help("Calendar windows built from punctual series by granularity."),
		}, []string{"granularity"}),
		UndefinedStdDev: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undefined_stddev_total",
			Help:      help("Statistics rows whose merged series was too short for a sample standard deviation."),
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 while the serve loop is active, 0 otherwise."),
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      help("Pipeline runs by outcome."),
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      help("Duration of a complete ingest-compute-export run."),
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		ResultsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_exported_total",
			Help:      help("Result rows handed to the exporter by table."),
		}, []string{"table"}),
		ContinentResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "continent_resolutions_total",
			Help:      help("Coordinate to continent classifications by source."),
		}, []string{"source"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      help("Reverse geocoding API requests by outcome."),
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      help("Reverse geocoding cache lookups by result."),
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      help("Reverse geocoding API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      help("1 when the remote geocoding fallback is enabled, 0 otherwise."),
		}),
	}
}
