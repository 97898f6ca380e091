package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the advisory pipeline.
type Metrics struct {
	Runs          *prometheus.CounterVec   // labels: trigger, outcome={success,failure}
	StageFailures *prometheus.CounterVec   // labels: stage
	StageDuration *prometheus.HistogramVec // labels: stage
	Segments      *prometheus.CounterVec   // labels: outcome={resolved,failed}
	GeocodeCalls  *prometheus.CounterVec   // labels: outcome={ok,http_error,status,empty}
	EventsPerRun  prometheus.Histogram
	LastSuccess   prometheus.Gauge
}

const namespace = "traffic_advisory"

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Terminal run failures by the stage that failed.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		Segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_segments_total",
			Help:      "Street segments by enrichment outcome.",
		}, []string{"outcome"}),
		GeocodeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		EventsPerRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "events_per_run",
			Help:      "Closure events extracted per successful run.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last persisted run.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.StageFailures,
		m.StageDuration,
		m.Segments,
		m.GeocodeCalls,
		m.EventsPerRun,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
