package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lakeattr"

// Metrics holds the Prometheus counters and histograms for a pipeline run.
// A batch CLI run has no scrape endpoint, so the registry is written to a
// node-exporter textfile at exit.
type Metrics struct {
	registry *prometheus.Registry

	GEVFits            *prometheus.CounterVec   // labels: purpose={stationary,shift,bootstrap}, outcome={success,diverged}
	BootstrapResamples *prometheus.CounterVec   // labels: outcome={success,failed}
	InstabilityFlags   *prometheus.CounterVec   // labels: flag
	StageDuration      *prometheus.HistogramVec // labels: stage
	StageFailures      *prometheus.CounterVec   // labels: stage
}

// NewMetrics creates and registers all pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GEVFits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gev_fits_total",
			Help:      "GEV maximum likelihood fits by purpose and outcome.",
		}, []string{"purpose", "outcome"}),
		BootstrapResamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_resamples_total",
			Help:      "Bootstrap resamples by outcome.",
		}, []string{"outcome"}),
		InstabilityFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instability_flags_total",
			Help:      "Numerical instability flags raised on reported statistics.",
		}, []string{"flag"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Pipeline stages that failed.",
		}, []string{"stage"}),
	}

	m.registry.MustRegister(
		m.GEVFits,
		m.BootstrapResamples,
		m.InstabilityFlags,
		m.StageDuration,
		m.StageFailures,
	)
	return m
}

// NewMetricsForTesting is NewMetrics; each call owns its registry so tests
// never collide on registration.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStage records the duration and outcome of one stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveFit counts one GEV fit.
func (m *Metrics) ObserveFit(purpose string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "diverged"
	}
	m.GEVFits.WithLabelValues(purpose, outcome).Inc()
}

// ObserveResample counts one bootstrap resample.
func (m *Metrics) ObserveResample(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	m.BootstrapResamples.WithLabelValues(outcome).Inc()
}

// ObserveFlag counts one instability flag.
func (m *Metrics) ObserveFlag(flag string) {
	if m == nil {
		return
	}
	m.InstabilityFlags.WithLabelValues(flag).Inc()
}

// WriteTextfile writes the registry in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
