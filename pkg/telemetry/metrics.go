package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for converge runs. A Metrics built
// with Enabled=false, or a nil *Metrics, records nothing.
type Metrics struct {
	config MetricsConfig

	stepsTotal    *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	errorsByCode  *prometheus.CounterVec
	lastRunTime   prometheus.Gauge
	lastRunResult *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DurationBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of step results by step and status",
			},
			[]string{"step", "status"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of runs by terminal state",
			},
			[]string{"state"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of convergence runs in seconds",
				Buckets:   buckets,
			},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by class and code",
			},
			[]string{"class", "code"},
		),
		lastRunTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
		lastRunResult: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_state",
				Help:      "1 for the terminal state of the last run, 0 otherwise",
			},
			[]string{"state"},
		),
	}

	collectors := []prometheus.Collector{
		m.stepsTotal,
		m.runsTotal,
		m.runDuration,
		m.errorsByCode,
		m.lastRunTime,
		m.lastRunResult,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordStep counts one step result.
func (m *Metrics) RecordStep(step, status string) {
	if !m.enabled() {
		return
	}
	m.stepsTotal.WithLabelValues(step, status).Inc()
}

// RecordRun records the terminal state and duration of a run.
func (m *Metrics) RecordRun(state string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.runsTotal.WithLabelValues(state).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunTime.SetToCurrentTime()
	for _, s := range []string{"DONE", "ABORTED"} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.lastRunResult.WithLabelValues(s).Set(v)
	}
}

// RecordError counts a classified error.
func (m *Metrics) RecordError(class, code string) {
	if !m.enabled() {
		return
	}
	m.errorsByCode.WithLabelValues(class, code).Inc()
}

// Registry returns the underlying registry, or nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes every metric to the configured node-exporter
// textfile. It is a no-op when disabled or no path is configured.
func (m *Metrics) WriteTextfile() error {
	if !m.enabled() || m.config.TextfilePath == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.config.TextfilePath, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Timer measures elapsed time.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
