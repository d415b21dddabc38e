package job

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "assay_sheets"

// Metrics counts job outcomes, workbook writes and stage durations on a
// private registry. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	jobs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	writes        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the job metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "jobs_total",
			Help:      "Submitted jobs by result status.",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "job_failures_total",
			Help:      "Failed jobs by error kind.",
		}, []string{"kind"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "record_writes_total",
			Help:      "Workbook writes by status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.jobs, m.failures, m.writes, m.stageDuration)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeJob(status ResultStatus, errorKind string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(string(status)).Inc()
	if status == ResultFailed {
		m.failures.WithLabelValues(errorKind).Inc()
	}
}

func (m *Metrics) observeWrite(status string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(status).Inc()
}

func (m *Metrics) observeStage(stage string, started time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// WriteTextfile dumps all metrics in the text exposition format, for the
// node exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
