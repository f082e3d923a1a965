// Package metrics provides Prometheus instrumentation for the control loop.
//
// It exposes operational metrics about the loop's pipeline: the duration of
// each stage (collect, detect), invocation latency, findings and action
// outcomes, sample ingestion and drops, and error tracking. All metrics are
// served on the /metrics endpoint of the dashboard API.
//
// Metrics exposed:
//   - remedia_collect_seconds: Histogram of sample collection duration
//   - remedia_detect_seconds: Histogram of anomaly detection duration
//   - remedia_invoke_seconds: Histogram of remediation invocation duration
//   - remedia_inflight_actions: Gauge of currently executing actions
//   - remedia_windows_tracked: Gauge of tracked (subsystem, metric) windows
//   - remedia_samples_total: Counter of ingested samples by source
//   - remedia_samples_dropped_total: Counter of dropped samples by reason
//   - remedia_findings_total: Counter of findings by kind and severity
//   - remedia_actions_total: Counter of execution records by kind and outcome
//   - remedia_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for remediad.
type Metrics struct {
	CollectSeconds prometheus.Histogram
	DetectSeconds  prometheus.Histogram
	InvokeSeconds  prometheus.Histogram

	InflightActions prometheus.Gauge
	WindowsTracked  prometheus.Gauge

	SamplesTotal        *prometheus.CounterVec
	SamplesDroppedTotal *prometheus.CounterVec
	FindingsTotal       *prometheus.CounterVec
	ActionsTotal        *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CollectSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "remedia_collect_seconds",
			Help:    "Time spent collecting samples from sources",
			Buckets: prometheus.DefBuckets,
		}),

		DetectSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "remedia_detect_seconds",
			Help:    "Time spent evaluating anomaly rules",
			Buckets: prometheus.DefBuckets,
		}),

		InvokeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "remedia_invoke_seconds",
			Help:    "Duration of completed remediation invocations",
			Buckets: prometheus.DefBuckets,
		}),

		InflightActions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "remedia_inflight_actions",
			Help: "Remediation actions currently executing",
		}),

		WindowsTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "remedia_windows_tracked",
			Help: "Tracked (subsystem, metric) windows",
		}),

		SamplesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_samples_total",
			Help: "Total samples ingested by source",
		}, []string{"source"}),

		SamplesDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_samples_dropped_total",
			Help: "Total samples dropped by reason",
		}, []string{"reason"}),

		FindingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_findings_total",
			Help: "Total findings by kind and severity",
		}, []string{"kind", "severity"}),

		ActionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_actions_total",
			Help: "Total execution records by action kind and outcome",
		}, []string{"kind", "outcome"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "remedia_errors_total",
			Help: "Total errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordCollect records the time spent collecting samples.
func (m *Metrics) RecordCollect(seconds float64) {
	m.CollectSeconds.Observe(seconds)
}

// RecordDetect records the time spent in rule evaluation.
func (m *Metrics) RecordDetect(seconds float64) {
	m.DetectSeconds.Observe(seconds)
}

// RecordInvoke records a completed invocation's duration.
func (m *Metrics) RecordInvoke(seconds float64) {
	m.InvokeSeconds.Observe(seconds)
}

// SetInflight sets the current inflight action count.
func (m *Metrics) SetInflight(n int64) {
	m.InflightActions.Set(float64(n))
}

// SetWindows sets the current tracked window count.
func (m *Metrics) SetWindows(n int) {
	m.WindowsTracked.Set(float64(n))
}

// RecordSamples counts ingested samples for a source.
func (m *Metrics) RecordSamples(source string, n int) {
	m.SamplesTotal.WithLabelValues(source).Add(float64(n))
}

// RecordDroppedSample counts one dropped sample.
func (m *Metrics) RecordDroppedSample(reason string) {
	m.SamplesDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordFinding counts one finding.
func (m *Metrics) RecordFinding(kind, severity string) {
	m.FindingsTotal.WithLabelValues(kind, severity).Inc()
}

// RecordAction counts one execution record.
func (m *Metrics) RecordAction(kind, outcome string) {
	m.ActionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
