// Package detect evaluates metric windows against deterministic anomaly
// rules and emits findings.
//
// Detection is intentionally rule-based and auditable: a finding can always
// be explained by comparing the observed value against the configured limit.
// The detector holds no state between calls beyond its configuration; flap
// suppression belongs to the executor's cooldown, not here.
package detect

import (
	"time"

	"github.com/opsloop/remedia/pkg/window"
)

// Kind classifies what a rule detected.
type Kind string

const (
	// KindThreshold means the rolling mean crossed a configured limit.
	KindThreshold Kind = "THRESHOLD"
	// KindTrend means the value is climbing faster than the trend limit.
	KindTrend Kind = "TREND"
	// KindStale means the window stopped receiving samples. This signals a
	// data pipeline problem rather than subsystem health.
	KindStale Kind = "STALE"
)

// Severity ranks how urgent a finding is.
type Severity string

const (
	SeverityLow  Severity = "LOW"
	SeverityMed  Severity = "MED"
	SeverityHigh Severity = "HIGH"
)

// Finding is one detected anomaly condition. Findings are immutable values,
// created here and consumed once by the recommender.
type Finding struct {
	SubsystemID string    `json:"subsystemId"`
	Metric      string    `json:"metric"`
	Kind        Kind      `json:"kind"`
	Severity    Severity  `json:"severity"`
	Observed    float64   `json:"observed"`
	Limit       float64   `json:"limit"`
	DetectedAt  time.Time `json:"detectedAt"`
}

// WindowState pairs a window key with its snapshot for evaluation.
// The loop passes states in ascending key order.
type WindowState struct {
	Key  window.Key
	Snap window.Snapshot
}

// Detector holds the rule configuration. The zero value disables every rule;
// use NewDetector for sensible defaults.
type Detector struct {
	// Thresholds maps metric name to the mean limit for the THRESHOLD rule.
	// Metrics without an entry are not threshold-checked.
	Thresholds map[string]float64

	// TrendLimit is the slope (units per second) above which the TREND rule
	// fires. Zero disables the rule.
	TrendLimit float64

	// MinSamples is the minimum window population for the TREND rule.
	MinSamples int

	// StaleAfter is the silence duration after which a window is STALE.
	// Zero disables the rule.
	StaleAfter time.Duration
}

// Default rule settings, matching the monitored host metrics.
const (
	DefaultCPULimit    = 85.0
	DefaultMemoryLimit = 90.0
	DefaultMinSamples  = 5

	// highSeverityFactor: a mean this far past the limit is HIGH, not MED.
	highSeverityFactor = 1.1
)

// NewDetector creates a detector with default thresholds for cpu and memory,
// the given trend limit, and the given staleness cutoff.
func NewDetector(trendLimit float64, staleAfter time.Duration) *Detector {
	return &Detector{
		Thresholds: map[string]float64{
			"cpu":    DefaultCPULimit,
			"memory": DefaultMemoryLimit,
		},
		TrendLimit: trendLimit,
		MinSamples: DefaultMinSamples,
		StaleAfter: staleAfter,
	}
}

// Evaluate runs every rule against every window state and returns the
// findings in input order (rule order within one window: threshold, trend,
// stale). Multiple rules may fire for the same window. Evaluation is
// deterministic and stateless; calling it twice with the same input yields
// the same output.
func (d *Detector) Evaluate(now time.Time, states []WindowState) []Finding {
	var findings []Finding
	for _, st := range states {
		findings = append(findings, d.evaluateOne(now, st)...)
	}
	return findings
}

func (d *Detector) evaluateOne(now time.Time, st WindowState) []Finding {
	var out []Finding

	if limit, ok := d.Thresholds[st.Key.Metric]; ok && st.Snap.Count > 0 && st.Snap.Mean > limit {
		severity := SeverityMed
		if st.Snap.Mean > limit*highSeverityFactor {
			severity = SeverityHigh
		}
		out = append(out, Finding{
			SubsystemID: st.Key.SubsystemID,
			Metric:      st.Key.Metric,
			Kind:        KindThreshold,
			Severity:    severity,
			Observed:    st.Snap.Mean,
			Limit:       limit,
			DetectedAt:  now,
		})
	}

	if d.TrendLimit > 0 && st.Snap.Count >= d.minSamples() && st.Snap.Slope > d.TrendLimit {
		out = append(out, Finding{
			SubsystemID: st.Key.SubsystemID,
			Metric:      st.Key.Metric,
			Kind:        KindTrend,
			Severity:    SeverityMed,
			Observed:    st.Snap.Slope,
			Limit:       d.TrendLimit,
			DetectedAt:  now,
		})
	}

	if d.StaleAfter > 0 && st.Snap.Stale(now, d.StaleAfter) {
		out = append(out, Finding{
			SubsystemID: st.Key.SubsystemID,
			Metric:      st.Key.Metric,
			Kind:        KindStale,
			Severity:    SeverityLow,
			Observed:    now.Sub(st.Snap.LastSeen).Seconds(),
			Limit:       d.StaleAfter.Seconds(),
			DetectedAt:  now,
		})
	}

	return out
}

func (d *Detector) minSamples() int {
	if d.MinSamples <= 0 {
		return DefaultMinSamples
	}
	return d.MinSamples
}
