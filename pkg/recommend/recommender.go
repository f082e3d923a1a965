// Package recommend maps findings to ranked remediation candidates.
//
// The mapping is a static lookup table keyed by (metric, finding kind) with
// an explicit default: unknown combinations recommend NOOP. Absence of a
// rule is not a failure, it is "no automated action known", and the finding
// still reaches the audit trail through the NOOP record.
package recommend

import (
	"fmt"

	"github.com/opsloop/remedia/pkg/detect"
	"github.com/opsloop/remedia/pkg/execute"
)

type tableKey struct {
	metric string
	kind   detect.Kind
}

// Recommender produces ordered action candidates for a finding. The first
// candidate is the primary recommendation.
type Recommender struct {
	table map[tableKey][]execute.ActionKind
}

// New creates a recommender with the built-in rule table:
//
//	cpu     + THRESHOLD → scale down load, then restart component
//	memory  + THRESHOLD → release memory, then restart component
//	latency + TREND     → scale up load
//	any     + STALE     → noop (alert only; the data pipeline is the problem)
func New() *Recommender {
	return &Recommender{
		table: map[tableKey][]execute.ActionKind{
			{metric: "cpu", kind: detect.KindThreshold}:    {execute.ScaleDownLoad, execute.RestartComponent},
			{metric: "memory", kind: detect.KindThreshold}: {execute.ReleaseMemory, execute.RestartComponent},
			{metric: "latency", kind: detect.KindTrend}:    {execute.ScaleUpLoad},
		},
	}
}

// Recommend returns the ranked candidates for a finding. It always returns
// at least one action and never fails; the fallback is a single NOOP.
func (r *Recommender) Recommend(f detect.Finding) []execute.Action {
	kinds, ok := r.table[tableKey{metric: f.Metric, kind: f.Kind}]
	if f.Kind == detect.KindStale || !ok {
		kinds = []execute.ActionKind{execute.Noop}
	}

	actions := make([]execute.Action, 0, len(kinds))
	for _, kind := range kinds {
		actions = append(actions, execute.Action{
			Kind:        kind,
			SubsystemID: f.SubsystemID,
			Params: map[string]string{
				"metric":   f.Metric,
				"finding":  string(f.Kind),
				"severity": string(f.Severity),
				"observed": fmt.Sprintf("%.3f", f.Observed),
				"limit":    fmt.Sprintf("%.3f", f.Limit),
			},
		})
	}
	return actions
}
