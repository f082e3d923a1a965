package recommend

import (
	"testing"
	"time"

	"github.com/opsloop/remedia/pkg/detect"
	"github.com/opsloop/remedia/pkg/execute"
)

func finding(metric string, kind detect.Kind) detect.Finding {
	return detect.Finding{
		SubsystemID: "api",
		Metric:      metric,
		Kind:        kind,
		Severity:    detect.SeverityMed,
		Observed:    92.5,
		Limit:       85,
		DetectedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func kinds(actions []execute.Action) []execute.ActionKind {
	out := make([]execute.ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestRecommendTable(t *testing.T) {
	r := New()

	tests := []struct {
		metric string
		kind   detect.Kind
		want   []execute.ActionKind
	}{
		{"cpu", detect.KindThreshold, []execute.ActionKind{execute.ScaleDownLoad, execute.RestartComponent}},
		{"memory", detect.KindThreshold, []execute.ActionKind{execute.ReleaseMemory, execute.RestartComponent}},
		{"latency", detect.KindTrend, []execute.ActionKind{execute.ScaleUpLoad}},
	}

	for _, tt := range tests {
		got := kinds(r.Recommend(finding(tt.metric, tt.kind)))
		if len(got) != len(tt.want) {
			t.Errorf("%s/%s: got %v, want %v", tt.metric, tt.kind, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s/%s: got %v, want %v", tt.metric, tt.kind, got, tt.want)
				break
			}
		}
	}
}

func TestUnknownCombinationFallsBackToNoop(t *testing.T) {
	r := New()

	actions := r.Recommend(finding("queue_depth", detect.KindThreshold))
	if len(actions) != 1 || actions[0].Kind != execute.Noop {
		t.Fatalf("got %v, want single NOOP", kinds(actions))
	}
}

func TestStaleAlwaysNoop(t *testing.T) {
	r := New()

	// STALE maps to NOOP even for metrics with table entries.
	actions := r.Recommend(finding("cpu", detect.KindStale))
	if len(actions) != 1 || actions[0].Kind != execute.Noop {
		t.Fatalf("got %v, want single NOOP", kinds(actions))
	}
}

func TestActionCarriesFindingContext(t *testing.T) {
	r := New()

	actions := r.Recommend(finding("cpu", detect.KindThreshold))
	primary := actions[0]

	if primary.SubsystemID != "api" {
		t.Errorf("SubsystemID = %q, want api", primary.SubsystemID)
	}
	want := map[string]string{
		"metric":   "cpu",
		"finding":  "THRESHOLD",
		"severity": "MED",
		"observed": "92.500",
		"limit":    "85.000",
	}
	for k, v := range want {
		if primary.Params[k] != v {
			t.Errorf("Params[%q] = %q, want %q", k, primary.Params[k], v)
		}
	}
}

func TestRecommendNeverEmpty(t *testing.T) {
	r := New()

	for _, kind := range []detect.Kind{detect.KindThreshold, detect.KindTrend, detect.KindStale, "BOGUS"} {
		if actions := r.Recommend(finding("nonsense", kind)); len(actions) == 0 {
			t.Errorf("Recommend returned no actions for kind %v", kind)
		}
	}
}
