package sources

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemSource samples host-level CPU and memory utilization for a single
// subsystem. It is the default feed for self-monitoring deployments where
// remediad runs next to the component it watches.
//
// CPU utilization is measured since the previous Collect call, so the first
// tick reports usage over a very short interval; callers should expect the
// first sample to be noisy.
type SystemSource struct {
	// SubsystemID identifies the monitored host. Defaults to "host".
	SubsystemID string

	seq atomic.Uint64
	now func() time.Time
}

// NewSystemSource creates a host metrics source for the given subsystem.
func NewSystemSource(subsystemID string) *SystemSource {
	if subsystemID == "" {
		subsystemID = "host"
	}
	return &SystemSource{
		SubsystemID: subsystemID,
		now:         time.Now,
	}
}

func (s *SystemSource) Name() string { return "system" }

// Collect returns one cpu and one memory sample, both in percent [0, 100].
func (s *SystemSource) Collect(ctx context.Context) ([]Sample, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) == 0 {
		return nil, fmt.Errorf("cpu percent: no data")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}

	ts := s.now().UTC()
	return []Sample{
		{
			SubsystemID: s.SubsystemID,
			Metric:      "cpu",
			Value:       percents[0],
			Timestamp:   ts,
			Seq:         s.seq.Add(1),
		},
		{
			SubsystemID: s.SubsystemID,
			Metric:      "memory",
			Value:       vm.UsedPercent,
			Timestamp:   ts,
			Seq:         s.seq.Add(1),
		},
	}, nil
}
