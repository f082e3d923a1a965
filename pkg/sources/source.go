// Package sources provides metric feed connectors that pull performance
// samples from monitored subsystems and normalize them into Sample values.
//
// Each source implements the Source interface and can be plugged into the
// remediad control loop. Available sources:
//   - SystemSource — host-level CPU and memory utilization via gopsutil
//   - HTTPSource   — generic connector for any REST API with JSON responses
//   - StaticSource — scripted sample replay for tests and demos
//
// Sources are intentionally lightweight: they fetch whatever is newly
// available, shape it into Samples, and leave windowing, deduplication and
// analysis to the loop. A live feed may deliver gaps, duplicates and
// out-of-order samples; sources do not attempt to repair any of that.
package sources

import (
	"context"
	"time"
)

// Sample is one timestamped observation of a named metric for a subsystem.
// Samples are immutable once created and passed by value between stages.
type Sample struct {
	SubsystemID string    `json:"subsystemId"`
	Metric      string    `json:"metric"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
	Seq         uint64    `json:"seq"`
}

// Source is the interface all metric feeds implement.
//
// Collect returns the samples that became available since the previous call.
// It is invoked once per loop tick, must respect context cancellation, and
// must never panic. An empty slice with a nil error means "nothing new yet".
type Source interface {
	Collect(ctx context.Context) ([]Sample, error)

	// Name returns a short, unique identifier for the source.
	// Example: "system", "http", "static".
	Name() string
}
