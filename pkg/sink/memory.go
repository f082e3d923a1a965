package sink

import (
	"context"
	"sort"
	"sync"

	"github.com/opsloop/remedia/pkg/execute"
	"github.com/opsloop/remedia/pkg/sources"
	"github.com/opsloop/remedia/pkg/window"
)

// Memory is a bounded in-memory sink. It doubles as the state store the
// dashboard API reads: the latest window snapshot per key plus a ring of the
// most recent execution records. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	snapshots  map[window.Key]window.Snapshot
	records    []execute.Record // newest first
	maxRecords int
	lastSample map[window.Key]sources.Sample
}

// DefaultMaxRecords bounds the retained execution record ring.
const DefaultMaxRecords = 200

// NewMemory creates an in-memory sink retaining up to maxRecords records.
func NewMemory(maxRecords int) *Memory {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &Memory{
		snapshots:  make(map[window.Key]window.Snapshot),
		maxRecords: maxRecords,
		lastSample: make(map[window.Key]sources.Sample),
	}
}

func (m *Memory) WriteSample(ctx context.Context, s sources.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSample[window.Key{SubsystemID: s.SubsystemID, Metric: s.Metric}] = s
	return nil
}

func (m *Memory) WriteRecord(ctx context.Context, r execute.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]execute.Record{r}, m.records...)
	if len(m.records) > m.maxRecords {
		m.records = m.records[:m.maxRecords]
	}
	return nil
}

func (m *Memory) Close() error { return nil }

// PutSnapshot stores the latest window snapshot for a key. The loop calls
// this once per key per tick so the dashboard always sees current state.
func (m *Memory) PutSnapshot(key window.Key, snap window.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[key] = snap
}

// Snapshot returns the latest snapshot for a key.
func (m *Memory) Snapshot(key window.Key) (window.Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[key]
	return snap, ok
}

// KeyedSnapshot pairs a key with its snapshot for dashboard listings.
type KeyedSnapshot struct {
	Key  window.Key      `json:"key"`
	Snap window.Snapshot `json:"snapshot"`
}

// Snapshots returns all snapshots in ascending (subsystem, metric) order.
func (m *Memory) Snapshots() []KeyedSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]KeyedSnapshot, 0, len(m.snapshots))
	for key, snap := range m.snapshots {
		out = append(out, KeyedSnapshot{Key: key, Snap: snap})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// RecentRecords returns up to limit of the most recent execution records,
// newest first.
func (m *Memory) RecentRecords(limit int) []execute.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]execute.Record, limit)
	copy(out, m.records[:limit])
	return out
}

// RecordCount returns the number of retained records. Primarily for tests.
func (m *Memory) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
