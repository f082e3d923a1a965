// Package window maintains bounded recent-history buffers of metric samples
// with rolling aggregates.
//
// A Window holds the last N observations for one (subsystem, metric) pair and
// keeps running sums so that pushes are O(1) and snapshots are cheap. Windows
// are owned exclusively by the control loop and are not safe for concurrent
// use; all access is serialized through the tick.
package window

import (
	"math"
	"time"
)

// Key identifies a window: one monitored metric of one subsystem.
type Key struct {
	SubsystemID string `json:"subsystemId"`
	Metric      string `json:"metric"`
}

// Less orders keys ascending by (subsystem, metric). The loop iterates
// windows in this order so detection output is deterministic.
func (k Key) Less(other Key) bool {
	if k.SubsystemID != other.SubsystemID {
		return k.SubsystemID < other.SubsystemID
	}
	return k.Metric < other.Metric
}

// Snapshot is a point-in-time view of a window's aggregates.
type Snapshot struct {
	Count    int       `json:"count"`
	Mean     float64   `json:"mean"`
	StdDev   float64   `json:"stddev"`
	Slope    float64   `json:"slope"` // value units per second
	Last     float64   `json:"last"`
	LastSeen time.Time `json:"lastSeen"`
}

// Stale reports whether no sample has arrived within the given threshold.
// An empty window is always stale.
func (s Snapshot) Stale(now time.Time, threshold time.Duration) bool {
	if s.Count == 0 {
		return true
	}
	return now.Sub(s.LastSeen) > threshold
}

// PushResult describes what happened to a pushed sample.
type PushResult int

const (
	// Pushed means the sample was retained.
	Pushed PushResult = iota
	// DroppedTooOld means the sample predates the oldest retained sample.
	// History is never rewritten.
	DroppedTooOld
	// DroppedDuplicate means a retained sample already carries this
	// sequence number.
	DroppedDuplicate
)

func (r PushResult) String() string {
	switch r {
	case Pushed:
		return "pushed"
	case DroppedTooOld:
		return "too_old"
	case DroppedDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

type entry struct {
	value float64
	ts    time.Time
	seq   uint64
}

// Window is a bounded per-(subsystem, metric) sample buffer.
// Samples are kept in non-decreasing timestamp order.
type Window struct {
	capacity int
	entries  []entry // oldest first
	sum      float64
	sumSq    float64
}

// DefaultCapacity is the number of samples retained when none is configured.
const DefaultCapacity = 60

// New creates a window retaining up to capacity samples.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		entries:  make([]entry, 0, capacity),
	}
}

// Push inserts a sample, discarding the oldest retained sample if the window
// is at capacity. Samples older than the oldest retained sample and samples
// duplicating a retained sequence number are silently dropped; the result
// tells the caller which case applied so it can be logged and counted.
func (w *Window) Push(value float64, ts time.Time, seq uint64) PushResult {
	if len(w.entries) > 0 && ts.Before(w.entries[0].ts) {
		return DroppedTooOld
	}
	for _, e := range w.entries {
		if e.seq == seq {
			return DroppedDuplicate
		}
	}

	if len(w.entries) == w.capacity {
		evicted := w.entries[0]
		w.entries = w.entries[:copy(w.entries, w.entries[1:])]
		w.sum -= evicted.value
		w.sumSq -= evicted.value * evicted.value
	}

	// Insert keeping non-decreasing timestamp order. Late arrivals that are
	// still within the retained range land in the middle.
	i := len(w.entries)
	for i > 0 && ts.Before(w.entries[i-1].ts) {
		i--
	}
	w.entries = append(w.entries, entry{})
	copy(w.entries[i+1:], w.entries[i:])
	w.entries[i] = entry{value: value, ts: ts, seq: seq}

	w.sum += value
	w.sumSq += value * value
	return Pushed
}

// Len returns the number of retained samples.
func (w *Window) Len() int { return len(w.entries) }

// Snapshot computes the current aggregates. Mean and standard deviation come
// from the running sums; the slope is a least-squares fit over the retained
// points with time measured in seconds from the oldest sample.
func (w *Window) Snapshot() Snapshot {
	n := len(w.entries)
	if n == 0 {
		return Snapshot{}
	}

	mean := w.sum / float64(n)
	variance := w.sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0 // guard against floating point drift
	}

	last := w.entries[n-1]
	return Snapshot{
		Count:    n,
		Mean:     mean,
		StdDev:   math.Sqrt(variance),
		Slope:    w.slope(),
		Last:     last.value,
		LastSeen: last.ts,
	}
}

// slope fits value = a + b*t by least squares and returns b in units per
// second. Fewer than two points, or all points at the same instant, yield 0.
func (w *Window) slope() float64 {
	n := len(w.entries)
	if n < 2 {
		return 0
	}

	origin := w.entries[0].ts
	var sumT, sumV, sumTT, sumTV float64
	for _, e := range w.entries {
		t := e.ts.Sub(origin).Seconds()
		sumT += t
		sumV += e.value
		sumTT += t * t
		sumTV += t * e.value
	}

	fn := float64(n)
	denom := fn*sumTT - sumT*sumT
	if denom == 0 {
		return 0
	}
	return (fn*sumTV - sumT*sumV) / denom
}
