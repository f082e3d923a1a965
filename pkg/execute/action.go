// Package execute applies remediation actions under safety constraints:
// per-bucket cooldowns, idempotence keys, and a bounded worker pool.
//
// The executor is the only stage of the control loop that performs side
// effects against the outside world, and the only stage that may block. Every
// submission eventually produces exactly one ExecutionRecord on the Records
// channel, whether the action ran, failed, or was skipped by a guard.
package execute

import (
	"fmt"
	"hash/fnv"
	"time"
)

// ActionKind enumerates the remediation operations the system knows how to
// apply.
type ActionKind string

const (
	ScaleDownLoad    ActionKind = "SCALE_DOWN_LOAD"
	ScaleUpLoad      ActionKind = "SCALE_UP_LOAD"
	RestartComponent ActionKind = "RESTART_COMPONENT"
	ReleaseMemory    ActionKind = "RELEASE_MEMORY"
	Noop             ActionKind = "NOOP"
)

// Action is one candidate remediation operation for a subsystem.
type Action struct {
	Kind        ActionKind `json:"kind"`
	SubsystemID string     `json:"subsystemId"`

	// IdempotenceKey collapses repeated detections of the same condition
	// within one cooldown bucket onto a single execution. The executor fills
	// it at submit time when empty; see IdempotenceKey.
	IdempotenceKey string `json:"idempotenceKey"`

	// Params carries free-form context for the invoker and the audit trail
	// (originating metric, finding kind, severity, ...).
	Params map[string]string `json:"params,omitempty"`
}

// Outcome is the terminal result of a submission.
type Outcome string

const (
	OutcomeSuccess         Outcome = "SUCCESS"
	OutcomeFailed          Outcome = "FAILED"
	OutcomeSkippedCooldown Outcome = "SKIPPED_COOLDOWN"
	OutcomeSkippedInflight Outcome = "SKIPPED_INFLIGHT"
)

// Record is the append-only audit entry for one submission. Records are
// never mutated after completion.
type Record struct {
	ID         string    `json:"id"`
	Action     Action    `json:"action"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Outcome    Outcome   `json:"outcome"`
	Err        string    `json:"err,omitempty"`
}

// IdempotenceKey derives the key for an action at a point in time: a hash of
// (subsystem, kind, timestamp bucketed to the cooldown period). Two
// detections of the same condition inside one bucket map to the same key.
func IdempotenceKey(subsystemID string, kind ActionKind, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d", subsystemID, kind, at.Truncate(bucket).Unix())
	return fmt.Sprintf("%016x", h.Sum64())
}
