package execute

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// SubmitStatus is the immediate answer to a Submit call. Skipped submissions
// still produce a Record on the Records channel so the audit trail is
// complete.
type SubmitStatus int

const (
	// Accepted means the action was queued for execution (or, for NOOP,
	// completed immediately).
	Accepted SubmitStatus = iota
	// SkippedCooldown means the (subsystem, kind) bucket finished an
	// execution less than one cooldown period ago.
	SkippedCooldown
	// SkippedInflight means an execution for this bucket is still queued or
	// running; no duplicate side effect is started.
	SkippedInflight
	// Rejected means the executor is shutting down.
	Rejected
)

func (s SubmitStatus) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case SkippedCooldown:
		return "skipped_cooldown"
	case SkippedInflight:
		return "skipped_inflight"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type bucketKey struct {
	subsystemID string
	kind        ActionKind
}

// bucket tracks the IDLE → INFLIGHT → COOLDOWN → IDLE state machine for one
// (subsystem, action kind) pair. COOLDOWN expiry is lazy: it is derived from
// lastFinished on the next submit rather than by a timer.
type bucket struct {
	running      bool
	lastFinished time.Time
}

// Executor applies actions through an Invoker under the safety guards the
// loop relies on: per-bucket cooldown and inflight dedup, plus a system-wide
// cap of maxInflight concurrent invocations. Excess accepted submissions
// queue on the semaphore and are served in arrival order as capacity frees.
//
// All bucket mutation is serialized through the Submit path; worker
// goroutines only touch their own bucket under the same mutex when they
// finish.
type Executor struct {
	invoker  Invoker
	cooldown time.Duration
	sem      *semaphore.Weighted
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	closed  bool

	inflight atomic.Int64
	records  chan Record
	wg       sync.WaitGroup

	runCtx    context.Context
	cancelRun context.CancelFunc
}

// DefaultMaxInflight bounds concurrent remediations system-wide; concurrent
// restarts could cascade.
const DefaultMaxInflight = 4

// DefaultCooldown is the minimum interval between repeated executions of the
// same action kind on the same subsystem.
const DefaultCooldown = 5 * time.Minute

// NewExecutor creates an executor. maxInflight <= 0 and cooldown <= 0 fall
// back to the defaults.
func NewExecutor(invoker Invoker, cooldown time.Duration, maxInflight int, logger *slog.Logger) *Executor {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if maxInflight <= 0 {
		maxInflight = DefaultMaxInflight
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		invoker:   invoker,
		cooldown:  cooldown,
		sem:       semaphore.NewWeighted(int64(maxInflight)),
		logger:    logger,
		now:       time.Now,
		buckets:   make(map[bucketKey]*bucket),
		records:   make(chan Record, 256),
		runCtx:    ctx,
		cancelRun: cancel,
	}
}

// Records returns the stream of execution records. The channel is closed by
// Close after the last worker finishes; consumers should range over it.
// Every Submit call produces exactly one record here.
func (e *Executor) Records() <-chan Record { return e.records }

// InflightCount returns the number of invocations currently executing.
func (e *Executor) InflightCount() int64 { return e.inflight.Load() }

// Submit asks the executor to apply an action. It never blocks on the
// invoker: accepted actions run asynchronously on the worker pool, and the
// guards answer immediately.
//
// NOOP actions complete with SUCCESS without calling the invoker. They still
// occupy their cooldown bucket so alert-only findings cannot flood the audit
// trail on every tick.
func (e *Executor) Submit(action Action) SubmitStatus {
	now := e.now()
	if action.IdempotenceKey == "" {
		action.IdempotenceKey = IdempotenceKey(action.SubsystemID, action.Kind, now, e.cooldown)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Rejected
	}

	bk := bucketKey{subsystemID: action.SubsystemID, kind: action.Kind}
	b, ok := e.buckets[bk]
	if !ok {
		b = &bucket{}
		e.buckets[bk] = b
	}

	if b.running {
		e.emit(Record{
			ID:         uuid.NewString(),
			Action:     action,
			StartedAt:  now,
			FinishedAt: now,
			Outcome:    OutcomeSkippedInflight,
		})
		return SkippedInflight
	}

	if !b.lastFinished.IsZero() && now.Sub(b.lastFinished) < e.cooldown {
		e.emit(Record{
			ID:         uuid.NewString(),
			Action:     action,
			StartedAt:  now,
			FinishedAt: now,
			Outcome:    OutcomeSkippedCooldown,
		})
		return SkippedCooldown
	}

	if action.Kind == Noop {
		b.lastFinished = now
		e.emit(Record{
			ID:         uuid.NewString(),
			Action:     action,
			StartedAt:  now,
			FinishedAt: now,
			Outcome:    OutcomeSuccess,
		})
		return Accepted
	}

	b.running = true
	e.wg.Add(1)
	go e.run(action, bk)
	return Accepted
}

// run executes one accepted action on the worker pool.
func (e *Executor) run(action Action, bk bucketKey) {
	defer e.wg.Done()

	queuedAt := e.now()
	if err := e.sem.Acquire(e.runCtx, 1); err != nil {
		e.finish(action, bk, queuedAt, err)
		return
	}

	e.inflight.Add(1)
	startedAt := e.now()
	err := e.invoker.Invoke(e.runCtx, action)
	e.inflight.Add(-1)
	e.sem.Release(1)

	e.finish(action, bk, startedAt, err)
}

// finish transitions the bucket to COOLDOWN and emits the terminal record.
// Cancelled actions are recorded as FAILED, never left unrecorded.
func (e *Executor) finish(action Action, bk bucketKey, startedAt time.Time, err error) {
	e.mu.Lock()
	now := e.now()
	if b, ok := e.buckets[bk]; ok {
		b.running = false
		b.lastFinished = now
	}

	rec := Record{
		ID:         uuid.NewString(),
		Action:     action,
		StartedAt:  startedAt,
		FinishedAt: now,
		Outcome:    OutcomeSuccess,
	}
	if err != nil {
		rec.Outcome = OutcomeFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			rec.Err = "cancelled: " + err.Error()
		} else {
			rec.Err = err.Error()
		}
	}
	e.emit(rec)
	e.mu.Unlock()
}

// emit must be called with e.mu held. The channel is generously buffered; if
// a consumer falls this far behind we log the record instead of blocking the
// loop, since the record was already persisted nowhere else.
func (e *Executor) emit(rec Record) {
	select {
	case e.records <- rec:
	default:
		e.logger.Error("record channel full, dropping from stream",
			"id", rec.ID,
			"kind", rec.Action.Kind,
			"subsystem", rec.Action.SubsystemID,
			"outcome", rec.Outcome,
			"err", rec.Err,
		)
	}
}

// Close stops accepting submissions and waits up to grace for in-flight
// actions to complete, then cancels the remainder. Cancelled invocations are
// recorded as FAILED with a cancellation detail. The Records channel is
// closed once the last record has been emitted.
func (e *Executor) Close(grace time.Duration) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		e.logger.Warn("shutdown grace expired, cancelling in-flight actions", "grace", grace)
		e.cancelRun()
		<-done
	}

	e.cancelRun()
	close(e.records)
}
