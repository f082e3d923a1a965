package execute

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeInvoker counts invocations and optionally blocks until released or the
// context is cancelled.
type fakeInvoker struct {
	mu      sync.Mutex
	calls   int
	err     error
	block   chan struct{} // when non-nil, Invoke waits on it
	started chan string   // receives the subsystem of each started invocation
}

func (f *fakeInvoker) Name() string { return "fake" }

func (f *fakeInvoker) Invoke(ctx context.Context, action Action) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.started != nil {
		f.started <- action.SubsystemID
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitRecord(t *testing.T, e *Executor) Record {
	t.Helper()
	select {
	case rec := <-e.Records():
		return rec
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for record")
		return Record{}
	}
}

func TestSubmitSuccess(t *testing.T) {
	inv := &fakeInvoker{}
	e := NewExecutor(inv, time.Minute, 2, nil)
	defer e.Close(time.Second)

	action := Action{Kind: RestartComponent, SubsystemID: "api"}
	if got := e.Submit(action); got != Accepted {
		t.Fatalf("Submit = %v, want Accepted", got)
	}

	rec := waitRecord(t, e)
	if rec.Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v, want SUCCESS", rec.Outcome)
	}
	if rec.ID == "" {
		t.Error("record missing ID")
	}
	if rec.Action.IdempotenceKey == "" {
		t.Error("executor did not fill idempotence key")
	}
	if inv.callCount() != 1 {
		t.Errorf("invoker called %d times, want 1", inv.callCount())
	}
}

func TestSubmitFailure(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("gateway unreachable")}
	e := NewExecutor(inv, time.Minute, 2, nil)
	defer e.Close(time.Second)

	e.Submit(Action{Kind: RestartComponent, SubsystemID: "api"})

	rec := waitRecord(t, e)
	if rec.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %v, want FAILED", rec.Outcome)
	}
	if rec.Err != "gateway unreachable" {
		t.Errorf("Err = %q, want invoker error", rec.Err)
	}
}

func TestCooldownSkipsRepeat(t *testing.T) {
	inv := &fakeInvoker{}
	e := NewExecutor(inv, time.Minute, 2, nil)
	defer e.Close(time.Second)

	action := Action{Kind: RestartComponent, SubsystemID: "api"}
	if got := e.Submit(action); got != Accepted {
		t.Fatalf("first Submit = %v, want Accepted", got)
	}
	first := waitRecord(t, e)
	if first.Outcome != OutcomeSuccess {
		t.Fatalf("first Outcome = %v, want SUCCESS", first.Outcome)
	}

	// Same (subsystem, kind) inside the cooldown period.
	if got := e.Submit(action); got != SkippedCooldown {
		t.Fatalf("second Submit = %v, want SkippedCooldown", got)
	}
	second := waitRecord(t, e)
	if second.Outcome != OutcomeSkippedCooldown {
		t.Errorf("second Outcome = %v, want SKIPPED_COOLDOWN", second.Outcome)
	}
	if inv.callCount() != 1 {
		t.Errorf("invoker called %d times, want 1", inv.callCount())
	}
}

func TestCooldownExpires(t *testing.T) {
	inv := &fakeInvoker{}
	e := NewExecutor(inv, time.Minute, 2, nil)
	defer e.Close(time.Second)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	e.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	action := Action{Kind: RestartComponent, SubsystemID: "api"}
	e.Submit(action)
	waitRecord(t, e)

	mu.Lock()
	current = current.Add(2 * time.Minute)
	mu.Unlock()

	if got := e.Submit(action); got != Accepted {
		t.Fatalf("Submit after cooldown = %v, want Accepted", got)
	}
	waitRecord(t, e)
	if inv.callCount() != 2 {
		t.Errorf("invoker called %d times, want 2", inv.callCount())
	}
}

func TestCooldownIsPerBucket(t *testing.T) {
	inv := &fakeInvoker{}
	e := NewExecutor(inv, time.Minute, 4, nil)
	defer e.Close(time.Second)

	e.Submit(Action{Kind: RestartComponent, SubsystemID: "api"})
	waitRecord(t, e)

	// Different kind, same subsystem: separate bucket.
	if got := e.Submit(Action{Kind: ReleaseMemory, SubsystemID: "api"}); got != Accepted {
		t.Errorf("other kind Submit = %v, want Accepted", got)
	}
	waitRecord(t, e)

	// Same kind, different subsystem: separate bucket.
	if got := e.Submit(Action{Kind: RestartComponent, SubsystemID: "db"}); got != Accepted {
		t.Errorf("other subsystem Submit = %v, want Accepted", got)
	}
	waitRecord(t, e)
}

func TestInflightSkipsDuplicate(t *testing.T) {
	inv := &fakeInvoker{block: make(chan struct{}), started: make(chan string, 1)}
	e := NewExecutor(inv, time.Minute, 2, nil)
	defer e.Close(time.Second)

	action := Action{Kind: RestartComponent, SubsystemID: "api"}
	if got := e.Submit(action); got != Accepted {
		t.Fatalf("first Submit = %v, want Accepted", got)
	}
	<-inv.started // invocation is running

	if got := e.Submit(action); got != SkippedInflight {
		t.Fatalf("second Submit = %v, want SkippedInflight", got)
	}
	rec := waitRecord(t, e)
	if rec.Outcome != OutcomeSkippedInflight {
		t.Errorf("Outcome = %v, want SKIPPED_INFLIGHT", rec.Outcome)
	}

	close(inv.block)
	terminal := waitRecord(t, e)
	if terminal.Outcome != OutcomeSuccess {
		t.Errorf("terminal Outcome = %v, want SUCCESS", terminal.Outcome)
	}
	if inv.callCount() != 1 {
		t.Errorf("invoker called %d times, want 1", inv.callCount())
	}
}

func TestInflightCap(t *testing.T) {
	const maxInflight = 2

	block := make(chan struct{})
	var running, peak atomic.Int64
	inv := &trackingInvoker{block: block, running: &running, peak: &peak}
	e := NewExecutor(inv, time.Minute, maxInflight, nil)

	// Five distinct buckets so no guard interferes with the pool.
	subsystems := []string{"a", "b", "c", "d", "e"}
	for _, s := range subsystems {
		if got := e.Submit(Action{Kind: RestartComponent, SubsystemID: s}); got != Accepted {
			t.Fatalf("Submit %s = %v, want Accepted", s, got)
		}
	}

	// Let the queue drain: workers past the cap wait on the semaphore.
	deadline := time.After(5 * time.Second)
	for i := 0; i < len(subsystems); i++ {
		select {
		case block <- struct{}{}:
		case <-deadline:
			t.Fatal("timed out releasing invocations")
		}
	}

	for i := 0; i < len(subsystems); i++ {
		rec := waitRecord(t, e)
		if rec.Outcome != OutcomeSuccess {
			t.Errorf("record %d Outcome = %v, want SUCCESS", i, rec.Outcome)
		}
	}

	if got := peak.Load(); got > maxInflight {
		t.Errorf("peak concurrent invocations = %d, want <= %d", got, maxInflight)
	}
	e.Close(time.Second)
}

// trackingInvoker records the peak number of concurrent invocations.
type trackingInvoker struct {
	block         chan struct{}
	running, peak *atomic.Int64
}

func (tr *trackingInvoker) Name() string { return "tracking" }

func (tr *trackingInvoker) Invoke(ctx context.Context, action Action) error {
	n := tr.running.Add(1)
	for {
		p := tr.peak.Load()
		if n <= p || tr.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer tr.running.Add(-1)

	select {
	case <-tr.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestNoopCompletesWithoutInvoker(t *testing.T) {
	inv := &fakeInvoker{}
	e := NewExecutor(inv, time.Minute, 2, nil)
	defer e.Close(time.Second)

	action := Action{Kind: Noop, SubsystemID: "api"}
	if got := e.Submit(action); got != Accepted {
		t.Fatalf("Submit = %v, want Accepted", got)
	}

	rec := waitRecord(t, e)
	if rec.Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v, want SUCCESS", rec.Outcome)
	}
	if inv.callCount() != 0 {
		t.Errorf("invoker called %d times for NOOP, want 0", inv.callCount())
	}

	// NOOP occupies its cooldown bucket: repeats are suppressed.
	if got := e.Submit(action); got != SkippedCooldown {
		t.Errorf("repeat NOOP Submit = %v, want SkippedCooldown", got)
	}
	waitRecord(t, e)
}

func TestCloseCancelsInflight(t *testing.T) {
	inv := &fakeInvoker{block: make(chan struct{}), started: make(chan string, 1)}
	e := NewExecutor(inv, time.Minute, 2, nil)

	e.Submit(Action{Kind: RestartComponent, SubsystemID: "api"})
	<-inv.started

	done := make(chan struct{})
	go func() {
		e.Close(50 * time.Millisecond)
		close(done)
	}()

	rec := waitRecord(t, e)
	if rec.Outcome != OutcomeFailed {
		t.Errorf("Outcome = %v, want FAILED", rec.Outcome)
	}
	if !strings.HasPrefix(rec.Err, "cancelled: ") {
		t.Errorf("Err = %q, want cancellation detail", rec.Err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	// Channel must be closed after Close.
	if _, ok := <-e.Records(); ok {
		t.Error("Records channel still open after Close")
	}
}

func TestSubmitAfterCloseRejected(t *testing.T) {
	e := NewExecutor(&fakeInvoker{}, time.Minute, 2, nil)
	e.Close(time.Second)

	if got := e.Submit(Action{Kind: RestartComponent, SubsystemID: "api"}); got != Rejected {
		t.Errorf("Submit after Close = %v, want Rejected", got)
	}
}

func TestIdempotenceKeyBucketing(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bucket := 5 * time.Minute

	k1 := IdempotenceKey("api", RestartComponent, at, bucket)
	k2 := IdempotenceKey("api", RestartComponent, at.Add(4*time.Minute), bucket)
	k3 := IdempotenceKey("api", RestartComponent, at.Add(6*time.Minute), bucket)

	if k1 != k2 {
		t.Errorf("keys inside one bucket differ: %s vs %s", k1, k2)
	}
	if k1 == k3 {
		t.Errorf("keys across buckets match: %s", k1)
	}
	if k := IdempotenceKey("db", RestartComponent, at, bucket); k == k1 {
		t.Error("keys for different subsystems match")
	}
	if k := IdempotenceKey("api", ReleaseMemory, at, bucket); k == k1 {
		t.Error("keys for different kinds match")
	}
}
