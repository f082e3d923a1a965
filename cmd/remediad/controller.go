// Package main implements the remediad control loop orchestration.
//
// This file contains the Controller type which owns the analysis pipeline:
//
//	collect → update windows → detect → recommend → submit → audit
//
// The Controller runs continuously via Run(), executing Tick() at regular
// intervals. Ticks never overlap: a slow tick delays the next one. The
// executor's in-flight actions cross tick boundaries and are tracked
// independently; their outcomes arrive on the record stream consumed by
// ConsumeRecords.
//
// The Controller exclusively owns all metric windows. Findings, actions and
// records are value objects passed by copy between stages; no shared mutable
// state crosses stage boundaries except through the executor's submit path.
package main

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/opsloop/remedia/cmd/remediad/metrics"
	"github.com/opsloop/remedia/pkg/detect"
	"github.com/opsloop/remedia/pkg/execute"
	"github.com/opsloop/remedia/pkg/recommend"
	"github.com/opsloop/remedia/pkg/sink"
	"github.com/opsloop/remedia/pkg/sources"
	"github.com/opsloop/remedia/pkg/window"
)

// Controller drives the feedback loop: observe, analyze, remediate, audit.
type Controller struct {
	srcs        []sources.Source
	detector    *detect.Detector
	recommender *recommend.Recommender
	executor    *execute.Executor
	sink        sink.Sink
	state       *sink.Memory
	windowSize  int
	logger      *slog.Logger
	metrics     *metrics.Metrics

	windows map[window.Key]*window.Window
	now     func() time.Time
}

// NewController creates a new Controller.
func NewController(
	srcs []sources.Source,
	detector *detect.Detector,
	recommender *recommend.Recommender,
	executor *execute.Executor,
	persistence sink.Sink,
	state *sink.Memory,
	windowSize int,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if windowSize <= 0 {
		windowSize = window.DefaultCapacity
	}

	return &Controller{
		srcs:        srcs,
		detector:    detector,
		recommender: recommender,
		executor:    executor,
		sink:        persistence,
		state:       state,
		windowSize:  windowSize,
		logger:      logger,
		metrics:     m,
		windows:     make(map[window.Key]*window.Window),
		now:         time.Now,
	}
}

// Run executes the control loop at regular intervals.
// Blocks until context is canceled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	c.logger.Info("starting control loop", "interval", interval, "sources", len(c.srcs))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("control loop stopped")
			return ctx.Err()
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick performs one loop cycle. Nothing in the pipeline is fatal: collection
// and persistence errors are logged and counted, detection gaps resolve to
// NOOP, and execution failures surface on the record stream.
// Exported for testing purposes.
func (c *Controller) Tick(ctx context.Context) {
	start := c.now()

	ingested := c.collect(ctx)

	states := c.windowStates()

	detectStart := c.now()
	findings := c.detector.Evaluate(c.now(), states)
	if c.metrics != nil {
		c.metrics.RecordDetect(c.now().Sub(detectStart).Seconds())
	}

	submitted := 0
	for _, f := range findings {
		if c.metrics != nil {
			c.metrics.RecordFinding(string(f.Kind), string(f.Severity))
		}

		candidates := c.recommender.Recommend(f)
		primary := candidates[0]
		status := c.executor.Submit(primary)
		if status == execute.Accepted {
			submitted++
		}

		c.logger.Info("finding",
			"subsystem", f.SubsystemID,
			"metric", f.Metric,
			"kind", f.Kind,
			"severity", f.Severity,
			"observed", f.Observed,
			"limit", f.Limit,
			"action", primary.Kind,
			"submit", status.String(),
		)
	}

	c.publish(states)

	c.logger.Debug("tick complete",
		"samples", ingested,
		"windows", len(c.windows),
		"findings", len(findings),
		"submitted", submitted,
		"total_ms", c.now().Sub(start).Milliseconds(),
	)
}

// collect pulls newly available samples from every source and pushes them
// into the windows. Returns the number of retained samples.
func (c *Controller) collect(ctx context.Context) int {
	start := c.now()
	ingested := 0

	for _, src := range c.srcs {
		samples, err := src.Collect(ctx)
		if err != nil {
			c.logger.Warn("source collect failed", "source", src.Name(), "error", err)
			if c.metrics != nil {
				c.metrics.RecordError("source", "collect_failed")
			}
			continue
		}
		if c.metrics != nil {
			c.metrics.RecordSamples(src.Name(), len(samples))
		}

		for _, s := range samples {
			if c.ingest(ctx, s) {
				ingested++
			}
		}
	}

	if c.metrics != nil {
		c.metrics.RecordCollect(c.now().Sub(start).Seconds())
	}
	return ingested
}

// ingest pushes one sample into its window and persists it. Out-of-order and
// duplicate samples are data anomalies, not errors: they are dropped, logged
// at debug, and counted.
func (c *Controller) ingest(ctx context.Context, s sources.Sample) bool {
	key := window.Key{SubsystemID: s.SubsystemID, Metric: s.Metric}
	w, ok := c.windows[key]
	if !ok {
		w = window.New(c.windowSize)
		c.windows[key] = w
	}

	result := w.Push(s.Value, s.Timestamp, s.Seq)
	if result != window.Pushed {
		c.logger.Debug("sample dropped",
			"subsystem", s.SubsystemID,
			"metric", s.Metric,
			"seq", s.Seq,
			"reason", result.String(),
		)
		if c.metrics != nil {
			c.metrics.RecordDroppedSample(result.String())
		}
		return false
	}

	// Persistence is fire-and-forget: a failing sink never delays the tick.
	if err := c.sink.WriteSample(ctx, s); err != nil {
		c.logger.Warn("sample persistence failed", "error", err)
		if c.metrics != nil {
			c.metrics.RecordError("sink", "sample_write_failed")
		}
	}
	return true
}

// windowStates snapshots every window in ascending (subsystem, metric) order
// so detection output is deterministic.
func (c *Controller) windowStates() []detect.WindowState {
	keys := make([]window.Key, 0, len(c.windows))
	for key := range c.windows {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	states := make([]detect.WindowState, 0, len(keys))
	for _, key := range keys {
		states = append(states, detect.WindowState{Key: key, Snap: c.windows[key].Snapshot()})
	}
	return states
}

// publish pushes the latest snapshots to the dashboard state store.
func (c *Controller) publish(states []detect.WindowState) {
	for _, st := range states {
		c.state.PutSnapshot(st.Key, st.Snap)
	}
	if c.metrics != nil {
		c.metrics.SetWindows(len(c.windows))
		c.metrics.SetInflight(c.executor.InflightCount())
	}
}

// ConsumeRecords drains the executor's record stream: every record is
// persisted, surfaced as an audit event, and counted. Blocks until the
// executor closes the stream during shutdown; run it in its own goroutine.
// The record stream is the single source of truth for failures — nothing
// here drops a failed action silently.
func (c *Controller) ConsumeRecords() {
	for rec := range c.executor.Records() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.sink.WriteRecord(ctx, rec); err != nil {
			c.logger.Warn("record persistence failed", "id", rec.ID, "error", err)
			if c.metrics != nil {
				c.metrics.RecordError("sink", "record_write_failed")
			}
		}
		cancel()

		c.logger.Info("remediation outcome",
			"id", rec.ID,
			"subsystem", rec.Action.SubsystemID,
			"kind", rec.Action.Kind,
			"key", rec.Action.IdempotenceKey,
			"outcome", rec.Outcome,
			"duration_ms", rec.FinishedAt.Sub(rec.StartedAt).Milliseconds(),
			"err", rec.Err,
		)

		if c.metrics != nil {
			c.metrics.RecordAction(string(rec.Action.Kind), string(rec.Outcome))
			if rec.Outcome == execute.OutcomeSuccess || rec.Outcome == execute.OutcomeFailed {
				c.metrics.RecordInvoke(rec.FinishedAt.Sub(rec.StartedAt).Seconds())
			}
			c.metrics.SetInflight(c.executor.InflightCount())
		}
	}
}
