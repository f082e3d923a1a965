// Package sink provides persistence backends for metric samples and
// execution records, plus the in-memory state store backing the dashboard
// API.
//
// Writes are fire-and-forget from the control loop's perspective: the loop
// logs and counts sink errors but never lets them delay or fail a tick.
package sink

import (
	"context"
	"errors"

	"github.com/opsloop/remedia/pkg/execute"
	"github.com/opsloop/remedia/pkg/sources"
)

// Sink receives every sample and every execution record for durable storage.
type Sink interface {
	WriteSample(ctx context.Context, s sources.Sample) error
	WriteRecord(ctx context.Context, r execute.Record) error
	Close() error
}

// Fanout writes to several sinks and reports a joined error. One failing
// backend never prevents the others from receiving the write.
type Fanout struct {
	sinks []Sink
}

// NewFanout composes sinks into one. A fanout over zero sinks discards
// everything.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) WriteSample(ctx context.Context, s sources.Sample) error {
	var errs []error
	for _, snk := range f.sinks {
		if err := snk.WriteSample(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WriteRecord(ctx context.Context, r execute.Record) error {
	var errs []error
	for _, snk := range f.sinks {
		if err := snk.WriteRecord(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, snk := range f.sinks {
		if err := snk.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
