package sources

import (
	"context"
	"sync"
)

// StaticSource replays a predefined script of sample batches, one batch per
// Collect call. Once the script is exhausted every further call returns an
// empty batch, which the loop treats as "no new data" and eventually reports
// as a stale window.
//
// StaticSource exists for tests and demos; it never fails.
type StaticSource struct {
	mu      sync.Mutex
	batches [][]Sample
	next    int
}

// NewStaticSource creates a source that yields the given batches in order.
func NewStaticSource(batches ...[]Sample) *StaticSource {
	return &StaticSource{batches: batches}
}

func (s *StaticSource) Name() string { return "static" }

// Collect returns the next scripted batch, or nil when exhausted.
func (s *StaticSource) Collect(ctx context.Context) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.batches) {
		return nil, nil
	}
	batch := s.batches[s.next]
	s.next++
	return batch, nil
}

// Append adds a batch to the end of the script. Useful for tests that feed
// samples between ticks.
func (s *StaticSource) Append(batch []Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
}
