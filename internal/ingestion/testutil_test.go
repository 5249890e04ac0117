package ingestion

import (
	"context"
	"sync"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/registry"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// collector is a non-blocking Emit target.
type collector struct {
	mu     sync.Mutex
	events []domain.DiscoveryEvent
}

func (c *collector) emit(ev domain.DiscoveryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) all() []domain.DiscoveryEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.DiscoveryEvent(nil), c.events...)
}

// funcSource adapts a function to Source.
type funcSource struct {
	name domain.Source
	run  func(ctx context.Context, emit Emit) error
}

func (s *funcSource) Name() domain.Source { return s.name }
func (s *funcSource) Run(ctx context.Context, emit Emit) error {
	return s.run(ctx, emit)
}

// fakeSink records upserted candidates.
type fakeSink struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	err        error
}

func (s *fakeSink) AddOrMerge(_ context.Context, c domain.Candidate) (registry.MergeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.candidates = append(s.candidates, c)
	return registry.OutcomeInserted, nil
}

func (s *fakeSink) mints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.candidates))
	for i, c := range s.candidates {
		out[i] = c.Mint
	}
	return out
}
