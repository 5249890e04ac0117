package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// MemoryPublisher keeps the most recent messages per topic in memory.
// It backs tests and deployments without Redis.
type MemoryPublisher struct {
	mu         sync.Mutex
	limit      int
	closed     bool
	candidates []CandidateMessage
	guards     []GuardMessage
	signals    []SignalMessage
}

var _ Publisher = (*MemoryPublisher)(nil)

// NewMemoryPublisher retains at most limit messages per topic (default 1000).
func NewMemoryPublisher(limit int) *MemoryPublisher {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryPublisher{limit: limit}
}

func (p *MemoryPublisher) PublishCandidate(_ context.Context, m CandidateMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	p.candidates = appendBounded(p.candidates, m, p.limit)
	return nil
}

func (p *MemoryPublisher) PublishGuards(_ context.Context, m GuardMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	p.guards = appendBounded(p.guards, m, p.limit)
	return nil
}

func (p *MemoryPublisher) PublishSignal(_ context.Context, m SignalMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	p.signals = appendBounded(p.signals, m, p.limit)
	return nil
}

func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Candidates returns a copy of the retained candidate messages, oldest first.
func (p *MemoryPublisher) Candidates() []CandidateMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CandidateMessage(nil), p.candidates...)
}

// Guards returns a copy of the retained guard messages, oldest first.
func (p *MemoryPublisher) Guards() []GuardMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]GuardMessage(nil), p.guards...)
}

// Signals returns a copy of the retained signal messages, oldest first.
func (p *MemoryPublisher) Signals() []SignalMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SignalMessage(nil), p.signals...)
}

func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0], s[len(s)-limit:]...)
	}
	return s
}
