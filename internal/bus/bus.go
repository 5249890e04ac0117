// Package bus fans evaluation output out to downstream consumers.
package bus

import (
	"context"

	"solana-signal-engine/internal/domain"
)

// Channel suffixes appended to the configured prefix.
const (
	TopicCandidates = "candidates"
	TopicGuards     = "guards"
	TopicSignals    = "signals"
)

// CandidateMessage announces a registry upsert or a selection.
type CandidateMessage struct {
	ID           string            `json:"id"`
	Mint         string            `json:"mint"`
	Pool         string            `json:"pool,omitempty"`
	Source       domain.Source     `json:"source"`
	Type         domain.PoolType   `json:"type"`
	DiscoveredAt int64             `json:"discovered_at"`
	Score        float64           `json:"score"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Event        string            `json:"event"`              // INSERTED | REPLACED | MERGED | SELECTED
	CycleID      string            `json:"cycle_id,omitempty"` // set for SELECTED
}

// NewCandidateMessage builds a message from a candidate.
func NewCandidateMessage(c domain.Candidate, event, cycleID string) CandidateMessage {
	c = c.Clone()
	return CandidateMessage{
		ID:           c.ID,
		Mint:         c.Mint,
		Pool:         c.Pool,
		Source:       c.Source,
		Type:         c.Type,
		DiscoveredAt: c.DiscoveredAt,
		Score:        c.Score,
		Metadata:     c.Metadata,
		Event:        event,
		CycleID:      cycleID,
	}
}

// GuardMessage carries a safety-gate verdict.
type GuardMessage struct {
	SubjectID   string                    `json:"subject_id"`
	Mint        string                    `json:"mint"`
	Accepted    bool                      `json:"accepted"`
	Failed      []string                  `json:"failed,omitempty"`
	Warnings    []string                  `json:"warnings,omitempty"`
	Results     []domain.GuardCheckResult `json:"results"`
	EvaluatedAt int64                     `json:"evaluated_at"`
}

// SignalMessage carries one strategy evaluation.
type SignalMessage struct {
	SignalID  string                `json:"signal_id"`
	SubjectID string                `json:"subject_id"`
	CycleID   string                `json:"cycle_id,omitempty"`
	Kind      domain.EvaluationKind `json:"kind"`
	Result    domain.StrategyResult `json:"result"`
}

// NewSignalMessage builds a message from a journal record.
func NewSignalMessage(r *domain.SignalRecord) SignalMessage {
	return SignalMessage{
		SignalID:  r.SignalID,
		SubjectID: r.SubjectID,
		CycleID:   r.CycleID,
		Kind:      r.Kind,
		Result:    r.Result,
	}
}

// Publisher fans messages out. Implementations are safe for concurrent use.
type Publisher interface {
	PublishCandidate(ctx context.Context, m CandidateMessage) error
	PublishGuards(ctx context.Context, m GuardMessage) error
	PublishSignal(ctx context.Context, m SignalMessage) error
	Close() error
}
