// Package registry holds discovery candidates keyed by token mint.
//
// All state is owned by a single actor goroutine started with Run. Callers
// interact only through request messages (AddOrMerge, SelectionCycle,
// Snapshot), so every upsert is atomic per mint and the selection cycle can
// never overlap itself or observe a half-merged candidate.
package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/idhash"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/queue"
)

// ErrStopped is returned when the registry actor is no longer running.
var ErrStopped = errors.New("registry stopped")

// DefaultMinScores are the per-source eligibility floors.
var DefaultMinScores = map[domain.Source]float64{
	domain.SourceNewPool:  80,
	domain.SourceFlow:     60,
	domain.SourceTrending: 70,
}

// MergeOutcome describes what AddOrMerge did.
type MergeOutcome string

const (
	OutcomeInserted MergeOutcome = "INSERTED" // no live entry existed
	OutcomeReplaced MergeOutcome = "REPLACED" // incoming had the higher score
	OutcomeMerged   MergeOutcome = "MERGED"   // existing kept its score, metadata merged
)

// CycleReport summarizes one selection cycle.
type CycleReport struct {
	CycleID   string
	StartedAt int64              // Unix timestamp in milliseconds
	Expired   []string           // mints removed by TTL
	Selected  []domain.Candidate // in notification order
	Remaining int                // live entries after the cycle
}

// Selection is one candidate handed to evaluation by a selection cycle.
type Selection struct {
	CycleID   string
	Candidate domain.Candidate
}

// Options contains configuration for creating a Registry.
type Options struct {
	SelectionInterval time.Duration                   // Default: 30s
	TopK              int                             // Default: 5
	MinScores         map[domain.Source]float64       // Default: DefaultMinScores
	TTLs              map[domain.Source]time.Duration // Optional per-source TTL overrides
	SelectedCapacity  int                             // Default: 64 - selected notification queue size
	Now               func() time.Time                // Default: time.Now
	Logger            zerolog.Logger
}

type addRequest struct {
	candidate domain.Candidate
	reply     chan addReply
}

type addReply struct {
	outcome MergeOutcome
	err     error
}

type cycleRequest struct {
	reply chan CycleReport
}

type snapshotRequest struct {
	reply chan []domain.Candidate
}

// Registry is the candidate store. Create with New and start with Run.
type Registry struct {
	interval  time.Duration
	topK      int
	minScores map[domain.Source]float64
	ttls      map[domain.Source]time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	adds      chan addRequest
	cycles    chan cycleRequest
	snapshots chan snapshotRequest
	done      chan struct{}

	selected *queue.DropOldest[Selection]

	// owned by the actor goroutine
	entries map[string]domain.Candidate
}

// New creates a Registry. It does not start the actor.
func New(opts Options) *Registry {
	interval := opts.SelectionInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}

	minScores := make(map[domain.Source]float64, len(DefaultMinScores))
	for src, v := range DefaultMinScores {
		minScores[src] = v
	}
	for src, v := range opts.MinScores {
		minScores[src] = v
	}

	selectedCap := opts.SelectedCapacity
	if selectedCap <= 0 {
		selectedCap = 64
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	r := &Registry{
		interval:  interval,
		topK:      topK,
		minScores: minScores,
		ttls:      opts.TTLs,
		now:       now,
		logger:    logger,
		adds:      make(chan addRequest),
		cycles:    make(chan cycleRequest),
		snapshots: make(chan snapshotRequest),
		done:      make(chan struct{}),
		entries:   make(map[string]domain.Candidate),
	}
	r.selected = queue.New(selectedCap, func(s Selection) {
		observability.RecordEventDropped(s.Candidate.Source.String(), "selected_queue_full")
		r.logger.Warn().
			Str("mint", s.Candidate.Mint).
			Str("registration_id", s.Candidate.ID).
			Str("cycle_id", s.CycleID).
			Msg("selected notification dropped, consumer too slow")
	})
	return r
}

// Run owns the registry state and runs the periodic selection cycle.
// It blocks until ctx is cancelled, then closes the selected queue.
// Queued notifications remain available to Next until drained.
func (r *Registry) Run(ctx context.Context) error {
	defer close(r.done)
	defer r.selected.Close()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.interval).
		Int("top_k", r.topK).
		Msg("registry started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Int("live", len(r.entries)).Msg("registry stopping")
			return ctx.Err()

		case req := <-r.adds:
			outcome, err := r.addOrMerge(req.candidate)
			req.reply <- addReply{outcome: outcome, err: err}

		case req := <-r.cycles:
			req.reply <- r.selectionCycle()

		case req := <-r.snapshots:
			req.reply <- r.snapshot()

		case <-ticker.C:
			r.selectionCycle()
		}
	}
}

// AddOrMerge upserts c keyed by mint. Safe for concurrent use.
// Invalid candidates are rejected with domain.ErrInvalidEvent and never touch existing entries.
func (r *Registry) AddOrMerge(ctx context.Context, c domain.Candidate) (MergeOutcome, error) {
	req := addRequest{candidate: c.Clone(), reply: make(chan addReply, 1)}
	select {
	case r.adds <- req:
	case <-r.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.outcome, rep.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// SelectionCycle runs a cycle immediately, serialized with the periodic one.
func (r *Registry) SelectionCycle(ctx context.Context) (CycleReport, error) {
	req := cycleRequest{reply: make(chan CycleReport, 1)}
	select {
	case r.cycles <- req:
	case <-r.done:
		return CycleReport{}, ErrStopped
	case <-ctx.Done():
		return CycleReport{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep, nil
	case <-ctx.Done():
		return CycleReport{}, ctx.Err()
	}
}

// Snapshot returns copies of all live candidates ordered by score descending.
func (r *Registry) Snapshot(ctx context.Context) ([]domain.Candidate, error) {
	req := snapshotRequest{reply: make(chan []domain.Candidate, 1)}
	select {
	case r.snapshots <- req:
	case <-r.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next blocks until a selected candidate is available.
// ok is false once ctx is done, or the registry has stopped and the queue is drained.
func (r *Registry) Next(ctx context.Context) (Selection, bool) {
	return r.selected.Pop(ctx)
}

// Done is closed when the actor exits.
func (r *Registry) Done() <-chan struct{} {
	return r.done
}

func (r *Registry) addOrMerge(c domain.Candidate) (MergeOutcome, error) {
	if err := validate(c); err != nil {
		r.logger.Warn().Err(err).Str("mint", c.Mint).Msg("candidate rejected")
		return "", err
	}

	existing, ok := r.entries[c.Mint]
	if !ok {
		c.ID = idhash.ComputeRegistrationID(c.Mint, c.Pool, c.Source, c.DiscoveredAt)
		r.entries[c.Mint] = c
		observability.UpdateRegistrySize(len(r.entries))
		r.logger.Debug().
			Str("mint", c.Mint).
			Str("source", c.Source.String()).
			Float64("score", c.Score).
			Msg("candidate added")
		return OutcomeInserted, nil
	}

	merged, outcome := Merge(existing, c)
	r.entries[c.Mint] = merged
	r.logger.Debug().
		Str("mint", c.Mint).
		Str("outcome", string(outcome)).
		Float64("score", merged.Score).
		Msg("candidate merged")
	return outcome, nil
}

// Merge combines a live entry with an incoming candidate for the same mint.
// The higher score wins (ties keep existing) and supplies score, source, type,
// and discovered-at. Expiry therefore follows the winning variant: a
// higher-scoring later event restarts the TTL under its own source. Metadata
// is the union with incoming keys overriding. The registration ID of the
// live entry is preserved.
func Merge(existing, incoming domain.Candidate) (domain.Candidate, MergeOutcome) {
	winner, loser := existing, incoming
	outcome := OutcomeMerged
	if incoming.Score > existing.Score {
		winner, loser = incoming, existing
		outcome = OutcomeReplaced
	}

	out := winner.Clone()
	out.ID = existing.ID
	if out.Pool == "" {
		out.Pool = loser.Pool
	}

	meta := make(map[string]string, len(existing.Metadata)+len(incoming.Metadata))
	for k, v := range existing.Metadata {
		meta[k] = v
	}
	for k, v := range incoming.Metadata {
		meta[k] = v
	}
	out.Metadata = meta
	return out, outcome
}

func (r *Registry) selectionCycle() CycleReport {
	start := r.now()
	nowMs := start.UnixMilli()
	report := CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: nowMs,
	}

	for mint, c := range r.entries {
		if r.isExpired(c, nowMs) {
			delete(r.entries, mint)
			report.Expired = append(report.Expired, mint)
		}
	}
	slices.Sort(report.Expired)

	eligible := make([]domain.Candidate, 0, len(r.entries))
	for _, c := range r.entries {
		if c.Score >= r.minScores[c.Source] {
			eligible = append(eligible, c)
		}
	}
	sortCandidates(eligible)
	if len(eligible) > r.topK {
		eligible = eligible[:r.topK]
	}

	sources := make([]string, 0, len(eligible))
	for _, c := range eligible {
		// notify first, then remove; re-entry requires a new discovery event
		r.selected.Push(Selection{CycleID: report.CycleID, Candidate: c.Clone()})
		delete(r.entries, c.Mint)
		report.Selected = append(report.Selected, c.Clone())
		sources = append(sources, c.Source.String())
	}
	report.Remaining = len(r.entries)

	observability.UpdateRegistrySize(report.Remaining)
	observability.RecordSelectionCycle(len(report.Expired), sources, start.Unix())

	r.logger.Info().
		Str("cycle_id", report.CycleID).
		Int("expired", len(report.Expired)).
		Int("selected", len(report.Selected)).
		Int("remaining", report.Remaining).
		Msg("selection cycle complete")
	return report
}

func (r *Registry) snapshot() []domain.Candidate {
	out := make([]domain.Candidate, 0, len(r.entries))
	for _, c := range r.entries {
		out = append(out, c.Clone())
	}
	sortCandidates(out)
	return out
}

func (r *Registry) isExpired(c domain.Candidate, nowMs int64) bool {
	if ttl, ok := r.ttls[c.Source]; ok && ttl > 0 {
		return nowMs > c.DiscoveredAt+ttl.Milliseconds()
	}
	return c.IsExpired(nowMs)
}

// sortCandidates orders by score descending, then earliest discovery, then mint.
func sortCandidates(cs []domain.Candidate) {
	slices.SortFunc(cs, func(a, b domain.Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.DiscoveredAt, b.DiscoveredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Mint, b.Mint)
	})
}

func validate(c domain.Candidate) error {
	switch {
	case c.Mint == "":
		return fmt.Errorf("%w: empty mint", domain.ErrInvalidEvent)
	case !c.Source.IsValid():
		return fmt.Errorf("%w: unknown source %q", domain.ErrInvalidEvent, c.Source)
	case math.IsNaN(c.Score) || math.IsInf(c.Score, 0) || c.Score < 0:
		return fmt.Errorf("%w: invalid score %v", domain.ErrInvalidEvent, c.Score)
	case c.DiscoveredAt <= 0:
		return fmt.Errorf("%w: missing discovered-at", domain.ErrInvalidEvent)
	}
	return nil
}
