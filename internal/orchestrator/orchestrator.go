// Package orchestrator wires discovery, the candidate registry and the
// strategy engine into the long-running signal pipeline.
//
// Flow: sources → ingress queue → registry → selection cycle → entry
// evaluation → journal + publisher. An independent exit monitor evaluates
// open positions on a fixed interval.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-signal-engine/internal/bus"
	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/idhash"
	"solana-signal-engine/internal/ingestion"
	"solana-signal-engine/internal/logging"
	"solana-signal-engine/internal/provider"
	"solana-signal-engine/internal/registry"
	"solana-signal-engine/internal/storage"
	"solana-signal-engine/internal/strategy"
)

// Evaluator produces entry and exit decisions. *strategy.Engine implements it.
type Evaluator interface {
	EvaluateEntry(ctx context.Context, c domain.Candidate) strategy.Entry
	EvaluateExit(ctx context.Context, p domain.Position) domain.StrategyResult
}

var _ Evaluator = (*strategy.Engine)(nil)

// Options for creating Orchestrator.
type Options struct {
	// Required
	Registry  *registry.Registry
	Engine    Evaluator
	Journal   storage.SignalStore
	Publisher bus.Publisher

	// Discovery
	Sources         []ingestion.Source
	IngressCapacity int                         // Default: 1024
	RestartDelay    time.Duration               // Default: 5s
	Sampler         *ingestion.LiquiditySampler // Optional

	// Exit monitor, disabled when Positions is nil
	Positions    provider.PositionRepository
	ExitInterval time.Duration // Default: 15s
	ExitWorkers  int           // Default: 8

	EvalWorkers   int           // Default: 5 - concurrent entry evaluations
	EvalTimeout   time.Duration // Default: 20s
	ShutdownGrace time.Duration // Default: 10s

	Now    func() time.Time
	Logger zerolog.Logger
}

// Stats counts pipeline activity since start.
type Stats struct {
	Entries       int64 `json:"entries"`
	Buys          int64 `json:"buys"`
	Exits         int64 `json:"exits"`
	ExitSignals   int64 `json:"exit_signals"`
	JournalErrors int64 `json:"journal_errors"`
	PublishErrors int64 `json:"publish_errors"`
}

// Orchestrator coordinates the signal pipeline.
type Orchestrator struct {
	registry  *registry.Registry
	engine    Evaluator
	journal   storage.SignalStore
	publisher bus.Publisher
	ingestion *ingestion.Runner
	sampler   *ingestion.LiquiditySampler
	positions provider.PositionRepository

	exitInterval  time.Duration
	exitWorkers   int
	evalWorkers   int
	evalTimeout   time.Duration
	shutdownGrace time.Duration
	now           func() time.Time
	logger        zerolog.Logger

	entries       atomic.Int64
	buys          atomic.Int64
	exits         atomic.Int64
	exitSignals   atomic.Int64
	journalErrors atomic.Int64
	publishErrors atomic.Int64
}

// New validates opts and creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil || opts.Engine == nil || opts.Journal == nil || opts.Publisher == nil {
		return nil, fmt.Errorf("%w: orchestrator needs a registry, engine, journal and publisher", domain.ErrConfiguration)
	}

	o := &Orchestrator{
		registry:      opts.Registry,
		engine:        opts.Engine,
		journal:       opts.Journal,
		publisher:     opts.Publisher,
		sampler:       opts.Sampler,
		positions:     opts.Positions,
		exitInterval:  opts.ExitInterval,
		exitWorkers:   opts.ExitWorkers,
		evalWorkers:   opts.EvalWorkers,
		evalTimeout:   opts.EvalTimeout,
		shutdownGrace: opts.ShutdownGrace,
		now:           opts.Now,
		logger:        logging.Component(opts.Logger, "orchestrator"),
	}
	if o.exitInterval <= 0 {
		o.exitInterval = 15 * time.Second
	}
	if o.exitWorkers <= 0 {
		o.exitWorkers = 8
	}
	if o.evalWorkers <= 0 {
		o.evalWorkers = 5
	}
	if o.evalTimeout <= 0 {
		o.evalTimeout = 20 * time.Second
	}
	if o.shutdownGrace <= 0 {
		o.shutdownGrace = 10 * time.Second
	}
	if o.now == nil {
		o.now = time.Now
	}

	if len(opts.Sources) > 0 {
		o.ingestion = ingestion.NewRunner(ingestion.RunnerOptions{
			Sources:       opts.Sources,
			Sink:          opts.Registry,
			QueueCapacity: opts.IngressCapacity,
			RestartDelay:  opts.RestartDelay,
			Now:           opts.Now,
			Logger:        opts.Logger,
			OnCandidate:   o.onCandidate,
		})
	}
	return o, nil
}

// Ingestion returns the ingress runner, nil when no source is configured.
func (o *Orchestrator) Ingestion() *ingestion.Runner {
	return o.ingestion
}

// Stats returns a snapshot of the activity counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Entries:       o.entries.Load(),
		Buys:          o.buys.Load(),
		Exits:         o.exits.Load(),
		ExitSignals:   o.exitSignals.Load(),
		JournalErrors: o.journalErrors.Load(),
		PublishErrors: o.publishErrors.Load(),
	}
}

// Run blocks until ctx is cancelled or a producer fails.
//
// Shutdown order: producers stop first (the ingress queue drains into the
// registry), then the registry actor stops, then queued selections are
// evaluated for at most ShutdownGrace before in-flight work is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	base := context.WithoutCancel(ctx)
	regCtx, stopRegistry := context.WithCancel(base)
	defer stopRegistry()
	evalCtx, stopEval := context.WithCancel(base)
	defer stopEval()

	regDone := make(chan error, 1)
	go func() { regDone <- o.registry.Run(regCtx) }()

	entryDone := make(chan error, 1)
	go func() { entryDone <- o.entryLoop(evalCtx) }()

	producers, pctx := errgroup.WithContext(ctx)
	if o.ingestion != nil {
		producers.Go(func() error { return o.ingestion.Run(pctx) })
	}
	if o.sampler != nil {
		producers.Go(func() error { return o.sampler.Run(pctx) })
	}
	if o.positions != nil {
		producers.Go(func() error { return o.exitLoop(pctx) })
	}

	o.logger.Info().
		Bool("ingestion", o.ingestion != nil).
		Bool("sampler", o.sampler != nil).
		Bool("exits", o.positions != nil).
		Msg("pipeline started")

	runErr := producers.Wait()
	if isShutdown(runErr) {
		runErr = nil
	}
	if runErr != nil {
		o.logger.Error().Err(runErr).Msg("producer failed, shutting down")
	} else if ctx.Err() == nil {
		// nothing to produce; wait for cancellation
		<-ctx.Done()
	}

	stopRegistry()
	<-regDone

	timer := time.NewTimer(o.shutdownGrace)
	defer timer.Stop()
	select {
	case <-entryDone:
	case <-timer.C:
		o.logger.Warn().Dur("grace", o.shutdownGrace).Msg("shutdown grace elapsed, cancelling in-flight evaluations")
		stopEval()
		<-entryDone
	}

	st := o.Stats()
	o.logger.Info().
		Int64("entries", st.Entries).
		Int64("buys", st.Buys).
		Int64("exits", st.Exits).
		Int64("exit_signals", st.ExitSignals).
		Int64("journal_errors", st.JournalErrors).
		Int64("publish_errors", st.PublishErrors).
		Msg("pipeline stopped")

	if runErr != nil {
		return runErr
	}
	return ctx.Err()
}

func isShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// entryLoop evaluates selections until the registry has stopped and its
// queue is drained, or ctx is cancelled.
func (o *Orchestrator) entryLoop(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(o.evalWorkers)

	for {
		sel, ok := o.registry.Next(ctx)
		if !ok {
			break
		}
		g.Go(func() error {
			o.EvaluateSelection(ctx, sel)
			return nil
		})
	}
	return g.Wait()
}

// EvaluateSelection runs one entry evaluation and records its outcome.
func (o *Orchestrator) EvaluateSelection(ctx context.Context, sel registry.Selection) {
	ctx, cancel := context.WithTimeout(ctx, o.evalTimeout)
	defer cancel()

	c := sel.Candidate
	o.publish("candidate", func() error {
		return o.publisher.PublishCandidate(ctx, bus.NewCandidateMessage(c, "SELECTED", sel.CycleID))
	})

	if o.sampler != nil {
		o.sampler.Track(c.Mint)
	}

	entry := o.engine.EvaluateEntry(ctx, c)
	o.entries.Add(1)
	if entry.Result.Signal == domain.SignalBuy {
		o.buys.Add(1)
	}

	rec := &domain.SignalRecord{
		SignalID:  idhash.ComputeSignalID(c.ID, entry.Result.Sleeve, entry.Result.Signal, entry.Result.EvaluatedAt),
		SubjectID: c.ID,
		CycleID:   sel.CycleID,
		Kind:      domain.EvaluationEntry,
		Result:    entry.Result,
		Guards:    entry.Guards,
	}
	o.record(ctx, rec)

	if entry.Verdict != nil {
		o.publish("guards", func() error {
			return o.publisher.PublishGuards(ctx, bus.GuardMessage{
				SubjectID:   c.ID,
				Mint:        c.Mint,
				Accepted:    entry.Verdict.Accepted,
				Failed:      entry.Verdict.Failed,
				Warnings:    entry.Verdict.Warnings,
				Results:     entry.Verdict.Results,
				EvaluatedAt: entry.Result.EvaluatedAt,
			})
		})
	}
	o.publish("signal", func() error {
		return o.publisher.PublishSignal(ctx, bus.NewSignalMessage(rec))
	})

	o.logger.Info().
		Str("mint", c.Mint).
		Str("registration_id", c.ID).
		Str("cycle_id", sel.CycleID).
		Str("sleeve", string(entry.Result.Sleeve)).
		Str("signal", string(entry.Result.Signal)).
		Float64("confidence", entry.Result.Confidence).
		Str("reason", entry.Result.Reason).
		Msg("entry evaluated")
}

func (o *Orchestrator) exitLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.exitInterval)
	defer ticker.Stop()

	for {
		if _, err := o.CheckExits(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error().Err(err).Msg("exit check failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CheckExits evaluates every open position once, each independently.
// It returns the number of positions evaluated.
func (o *Orchestrator) CheckExits(ctx context.Context) (int, error) {
	if o.positions == nil {
		return 0, nil
	}
	positions, err := o.positions.OpenPositions(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list open positions: %w", err)
	}

	var g errgroup.Group
	g.SetLimit(o.exitWorkers)
	for _, p := range positions {
		p := p
		g.Go(func() error {
			o.evaluateExit(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return len(positions), nil
}

// evaluateExit drops results of passes aborted by shutdown; only a
// completed pass is journaled or published.
func (o *Orchestrator) evaluateExit(parent context.Context, p domain.Position) {
	ctx, cancel := context.WithTimeout(parent, o.evalTimeout)
	defer cancel()

	res := o.engine.EvaluateExit(ctx, p)
	if parent.Err() != nil {
		o.logger.Debug().Str("mint", p.Mint).Str("position", p.ID).Msg("exit evaluation aborted")
		return
	}
	o.exits.Add(1)

	rec := &domain.SignalRecord{
		SignalID:  idhash.ComputeSignalID(p.ID, res.Sleeve, res.Signal, res.EvaluatedAt),
		SubjectID: p.ID,
		Kind:      domain.EvaluationExit,
		Result:    res,
	}
	o.record(ctx, rec)

	if !res.IsActionable() {
		o.logger.Debug().Str("mint", p.Mint).Str("position", p.ID).Str("reason", res.Reason).Msg("position held")
		return
	}

	o.exitSignals.Add(1)
	o.publish("signal", func() error {
		return o.publisher.PublishSignal(ctx, bus.NewSignalMessage(rec))
	})
	o.logger.Info().
		Str("mint", p.Mint).
		Str("position", p.ID).
		Str("sleeve", string(res.Sleeve)).
		Str("signal", string(res.Signal)).
		Float64("size", res.SuggestedSize).
		Str("reason", res.Reason).
		Msg("exit signal")
}

// onCandidate announces registry upserts and starts liquidity sampling for
// new registrations, so history accumulates while the candidate waits for
// selection.
func (o *Orchestrator) onCandidate(ctx context.Context, c domain.Candidate, outcome registry.MergeOutcome) {
	if o.sampler != nil && (outcome == registry.OutcomeInserted || outcome == registry.OutcomeReplaced) {
		o.sampler.Track(c.Mint)
	}
	o.publish("candidate", func() error {
		return o.publisher.PublishCandidate(ctx, bus.NewCandidateMessage(c, string(outcome), ""))
	})
}

func (o *Orchestrator) record(ctx context.Context, rec *domain.SignalRecord) {
	err := o.journal.Insert(ctx, rec)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrDuplicateKey):
		o.logger.Debug().Str("signal_id", rec.SignalID).Msg("signal already journaled")
	default:
		o.journalErrors.Add(1)
		o.logger.Error().Err(err).
			Str("signal_id", rec.SignalID).
			Str("mint", rec.Result.Mint).
			Str("kind", string(rec.Kind)).
			Msg("journal insert failed")
	}
}

func (o *Orchestrator) publish(what string, fn func() error) {
	if err := fn(); err != nil {
		o.publishErrors.Add(1)
		o.logger.Warn().Err(err).Str("message", what).Msg("publish failed")
	}
}
