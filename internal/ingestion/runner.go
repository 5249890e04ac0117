package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/queue"
	"solana-signal-engine/internal/registry"
)

// CandidateSink accepts scored candidates. *registry.Registry implements it.
type CandidateSink interface {
	AddOrMerge(ctx context.Context, c domain.Candidate) (registry.MergeOutcome, error)
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Sources       []Source
	Sink          CandidateSink
	QueueCapacity int              // Default: 1024
	RestartDelay  time.Duration    // Default: 5s - wait before restarting a failed source
	Now           func() time.Time // Default: time.Now
	Logger        zerolog.Logger

	// OnCandidate, if set, is called after each successful upsert.
	OnCandidate func(ctx context.Context, c domain.Candidate, outcome registry.MergeOutcome)
}

// Runner owns the ingress queue. Sources push without blocking; a single
// consumer scores events and upserts them into the sink.
type Runner struct {
	sources      []Source
	sink         CandidateSink
	queue        *queue.DropOldest[domain.DiscoveryEvent]
	restartDelay time.Duration
	now          func() time.Time
	logger       zerolog.Logger
	onCandidate  func(context.Context, domain.Candidate, registry.MergeOutcome)
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = 1024
	}
	restart := opts.RestartDelay
	if restart <= 0 {
		restart = 5 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger.With().Str("component", "ingestion").Logger()

	r := &Runner{
		sources:      opts.Sources,
		sink:         opts.Sink,
		restartDelay: restart,
		now:          now,
		logger:       logger,
		onCandidate:  opts.OnCandidate,
	}
	r.queue = queue.New(capacity, func(ev domain.DiscoveryEvent) {
		observability.RecordEventDropped(ev.EventSource().String(), "queue_full")
		r.logger.Warn().Str("mint", ev.TokenMint()).Str("source", ev.EventSource().String()).Msg("ingress queue full, oldest event dropped")
	})
	return r
}

// Push enqueues ev. It never blocks; when the queue is full the oldest
// event is discarded. Nil events are ignored.
func (r *Runner) Push(ev domain.DiscoveryEvent) {
	if ev == nil {
		return
	}
	observability.RecordEventReceived(ev.EventSource().String())
	if !r.queue.Push(ev) {
		observability.RecordEventDropped(ev.EventSource().String(), "closed")
	}
}

// Pending returns the number of queued events.
func (r *Runner) Pending() int {
	return r.queue.Len()
}

// Run starts every source and the consumer. It blocks until ctx is
// cancelled or the sink stops, then closes the queue and drains what
// remains while the sink still accepts.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	producers, stopProducers := context.WithCancel(gctx)
	defer stopProducers()

	var sources errgroup.Group
	for _, src := range r.sources {
		src := src
		sources.Go(func() error {
			r.runSource(producers, src)
			return nil
		})
	}

	g.Go(func() error {
		err := r.consume(gctx)
		stopProducers()
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		stopProducers()
		_ = sources.Wait()
		r.queue.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// runSource keeps src running, restarting it after failures.
func (r *Runner) runSource(ctx context.Context, src Source) {
	logger := r.logger.With().Str("source", src.Name().String()).Logger()
	for {
		err := safeRun(ctx, src, r.Push)
		if ctx.Err() != nil {
			return
		}
		observability.RecordSourceError(src.Name().String())
		logger.Error().Err(err).Dur("restart_in", r.restartDelay).Msg("source stopped")

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.restartDelay):
		}
	}
}

func safeRun(ctx context.Context, src Source, emit Emit) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("source panicked: %v", p)
		}
	}()
	err = src.Run(ctx, emit)
	if err == nil {
		err = errors.New("source returned")
	}
	return err
}

// consume pops events until the queue is closed and drained.
func (r *Runner) consume(ctx context.Context) error {
	// drain with a detached context so shutdown does not discard accepted events
	drain := context.WithoutCancel(ctx)
	for {
		ev, ok := r.queue.Pop(drain)
		if !ok {
			return nil
		}
		if err := r.process(drain, ev); err != nil {
			return err
		}
	}
}

// process scores and upserts one event. Only a stopped sink is fatal.
func (r *Runner) process(ctx context.Context, ev domain.DiscoveryEvent) error {
	src := ev.EventSource().String()

	c, err := registry.ScoreEvent(ev, r.now().UnixMilli())
	if err != nil {
		observability.RecordEventDropped(src, "invalid")
		r.logger.Warn().Err(err).Str("source", src).Str("mint", ev.TokenMint()).Msg("invalid event dropped")
		return nil
	}

	outcome, err := r.sink.AddOrMerge(ctx, c)
	if err != nil {
		if errors.Is(err, registry.ErrStopped) {
			return err
		}
		observability.RecordEventDropped(src, "rejected")
		r.logger.Warn().Err(err).Str("source", src).Str("mint", c.Mint).Msg("candidate rejected")
		return nil
	}

	r.logger.Debug().
		Str("mint", c.Mint).
		Str("source", src).
		Float64("score", c.Score).
		Str("outcome", string(outcome)).
		Msg("candidate upserted")

	if r.onCandidate != nil {
		r.onCandidate(ctx, c, outcome)
	}
	return nil
}
