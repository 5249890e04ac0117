package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/indicator"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/provider"
)

// FlowOptions configures a FlowSource.
type FlowOptions struct {
	PollOptions
	Window          time.Duration // Default: 1h - net inflow window
	MinNetInflowUSD float64       // events are emitted only above this; default 0
}

// FlowSource polls the trending list and reports tokens with net buying
// over Window, measured from recent trades.
type FlowSource struct {
	md     provider.MarketData
	opts   PollOptions
	window time.Duration
	min    float64
	log    zerolog.Logger
}

var _ Source = (*FlowSource)(nil)

// NewFlowSource creates a net-inflow source.
func NewFlowSource(md provider.MarketData, opts FlowOptions) *FlowSource {
	window := opts.Window
	if window <= 0 {
		window = time.Hour
	}
	poll := opts.PollOptions.withDefaults()
	return &FlowSource{
		md:     md,
		opts:   poll,
		window: window,
		min:    opts.MinNetInflowUSD,
		log:    poll.Logger.With().Str("source", domain.SourceFlow.String()).Logger(),
	}
}

func (s *FlowSource) Name() domain.Source { return domain.SourceFlow }

// Run polls until ctx is cancelled.
func (s *FlowSource) Run(ctx context.Context, emit Emit) error {
	return pollLoop(ctx, s.Name(), s.opts.Interval, s.log, func(ctx context.Context) error {
		return s.Poll(ctx, emit)
	})
}

// Poll inspects each trending token and emits a FlowEvent for those with
// net inflow above the minimum. A failure on one token does not stop the poll.
func (s *FlowSource) Poll(ctx context.Context, emit Emit) error {
	tokens, err := s.md.Trending(ctx, s.opts.Limit)
	if err != nil {
		return fmt.Errorf("trending: %w", err)
	}

	now := s.opts.Now()
	nowMs := now.UnixMilli()
	sinceMs := now.Add(-s.window).UnixMilli()

	for _, t := range tokens {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ev, err := s.measure(ctx, t, sinceMs, nowMs)
		if err != nil {
			observability.RecordSourceError(s.Name().String())
			s.log.Warn().Err(err).Str("mint", t.Mint).Msg("flow measurement failed")
			continue
		}
		if ev == nil {
			continue
		}
		emit(ev)
	}
	return nil
}

func (s *FlowSource) measure(ctx context.Context, t domain.TrendingToken, sinceMs, nowMs int64) (*domain.FlowEvent, error) {
	trades, err := s.md.Trades(ctx, t.Mint, sinceMs)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, nil
	}

	inflow := indicator.CalculateNetInflow(trades, sinceMs)
	if inflow <= s.min {
		return nil, nil
	}

	volume := t.Volume24hUSD
	if volume <= 0 {
		ov, err := s.md.TokenOverview(ctx, t.Mint)
		if err != nil {
			return nil, err
		}
		if ov != nil {
			volume = ov.Volume24hUSD
		}
	}

	return &domain.FlowEvent{
		Mint:         t.Mint,
		Pool:         t.Pool,
		Type:         poolTypeFromVenue(t.Venue),
		NetInflowUSD: inflow,
		Volume24hUSD: volume,
		UniqueBuyers: indicator.UniqueBuyers(trades, sinceMs, 0),
		Timestamp:    nowMs,
	}, nil
}
