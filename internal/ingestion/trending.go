package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// PollOptions configures the polling sources.
type PollOptions struct {
	Interval time.Duration    // Default: 60s
	Limit    int              // Default: 20 - trending entries inspected per poll
	Now      func() time.Time // Default: time.Now
	Logger   zerolog.Logger
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Interval <= 0 {
		o.Interval = 60 * time.Second
	}
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// TrendingSource polls the provider's trending list.
type TrendingSource struct {
	md   provider.MarketData
	opts PollOptions
	log  zerolog.Logger
}

var _ Source = (*TrendingSource)(nil)

// NewTrendingSource creates a trending-list source.
func NewTrendingSource(md provider.MarketData, opts PollOptions) *TrendingSource {
	opts = opts.withDefaults()
	return &TrendingSource{
		md:   md,
		opts: opts,
		log:  opts.Logger.With().Str("source", domain.SourceTrending.String()).Logger(),
	}
}

func (s *TrendingSource) Name() domain.Source { return domain.SourceTrending }

// Run polls until ctx is cancelled.
func (s *TrendingSource) Run(ctx context.Context, emit Emit) error {
	return pollLoop(ctx, s.Name(), s.opts.Interval, s.log, func(ctx context.Context) error {
		return s.Poll(ctx, emit)
	})
}

// Poll emits one TrendingEvent per listed token.
func (s *TrendingSource) Poll(ctx context.Context, emit Emit) error {
	tokens, err := s.md.Trending(ctx, s.opts.Limit)
	if err != nil {
		return fmt.Errorf("trending: %w", err)
	}

	nowMs := s.opts.Now().UnixMilli()
	for i, t := range tokens {
		rank := t.Rank
		if rank <= 0 {
			rank = i + 1
		}
		emit(&domain.TrendingEvent{
			Mint:         t.Mint,
			Pool:         t.Pool,
			Type:         poolTypeFromVenue(t.Venue),
			Rank:         rank,
			Volume24hUSD: t.Volume24hUSD,
			LiquidityUSD: t.LiquidityUSD,
			Timestamp:    nowMs,
		})
	}
	s.log.Debug().Int("tokens", len(tokens)).Msg("trending polled")
	return nil
}
