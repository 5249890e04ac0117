package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
	"solana-signal-engine/internal/storage"
)

// SamplerOptions configures a LiquiditySampler.
type SamplerOptions struct {
	Interval   time.Duration    // Default: 60s
	TrackFor   time.Duration    // Default: 2h - how long a mint is sampled after its last Track
	MaxTracked int              // Default: 500 - oldest mints are evicted beyond this
	Workers    int              // Default: 8 - concurrent overview fetches
	Now        func() time.Time // Default: time.Now
	Logger     zerolog.Logger
}

// LiquiditySampler records overview liquidity for tracked mints so the
// liquidity-pull guard has history where the provider keeps none.
type LiquiditySampler struct {
	md    provider.MarketData
	store storage.LiquidityTimeseriesStore
	opts  SamplerOptions
	log   zerolog.Logger

	mu      sync.Mutex
	tracked map[string]int64    // mint -> last Track, unix ms
	pending map[string]struct{} // tracked but not yet sampled
	kick    chan struct{}
}

// NewLiquiditySampler creates a sampler writing into store.
func NewLiquiditySampler(md provider.MarketData, store storage.LiquidityTimeseriesStore, opts SamplerOptions) *LiquiditySampler {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.TrackFor <= 0 {
		opts.TrackFor = 2 * time.Hour
	}
	if opts.MaxTracked <= 0 {
		opts.MaxTracked = 500
	}
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LiquiditySampler{
		md:      md,
		store:   store,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "liquidity_sampler").Logger(),
		tracked: make(map[string]int64),
		pending: make(map[string]struct{}),
		kick:    make(chan struct{}, 1),
	}
}

// Track starts or extends sampling for mint. A newly tracked mint is
// sampled by Run without waiting for the next tick. Safe for concurrent use
// and never blocks on I/O.
func (s *LiquiditySampler) Track(mint string) {
	if mint == "" {
		return
	}
	nowMs := s.opts.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[mint]; !ok {
		s.pending[mint] = struct{}{}
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
	s.tracked[mint] = nowMs
	if len(s.tracked) <= s.opts.MaxTracked {
		return
	}
	var oldest string
	var oldestAt int64
	for m, at := range s.tracked {
		if oldest == "" || at < oldestAt {
			oldest, oldestAt = m, at
		}
	}
	delete(s.tracked, oldest)
	delete(s.pending, oldest)
}

// Tracked returns the number of mints being sampled.
func (s *LiquiditySampler) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracked)
}

// Run samples every Interval until ctx is cancelled.
func (s *LiquiditySampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.kick:
			n, err := s.SamplePending(ctx)
			s.logRound(ctx, "pending", n, err)
		case <-ticker.C:
			n, err := s.SampleOnce(ctx)
			s.logRound(ctx, "tick", n, err)
		}
	}
}

func (s *LiquiditySampler) logRound(ctx context.Context, round string, n int, err error) {
	if err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Str("round", round).Msg("liquidity sampling incomplete")
	}
	s.log.Debug().Int("samples", n).Str("round", round).Msg("liquidity sampled")
}

// SampleOnce expires stale mints and records one sample per tracked mint.
// Returns the number of samples written and the first error encountered.
func (s *LiquiditySampler) SampleOnce(ctx context.Context) (int, error) {
	nowMs := s.opts.Now().UnixMilli()
	return s.sample(ctx, s.live(nowMs), nowMs)
}

// SamplePending records a first sample for mints tracked since the last round.
func (s *LiquiditySampler) SamplePending(ctx context.Context) (int, error) {
	s.mu.Lock()
	mints := make([]string, 0, len(s.pending))
	for m := range s.pending {
		if _, ok := s.tracked[m]; ok {
			mints = append(mints, m)
		}
	}
	clear(s.pending)
	s.mu.Unlock()

	return s.sample(ctx, mints, s.opts.Now().UnixMilli())
}

func (s *LiquiditySampler) sample(ctx context.Context, mints []string, nowMs int64) (int, error) {
	var (
		mu       sync.Mutex
		written  int
		firstErr error
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			written++
			return
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for _, mint := range mints {
		mint := mint
		g.Go(func() error {
			ov, err := s.md.TokenOverview(ctx, mint)
			if err != nil {
				record(err)
				return nil
			}
			if ov == nil || ov.LiquidityUSD < 0 {
				return nil
			}
			sample := &domain.LiquiditySample{Mint: mint, TimestampMs: nowMs, LiquidityUSD: ov.LiquidityUSD}
			err = s.store.InsertBulk(ctx, []*domain.LiquiditySample{sample})
			if errors.Is(err, storage.ErrDuplicateKey) {
				return nil
			}
			record(err)
			return nil
		})
	}
	_ = g.Wait()

	return written, firstErr
}

func (s *LiquiditySampler) live(nowMs int64) []string {
	cutoff := nowMs - s.opts.TrackFor.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pending)
	mints := make([]string, 0, len(s.tracked))
	for m, at := range s.tracked {
		if at < cutoff {
			delete(s.tracked, m)
			continue
		}
		mints = append(mints, m)
	}
	return mints
}
