package guard

import (
	"context"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// LiquidityPull fails when pooled liquidity dropped more than MaxPullPct
// between the earliest and latest sample in the lookback window.
// Fewer than two samples is a warning.
type LiquidityPull struct {
	MD         provider.MarketData
	MaxPullPct float64
	Lookback   time.Duration
}

func (c *LiquidityPull) Name() string   { return domain.CheckLiquidityPull }
func (c *LiquidityPull) Blocking() bool { return true }

func (c *LiquidityPull) Run(ctx context.Context, s *Subject) domain.GuardCheckResult {
	samples, err := c.MD.LiquidityHistory(ctx, s.Mint, s.NowMs-c.Lookback.Milliseconds(), s.NowMs)
	if err != nil {
		return dataFailure(c.Name(), err)
	}
	if len(samples) < 2 {
		return warn(c.Name(), "insufficient liquidity history", map[string]any{"samples": len(samples)})
	}

	first, last := samples[0].LiquidityUSD, samples[len(samples)-1].LiquidityUSD
	if first <= 0 {
		return warn(c.Name(), "insufficient liquidity history", map[string]any{"samples": len(samples)})
	}
	changePct := (last - first) / first * 100
	data := map[string]any{"change_pct": changePct, "max_pull_pct": c.MaxPullPct, "samples": len(samples)}
	if -changePct > c.MaxPullPct {
		return fail(c.Name(), fmt.Sprintf("liquidity dropped %.1f%%", -changePct), data)
	}
	return pass(c.Name(), "liquidity stable", data)
}
