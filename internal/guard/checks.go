package guard

import (
	"context"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/indicator"
	"solana-signal-engine/internal/provider"
)

// DefaultChecks returns the standard checks in reporting order.
func DefaultChecks(md provider.MarketData, quotes provider.QuoteProvider, th Thresholds) []Check {
	th = th.withDefaults()
	return []Check{
		&LiquidityFloor{Min: th.MinLiquidityUSD},
		&HolderFloor{Min: th.MinHolders},
		&BuySellRatio{MD: md, Min: th.MinBuySellRatio, Lookback: th.RatioLookback},
		&Concentration{MD: md, MaxTop10Pct: th.MaxTop10Pct},
		&LiquidityPull{MD: md, MaxPullPct: th.MaxLiquidityPullPct, Lookback: th.PullLookback},
		&DecimalStandard{Min: th.MinDecimals, Max: th.MaxDecimals},
		&SellSimulation{Quotes: quotes, BaseMint: th.BaseMint, Amount: th.SellTestAmount, SlippageBps: th.SellSlippageBps},
		&Freshness{MD: md, Budget: th.FreshnessBudget},
	}
}

// LiquidityFloor fails when pooled liquidity is below Min USD.
type LiquidityFloor struct {
	Min float64
}

func (c *LiquidityFloor) Name() string   { return domain.CheckLiquidity }
func (c *LiquidityFloor) Blocking() bool { return true }

func (c *LiquidityFloor) Run(ctx context.Context, s *Subject) domain.GuardCheckResult {
	ov, err := s.Overview(ctx)
	if err != nil {
		return dataFailure(c.Name(), err)
	}
	data := map[string]any{"liquidity_usd": ov.LiquidityUSD, "min": c.Min}
	if ov.LiquidityUSD < c.Min {
		return fail(c.Name(), fmt.Sprintf("liquidity $%.0f below $%.0f", ov.LiquidityUSD, c.Min), data)
	}
	return pass(c.Name(), "liquidity ok", data)
}

// HolderFloor fails when the distinct holder count is below Min.
type HolderFloor struct {
	Min int
}

func (c *HolderFloor) Name() string   { return domain.CheckHolders }
func (c *HolderFloor) Blocking() bool { return true }

func (c *HolderFloor) Run(ctx context.Context, s *Subject) domain.GuardCheckResult {
	ov, err := s.Overview(ctx)
	if err != nil {
		return dataFailure(c.Name(), err)
	}
	data := map[string]any{"holders": ov.Holders, "min": c.Min}
	if ov.Holders < c.Min {
		return fail(c.Name(), fmt.Sprintf("%d holders below %d", ov.Holders, c.Min), data)
	}
	return pass(c.Name(), "holder count ok", data)
}

// DecimalStandard fails when token decimals are outside [Min, Max].
type DecimalStandard struct {
	Min, Max int
}

func (c *DecimalStandard) Name() string   { return domain.CheckDecimals }
func (c *DecimalStandard) Blocking() bool { return true }

func (c *DecimalStandard) Run(ctx context.Context, s *Subject) domain.GuardCheckResult {
	ov, err := s.Overview(ctx)
	if err != nil {
		return dataFailure(c.Name(), err)
	}
	data := map[string]any{"decimals": ov.Decimals, "min": c.Min, "max": c.Max}
	if ov.Decimals < c.Min || ov.Decimals > c.Max {
		return fail(c.Name(), fmt.Sprintf("decimals %d outside [%d,%d]", ov.Decimals, c.Min, c.Max), data)
	}
	return pass(c.Name(), "decimals ok", data)
}

// Concentration warns when the top 10 holders own more than MaxTop10Pct.
// It never fails, including on missing data.
type Concentration struct {
	MD          provider.MarketData
	MaxTop10Pct float64
}

func (c *Concentration) Name() string   { return domain.CheckConcentration }
func (c *Concentration) Blocking() bool { return false }

func (c *Concentration) Run(ctx context.Context, s *Subject) domain.GuardCheckResult {
	holders, err := c.MD.Holders(ctx, s.Mint, DefaultHolderLimit)
	if err != nil {
		return warn(c.Name(), fmt.Sprintf("holder data unavailable: %v", err), nil)
	}
	if len(holders) == 0 {
		return warn(c.Name(), "holder data unavailable", nil)
	}

	var top10 float64
	for i, h := range holders {
		if i == DefaultHolderLimit {
			break
		}
		top10 += h.Percent
	}
	data := map[string]any{"top10_pct": top10, "max": c.MaxTop10Pct}
	if top10 > c.MaxTop10Pct {
		return warn(c.Name(), fmt.Sprintf("top 10 holders own %.1f%%", top10), data)
	}
	return pass(c.Name(), "concentration ok", data)
}

// BuySellRatio fails when buy/sell volume over Lookback is below Min.
type BuySellRatio struct {
	MD       provider.MarketData
	Min      float64
	Lookback time.Duration
}

func (c *BuySellRatio) Name() string   { return domain.CheckBuySellRatio }
func (c *BuySellRatio) Blocking() bool { return true }

func (c *BuySellRatio) Run(ctx context.Context, s *Subject) domain.GuardCheckResult {
	since := s.NowMs - c.Lookback.Milliseconds()
	trades, err := c.MD.Trades(ctx, s.Mint, since)
	if err != nil {
		return dataFailure(c.Name(), err)
	}
	ratio := indicator.CalculateBuyerSellerRatio(trades, since)
	data := map[string]any{"ratio": ratio, "min": c.Min, "trades": len(trades)}
	if ratio < c.Min {
		return fail(c.Name(), fmt.Sprintf("buy/sell ratio %.2f below %.2f", ratio, c.Min), data)
	}
	return pass(c.Name(), "buy/sell ratio ok", data)
}
