package strategy

import (
	"context"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/indicator"
)

const (
	swingLiquidityWeight = 20
	swingHigherLowWeight = 25
	swingMAWeight        = 20
	swingInflowWeight    = 25
	swingSqueezeWeight   = 10

	swingLookback = 6 * time.Hour
	swingMAPeriod = 20
)

// Swing holds liquid tokens with sustained inflow over hours.
// It scores on 15m candles.
type Swing struct {
	cfg          SleeveConfig
	minLiquidity float64
}

var _ SleeveStrategy = (*Swing)(nil)

func (s *Swing) Sleeve() domain.Sleeve { return domain.SleeveSwing }

func (s *Swing) ScoreEntry(ctx context.Context, in *EntryInput) (Score, error) {
	candles, err := in.MD.Candles(ctx, in.Candidate.Mint, domain.Timeframe15m, in.NowMs-swingLookback.Milliseconds(), in.NowMs)
	if err != nil {
		return Score{}, err
	}
	return s.score(in.Overview, candles), nil
}

func (s *Swing) score(ov domain.TokenOverview, candles []domain.Candle) Score {
	sc := Score{Features: map[string]any{}}

	if s.minLiquidity > 0 && ov.LiquidityUSD >= 2*s.minLiquidity {
		sc.add("deep_liquidity", swingLiquidityWeight)
	}

	if indicator.HigherLows(candles, 3, 4) {
		sc.add("higher_lows", swingHigherLowWeight)
	}

	closes := indicator.Closes(candles)
	ma := indicator.SMA(closes, swingMAPeriod)
	sc.Features["ma20"] = ma
	if ma > 0 && ov.PriceUSD > ma {
		sc.add("above_ma20", swingMAWeight)
	}

	// 8 x 15m = 2h, 24 x 15m = 6h
	in2h, in6h := indicator.NetInflow(candles, 8), indicator.NetInflow(candles, 24)
	sc.Features["net_inflow_2h"], sc.Features["net_inflow_6h"] = in2h, in6h
	if in2h > 0 && in6h > 0 {
		sc.add("sustained_inflow", swingInflowWeight)
	}

	if len(closes) > swingMAPeriod {
		vol := indicator.Volatility(closes, swingMAPeriod)
		sc.Features["volatility_pct"] = vol
		if vol < s.cfg.SqueezeVolPct {
			sc.add("squeeze", swingSqueezeWeight)
		}
	}
	return sc
}

func (s *Swing) ExitRule(in *ExitInput) (ExitAction, bool) {
	return stopLoss(in, s.cfg.StopLossPct)
}

// LateExitRule de-risks a position that has been held past DecayAfter
// without reaching DecayFloorPct. It fires once, while the position is
// still at its initial size.
func (s *Swing) LateExitRule(in *ExitInput) (ExitAction, bool) {
	p := in.Position
	held := time.Duration(in.NowMs-p.OpenedAt) * time.Millisecond
	if s.cfg.DecayAfter <= 0 || held <= s.cfg.DecayAfter || in.PnLPct >= s.cfg.DecayFloorPct {
		return ExitAction{}, false
	}
	if s.cfg.DecayFraction >= 1 {
		return ExitAction{
			Signal:     domain.SignalExit,
			Size:       p.Size,
			Confidence: 60,
			Reason:     fmt.Sprintf("decay: held %s below +%.0f%%", held.Round(time.Minute), s.cfg.DecayFloorPct),
		}, true
	}
	if p.TPLevelsHit > 0 || p.Size < p.BaseSize() {
		return ExitAction{}, false
	}
	return ExitAction{
		Signal:     domain.SignalSell,
		Size:       p.Size * s.cfg.DecayFraction,
		Confidence: 60,
		Reason:     fmt.Sprintf("decay de-risk: held %s below +%.0f%%", held.Round(time.Minute), s.cfg.DecayFloorPct),
	}, true
}
