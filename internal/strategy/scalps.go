package strategy

import (
	"context"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/indicator"
)

// Scalps sub-signal weights.
const (
	scalpsGreenWeight   = 30
	scalpsInflowWeight  = 25
	scalpsRatioWeight   = 20
	scalpsNewPoolWeight = 15
	scalpsEMAWeight     = 10

	scalpsLookback    = 15 * time.Minute
	scalpsRatioWindow = 5
)

// Scalps trades fresh pools on short-term 1m momentum.
type Scalps struct {
	cfg      SleeveConfig
	minRatio float64
}

var _ SleeveStrategy = (*Scalps)(nil)

func (s *Scalps) Sleeve() domain.Sleeve { return domain.SleeveScalps }

func (s *Scalps) ScoreEntry(ctx context.Context, in *EntryInput) (Score, error) {
	candles, err := in.MD.Candles(ctx, in.Candidate.Mint, domain.Timeframe1m, in.NowMs-scalpsLookback.Milliseconds(), in.NowMs)
	if err != nil {
		return Score{}, err
	}
	return s.score(in.Candidate, candles), nil
}

func (s *Scalps) score(c domain.Candidate, candles []domain.Candle) Score {
	sc := Score{Features: map[string]any{}}

	if indicator.AllGreen(candles, 3) {
		sc.add("three_green", scalpsGreenWeight)
	}

	if n := len(candles); n >= 2 {
		last := indicator.NetInflow(candles, 1)
		prev := indicator.NetInflow(candles[:n-1], 1)
		sc.Features["net_inflow_1m"] = last
		if last > 0 && last > prev {
			sc.add("rising_inflow", scalpsInflowWeight)
		}
	}

	ratio := indicator.BuyerSellerRatio(candles, scalpsRatioWindow)
	sc.Features["buy_sell_ratio"] = ratio
	if ratio >= s.minRatio && ratio > 0 {
		sc.add("buy_sell_ratio", scalpsRatioWeight)
	}

	if c.Source == domain.SourceNewPool {
		sc.add("new_pool", scalpsNewPoolWeight)
	}

	closes := indicator.Closes(candles)
	short, long := indicator.EMA(closes, s.cfg.EMAShort), indicator.EMA(closes, s.cfg.EMALong)
	if short > 0 && long > 0 && short > long {
		sc.add("ema_cross", scalpsEMAWeight)
	}
	return sc
}

// ExitRule applies the sleeve stop-loss and the stall exit.
func (s *Scalps) ExitRule(in *ExitInput) (ExitAction, bool) {
	if a, ok := stopLoss(in, s.cfg.StopLossPct); ok {
		return a, true
	}
	held := time.Duration(in.NowMs-in.Position.OpenedAt) * time.Millisecond
	if s.cfg.StallAfter > 0 && held > s.cfg.StallAfter && in.PnLPct < s.cfg.StallFloorPct {
		return ExitAction{
			Signal:     domain.SignalExit,
			Size:       in.Position.Size,
			Confidence: 70,
			Reason:     fmt.Sprintf("stalled: held %s with pnl %.1f%%", held.Round(time.Second), in.PnLPct),
		}, true
	}
	return ExitAction{}, false
}

func (s *Scalps) LateExitRule(*ExitInput) (ExitAction, bool) {
	return ExitAction{}, false
}

// stopLoss fully exits when pnl is at or below -stopPct.
func stopLoss(in *ExitInput, stopPct float64) (ExitAction, bool) {
	if stopPct <= 0 || in.PnLPct > -stopPct {
		return ExitAction{}, false
	}
	return ExitAction{
		Signal:     domain.SignalExit,
		Size:       in.Position.Size,
		Confidence: 90,
		Reason:     fmt.Sprintf("stop loss: pnl %.1f%% <= -%.1f%%", in.PnLPct, stopPct),
	}, true
}

func takeProfitReason(level int, pct float64) string {
	return fmt.Sprintf("take profit level %d at +%.0f%%", level, pct)
}
