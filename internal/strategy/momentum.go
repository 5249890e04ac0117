package strategy

import (
	"context"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/indicator"
)

const (
	momentumVolumeWeight = 25
	momentumVWAPWeight   = 20
	momentumEMAWeight    = 20
	momentumInflowWeight = 25
	momentumBuyersWeight = 10

	momentumLookback = 40 * time.Minute
	momentumVWAPBars = 30
)

// Momentum rides established tokens with expanding flow.
type Momentum struct {
	cfg SleeveConfig
}

var _ SleeveStrategy = (*Momentum)(nil)

func (m *Momentum) Sleeve() domain.Sleeve { return domain.SleeveMomentum }

func (m *Momentum) ScoreEntry(ctx context.Context, in *EntryInput) (Score, error) {
	mint := in.Candidate.Mint
	candles, err := in.MD.Candles(ctx, mint, domain.Timeframe1m, in.NowMs-momentumLookback.Milliseconds(), in.NowMs)
	if err != nil {
		return Score{}, err
	}
	trades, err := in.MD.Trades(ctx, mint, in.NowMs-(20*time.Minute).Milliseconds())
	if err != nil {
		return Score{}, err
	}
	return m.score(in.Overview.PriceUSD, candles, trades, in.NowMs), nil
}

func (m *Momentum) score(price float64, candles []domain.Candle, trades []domain.Trade, nowMs int64) Score {
	sc := Score{Features: map[string]any{}}

	if indicator.IsVolumeIncreasing(candles, 3) {
		sc.add("rising_volume", momentumVolumeWeight)
	}

	vwap := indicator.VWAP(candles, momentumVWAPBars)
	sc.Features["vwap_30m"] = vwap
	if vwap > 0 && price > vwap {
		sc.add("above_vwap", momentumVWAPWeight)
	}

	closes := indicator.Closes(candles)
	if len(closes) > 20 {
		ema9, ema20 := indicator.EMA(closes, 9), indicator.EMA(closes, 20)
		prev9 := indicator.EMA(closes[:len(closes)-1], 9)
		sc.Features["ema9"], sc.Features["ema20"] = ema9, ema20
		if ema9 > ema20 && ema9 > prev9 {
			sc.add("ema_trend", momentumEMAWeight)
		}
	}

	in10 := indicator.NetInflow(candles, 10)
	in20 := indicator.NetInflow(candles, 20)
	sc.Features["net_inflow_10m"], sc.Features["net_inflow_20m"] = in10, in20
	if len(candles) >= 20 && in10 > 0 && in10 > in20-in10 {
		sc.add("expanding_inflow", momentumInflowWeight)
	}

	tenMin := (10 * time.Minute).Milliseconds()
	recent := indicator.UniqueBuyers(trades, nowMs-tenMin, 0)
	earlier := indicator.UniqueBuyers(trades, nowMs-2*tenMin, nowMs-tenMin)
	sc.Features["unique_buyer_delta"] = recent - earlier
	if recent > earlier {
		sc.add("buyer_growth", momentumBuyersWeight)
	}
	return sc
}

// ExitRule applies the sleeve stop-loss and the trailing stop from the high.
// The trailing stop arms once the high-water mark is above entry.
func (m *Momentum) ExitRule(in *ExitInput) (ExitAction, bool) {
	if a, ok := stopLoss(in, m.cfg.StopLossPct); ok {
		return a, true
	}
	p := in.Position
	if m.cfg.TrailingPct <= 0 || p.HighWaterMark <= p.AvgEntryPrice || p.HighWaterMark <= 0 {
		return ExitAction{}, false
	}
	trail := p.HighWaterMark * (1 - m.cfg.TrailingPct/100)
	if in.Price > trail {
		return ExitAction{}, false
	}
	return ExitAction{
		Signal:     domain.SignalExit,
		Size:       p.Size,
		Confidence: 80,
		Reason:     fmt.Sprintf("trailing stop: price %.8g <= %.8g (%.0f%% off high)", in.Price, trail, m.cfg.TrailingPct),
	}, true
}

func (m *Momentum) LateExitRule(*ExitInput) (ExitAction, bool) {
	return ExitAction{}, false
}
