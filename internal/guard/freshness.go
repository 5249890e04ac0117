package guard

import (
	"context"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// Freshness fails when the newest market data is older than Budget.
// Age is measured from the later of the latest trade and the latest
// closed 1m candle. No data in either series is a failure.
type Freshness struct {
	MD     provider.MarketData
	Budget time.Duration
}

func (c *Freshness) Name() string   { return domain.CheckFreshness }
func (c *Freshness) Blocking() bool { return true }

func (c *Freshness) Run(ctx context.Context, s *Subject) domain.GuardCheckResult {
	// look back far enough to tell "stale" from "absent"
	window := 2*c.Budget.Milliseconds() + domain.Timeframe1m.Milliseconds()
	from := s.NowMs - window

	trades, err := c.MD.Trades(ctx, s.Mint, from)
	if err != nil {
		return dataFailure(c.Name(), err)
	}
	candles, err := c.MD.Candles(ctx, s.Mint, domain.Timeframe1m, from, s.NowMs+1)
	if err != nil {
		return dataFailure(c.Name(), err)
	}

	latest := LatestSampleMs(trades, candles, s.NowMs)
	if latest == 0 {
		return fail(c.Name(), "no recent trades or candles", nil)
	}

	age := time.Duration(s.NowMs-latest) * time.Millisecond
	data := map[string]any{"age_ms": age.Milliseconds(), "budget_ms": c.Budget.Milliseconds()}
	if age > c.Budget {
		return fail(c.Name(), fmt.Sprintf("feed stale for %s", age.Round(time.Second)), data)
	}
	return pass(c.Name(), "feed fresh", data)
}

// LatestSampleMs returns the newest of the latest trade timestamp and the
// latest closed candle's close time, capped at nowMs. Returns 0 when both are empty.
func LatestSampleMs(trades []domain.Trade, candles []domain.Candle, nowMs int64) int64 {
	var latest int64
	for _, t := range trades {
		if t.Timestamp > latest {
			latest = t.Timestamp
		}
	}
	step := domain.Timeframe1m.Milliseconds()
	for _, c := range candles {
		closeAt := c.OpenTime + step
		if closeAt > nowMs {
			// still forming, only its open time is certain
			closeAt = c.OpenTime
		}
		if closeAt > latest {
			latest = closeAt
		}
	}
	if latest > nowMs {
		latest = nowMs
	}
	return latest
}
