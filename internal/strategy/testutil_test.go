package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/guard"
	"solana-signal-engine/internal/provider/stub"
)

const (
	testMint = "TokenMint111"
	nowMs    = int64(1_700_000_000_000)
	minute   = int64(60_000)
)

func testConfig() Config {
	return Config{
		BankrollSOL:         10,
		SwingScoreThreshold: 100,
		MinLiquidityUSD:     10_000,
		MinBuySellRatio:     1.2,
		Sleeves: map[domain.Sleeve]SleeveConfig{
			domain.SleeveScalps: {
				AllocationPct:    30,
				PosSOLMin:        0.1,
				PosSOLMax:        0.5,
				MarketCap:        Band{MinUSD: 0, MaxUSD: 1_000_000},
				TakeProfitLadder: []float64{50, 100, 200},
				MaxConcurrent:    3,
				StopLossPct:      30,
				StallAfter:       20 * time.Minute,
				StallFloorPct:    5,
			},
			domain.SleeveMomentum: {
				AllocationPct:    40,
				PosSOLMin:        0.2,
				PosSOLMax:        1.0,
				MarketCap:        Band{MinUSD: 1_000_000, MaxUSD: 50_000_000},
				TakeProfitLadder: []float64{30, 60},
				MaxConcurrent:    2,
				StopLossPct:      25,
				TrailingPct:      15,
			},
			domain.SleeveSwing: {
				AllocationPct:    30,
				PosSOLMin:        0.5,
				PosSOLMax:        2.0,
				MarketCap:        Band{MinUSD: 5_000_000},
				TakeProfitLadder: []float64{20, 40, 80},
				MaxConcurrent:    2,
				StopLossPct:      20,
				DecayAfter:       48 * time.Hour,
				DecayFloorPct:    10,
				DecayFraction:    0.5,
			},
		},
		Risk: RiskLimits{
			DailyDrawdownPct:    10,
			MaxTokenExposurePct: 20,
			LossStreakCount:     3,
			LossStreakCooldown:  time.Hour,
		},
	}
}

// fakeGate returns a fixed verdict.
type fakeGate struct {
	accepted bool
	failed   []string
	warnings []string
	calls    int
}

func (g *fakeGate) RunAll(_ context.Context, mint string) *guard.Verdict {
	g.calls++
	v := &guard.Verdict{Mint: mint, Accepted: g.accepted, Failed: g.failed, Warnings: g.warnings}
	for _, name := range g.failed {
		v.Results = append(v.Results, domain.GuardCheckResult{Name: name, Outcome: domain.GuardFail})
	}
	for _, name := range g.warnings {
		v.Results = append(v.Results, domain.GuardCheckResult{Name: name, Outcome: domain.GuardWarning})
	}
	return v
}

type fixture struct {
	md     *stub.MarketData
	repo   *stub.PositionRepository
	gate   *fakeGate
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		md:   stub.NewMarketData(),
		repo: &stub.PositionRepository{Exposure: map[string]float64{}},
		gate: &fakeGate{accepted: true},
	}
	e, err := NewEngine(testConfig(), f.gate, f.md, f.repo, Options{
		Now: func() time.Time { return time.UnixMilli(nowMs) },
	})
	require.NoError(t, err)
	f.engine = e
	return f
}

// scalpsCandles are three green 1m candles with rising net inflow and a 1.5 buy/sell ratio.
func scalpsCandles() []domain.Candle {
	return []domain.Candle{
		{OpenTime: nowMs - 3*minute, Open: 1.00, High: 1.06, Low: 0.99, Close: 1.05, Volume: 500, BuyVolume: 300, SellVolume: 200},
		{OpenTime: nowMs - 2*minute, Open: 1.05, High: 1.11, Low: 1.04, Close: 1.10, Volume: 750, BuyVolume: 450, SellVolume: 300},
		{OpenTime: nowMs - 1*minute, Open: 1.10, High: 1.16, Low: 1.09, Close: 1.15, Volume: 1000, BuyVolume: 600, SellVolume: 400},
	}
}

// flatCandles are n flat 1m candles ending at now.
func flatCandles(n int, price, volume float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		out[i] = domain.Candle{
			OpenTime:   nowMs - int64(n-i)*minute,
			Open:       price,
			High:       price,
			Low:        price,
			Close:      price,
			Volume:     volume,
			BuyVolume:  volume / 2,
			SellVolume: volume / 2,
		}
	}
	return out
}
