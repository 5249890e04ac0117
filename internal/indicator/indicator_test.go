package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"solana-signal-engine/internal/domain"
)

func candle(open, high, low, close, volume, buy, sell float64) domain.Candle {
	return domain.Candle{Open: open, High: high, Low: low, Close: close, Volume: volume, BuyVolume: buy, SellVolume: sell}
}

func TestSMA(t *testing.T) {
	assert.Equal(t, 0.0, SMA([]float64{1, 2}, 3))
	assert.Equal(t, 0.0, SMA([]float64{1, 2}, 0))
	assert.InDelta(t, 3.0, SMA([]float64{1, 2, 3, 4}, 3), 1e-9)
}

func TestEMA(t *testing.T) {
	if got := EMA([]float64{1, 2}, 3); got != 0 {
		t.Errorf("expected 0 for insufficient data, got %f", got)
	}

	// Seed = 2, k = 0.5: 2 -> (4-2)*0.5+2 = 3 -> (6-3)*0.5+3 = 4.5
	got := EMA([]float64{1, 2, 3, 4, 6}, 3)
	assert.InDelta(t, 4.5, got, 1e-9)

	// Exactly period values equals the SMA seed
	assert.InDelta(t, 2.0, EMA([]float64{1, 2, 3}, 3), 1e-9)
}

func TestRSI_InsufficientData(t *testing.T) {
	values := make([]float64, 14) // needs period+1
	for i := range values {
		values[i] = float64(i)
	}
	if got := RSI(values, 14); got != 50 {
		t.Errorf("expected neutral 50, got %f", got)
	}
	if got := RSI(nil, 0); got != 50 {
		t.Errorf("expected neutral 50 for nil, got %f", got)
	}
}

func TestRSI_NoLosses(t *testing.T) {
	values := []float64{1, 1, 2, 2, 3, 4, 4, 5, 6, 7, 7, 8, 9, 10, 10, 11}
	if got := RSI(values, 14); got != 100 {
		t.Errorf("expected exactly 100 on non-decreasing series, got %f", got)
	}
}

func TestRSI_Bounds(t *testing.T) {
	values := []float64{10, 11, 10.5, 12, 11, 13, 12.5, 12, 11, 11.5, 12, 10, 9, 9.5, 10, 11, 10.2}
	got := RSI(values, 14)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 100.0)

	falling := []float64{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	assert.InDelta(t, 0.0, RSI(falling, 14), 1e-9)
}

func TestRSI_DefaultPeriod(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	assert.Equal(t, RSI(values, DefaultRSIPeriod), RSI(values, 0))
}

func TestATR(t *testing.T) {
	candles := []domain.Candle{
		candle(10, 11, 9, 10, 0, 0, 0),
		candle(10, 12, 10, 11, 0, 0, 0), // TR = max(2, 2, 0) = 2
		candle(11, 11, 8, 9, 0, 0, 0),   // TR = max(3, 0, 3) = 3
	}
	assert.InDelta(t, 2.5, ATR(candles, 2), 1e-9)
	assert.Equal(t, 0.0, ATR(candles, 3))
}

func TestVWAP(t *testing.T) {
	candles := []domain.Candle{
		candle(0, 0, 0, 100, 1, 0, 0),
		candle(0, 0, 0, 10, 1, 0, 0),
		candle(0, 0, 0, 20, 3, 0, 0),
	}
	// (10*1 + 20*3) / 4 = 17.5
	assert.InDelta(t, 17.5, VWAP(candles, 2), 1e-9)

	zeroVol := []domain.Candle{candle(0, 0, 0, 5, 0, 0, 0)}
	assert.Equal(t, 0.0, VWAP(zeroVol, 5))
}

func TestCandleFlow(t *testing.T) {
	candles := []domain.Candle{
		candle(0, 0, 0, 0, 0, 100, 0),
		candle(0, 0, 0, 0, 0, 30, 10),
		candle(0, 0, 0, 0, 0, 20, 10),
	}
	assert.InDelta(t, 30.0, NetInflow(candles, 2), 1e-9)
	assert.InDelta(t, 2.5, BuyerSellerRatio(candles, 2), 1e-9)
	assert.Equal(t, 0.0, BuyerSellerRatio(candles[:1], 1))
}

func TestCalculateBuyerSellerRatio(t *testing.T) {
	if got := CalculateBuyerSellerRatio(nil, 0); got != 0 {
		t.Errorf("expected 0 with no trades, got %f", got)
	}

	buysOnly := []domain.Trade{
		{Side: domain.TradeSideBuy, VolumeUSD: 100, Wallet: "a", Timestamp: 1000},
	}
	if got := CalculateBuyerSellerRatio(buysOnly, 0); got != 0 {
		t.Errorf("expected 0 with no sells, got %f", got)
	}

	trades := []domain.Trade{
		{Side: domain.TradeSideSell, VolumeUSD: 500, Wallet: "old", Timestamp: 500},
		{Side: domain.TradeSideBuy, VolumeUSD: 300, Wallet: "a", Timestamp: 1000},
		{Side: domain.TradeSideSell, VolumeUSD: 100, Wallet: "b", Timestamp: 1500},
	}
	assert.InDelta(t, 3.0, CalculateBuyerSellerRatio(trades, 1000), 1e-9)
	assert.InDelta(t, 200.0, CalculateNetInflow(trades, 1000), 1e-9)
	assert.InDelta(t, -500.0, NetInflowBetween(trades, 0, 1000), 1e-9)
}

func TestUniqueBuyers(t *testing.T) {
	trades := []domain.Trade{
		{Side: domain.TradeSideBuy, Wallet: "a", Timestamp: 100},
		{Side: domain.TradeSideBuy, Wallet: "a", Timestamp: 200},
		{Side: domain.TradeSideBuy, Wallet: "b", Timestamp: 300},
		{Side: domain.TradeSideSell, Wallet: "c", Timestamp: 300},
		{Side: domain.TradeSideBuy, Wallet: "d", Timestamp: 900},
	}
	assert.Equal(t, 2, UniqueBuyers(trades, 0, 500))
	assert.Equal(t, 3, UniqueBuyers(trades, 0, 0))
}

func TestMomentum(t *testing.T) {
	assert.Equal(t, 0.0, Momentum([]float64{1, 2}, 2))
	assert.Equal(t, 0.0, Momentum([]float64{0, 1, 2}, 2))
	assert.InDelta(t, 50.0, Momentum([]float64{2, 5, 3}, 2), 1e-9)
}

func TestBollinger(t *testing.T) {
	b := Bollinger([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 2)
	assert.InDelta(t, 5.0, b.Middle, 1e-9)
	assert.InDelta(t, 2.0, b.StdDev, 1e-9)
	assert.InDelta(t, 9.0, b.Upper, 1e-9)
	assert.InDelta(t, 1.0, b.Lower, 1e-9)
	assert.InDelta(t, 160.0, b.Width(), 1e-9)

	assert.Equal(t, Bands{}, Bollinger([]float64{1}, 2, 2))
}

func TestVolatility(t *testing.T) {
	flat := []float64{10, 10, 10, 10}
	assert.Equal(t, 0.0, Volatility(flat, 3))

	// Returns +10%, -10%: mean 0, population stddev 10%
	got := Volatility([]float64{100, 110, 99}, 2)
	assert.InDelta(t, 10.0, got, 1e-9)

	assert.Equal(t, 0.0, Volatility([]float64{1, 2}, 2))
	assert.False(t, math.IsNaN(Volatility([]float64{0, 0, 0}, 2)))
}

func TestPatterns(t *testing.T) {
	candles := []domain.Candle{
		candle(10, 11, 9, 9, 100, 0, 0),
		candle(9, 11, 8, 10, 200, 0, 0),
		candle(10, 12, 9.5, 11, 300, 0, 0),
		candle(11, 13, 10, 12, 400, 0, 0),
	}

	assert.True(t, AllGreen(candles, 3))
	assert.False(t, AllGreen(candles, 4))
	assert.False(t, AllGreen(candles, 5))

	assert.True(t, IsVolumeIncreasing(candles, 4))
	assert.False(t, IsVolumeIncreasing(candles, 1))

	// Segments [8,9] lows -> 8, [9.5,10] -> 9.5
	assert.True(t, HigherLows(candles, 2, 2))
	assert.False(t, HigherLows(candles, 3, 2))

	assert.Equal(t, []float64{9, 10, 11, 12}, Closes(candles))
	assert.Equal(t, []float64{100, 200, 300, 400}, Volumes(candles))
}
