package indicator

import (
	"math"

	"solana-signal-engine/internal/domain"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(c domain.Candle, prevClose float64) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// ATR returns the average true range over the trailing period candles.
// Each true range needs the previous close, so period+1 candles are required;
// returns 0 otherwise.
func ATR(candles []domain.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += TrueRange(candles[i], candles[i-1].Close)
	}
	return finite(sum / float64(period))
}
