package indicator

import "solana-signal-engine/internal/domain"

// VWAP returns the volume-weighted average close over the trailing window candles.
// Uses all candles when fewer than window exist; returns 0 if total volume is 0.
func VWAP(candles []domain.Candle, window int) float64 {
	if window <= 0 || len(candles) == 0 {
		return 0
	}
	if window > len(candles) {
		window = len(candles)
	}

	var pv, vol float64
	for _, c := range candles[len(candles)-window:] {
		pv += c.Close * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0
	}
	return finite(pv / vol)
}
