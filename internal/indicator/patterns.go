package indicator

import "solana-signal-engine/internal/domain"

// Closes extracts close prices in order.
func Closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts total volumes in order.
func Volumes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// IsVolumeIncreasing reports whether the last n candle volumes are strictly increasing.
func IsVolumeIncreasing(candles []domain.Candle, n int) bool {
	if n < 2 || len(candles) < n {
		return false
	}
	tail := candles[len(candles)-n:]
	for i := 1; i < len(tail); i++ {
		if tail[i].Volume <= tail[i-1].Volume {
			return false
		}
	}
	return true
}

// AllGreen reports whether each of the last n candles closed above its open.
func AllGreen(candles []domain.Candle, n int) bool {
	if n <= 0 || len(candles) < n {
		return false
	}
	for _, c := range candles[len(candles)-n:] {
		if !c.IsGreen() {
			return false
		}
	}
	return true
}

// HigherLows splits the trailing segments*segLen candles into equal segments
// and reports whether each segment's lowest low is strictly above the previous one.
func HigherLows(candles []domain.Candle, segments, segLen int) bool {
	if segments < 2 || segLen <= 0 || len(candles) < segments*segLen {
		return false
	}
	tail := candles[len(candles)-segments*segLen:]
	prev := 0.0
	for s := 0; s < segments; s++ {
		low := tail[s*segLen].Low
		for _, c := range tail[s*segLen : (s+1)*segLen] {
			if c.Low < low {
				low = c.Low
			}
		}
		if s > 0 && low <= prev {
			return false
		}
		prev = low
	}
	return true
}
