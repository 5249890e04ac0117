// Package indicator provides stateless technical indicators over ordered
// price and volume series. Every function tolerates short or malformed input
// and returns a neutral sentinel instead of failing.
package indicator

import "math"

// SMA returns the simple average of the last period values.
// Returns 0 if fewer than period values exist.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return finite(sum / float64(period))
}

// EMA returns the exponential moving average of values.
// The seed is the simple average of the first period samples; smoothing
// then runs forward over the remaining samples with k = 2/(period+1).
// Returns 0 if fewer than period values exist.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}

	ema := 0.0
	for _, v := range values[:period] {
		ema += v
	}
	ema /= float64(period)

	k := 2.0 / float64(period+1)
	for _, v := range values[period:] {
		ema = (v-ema)*k + ema
	}
	return finite(ema)
}

// finite maps NaN and ±Inf to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
