package indicator

import "math"

// Bands holds Bollinger band levels.
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
	StdDev float64
}

// Width returns (upper-lower)/middle as a percentage, 0 if middle is 0.
func (b Bands) Width() float64 {
	if b.Middle == 0 {
		return 0
	}
	return finite((b.Upper - b.Lower) / b.Middle * 100)
}

// Bollinger returns the sample mean and population standard deviation bands
// over the trailing period values. Returns zero Bands if history is insufficient.
func Bollinger(values []float64, period int, mult float64) Bands {
	if period <= 0 || len(values) < period {
		return Bands{}
	}
	window := values[len(values)-period:]
	mean, std := meanStd(window)
	return Bands{
		Middle: mean,
		Upper:  finite(mean + mult*std),
		Lower:  finite(mean - mult*std),
		StdDev: std,
	}
}

// Volatility returns the standard deviation of simple period-over-period
// returns across the trailing period returns, as a percentage.
// Returns 0 if fewer than period+1 values exist.
func Volatility(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}
	window := values[len(values)-period-1:]
	returns := make([]float64, 0, period)
	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 {
			continue
		}
		returns = append(returns, (window[i]-window[i-1])/window[i-1])
	}
	if len(returns) == 0 {
		return 0
	}
	_, std := meanStd(returns)
	return finite(std * 100)
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return finite(mean), finite(math.Sqrt(variance))
}
