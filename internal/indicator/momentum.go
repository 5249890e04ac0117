package indicator

// Momentum returns the percent change between the latest value and the value
// period steps back. Returns 0 if history is insufficient or the past value is <= 0.
func Momentum(values []float64, period int) float64 {
	if period <= 0 || len(values) <= period {
		return 0
	}
	past := values[len(values)-1-period]
	if past <= 0 {
		return 0
	}
	return finite((values[len(values)-1] - past) / past * 100)
}
