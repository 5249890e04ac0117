package indicator

import "solana-signal-engine/internal/domain"

// NetInflow returns buy volume minus sell volume over the trailing window candles.
func NetInflow(candles []domain.Candle, window int) float64 {
	buy, sell := splitVolume(candles, window)
	return finite(buy - sell)
}

// BuyerSellerRatio returns buy volume / sell volume over the trailing window candles.
// Returns 0 when sell volume is 0.
func BuyerSellerRatio(candles []domain.Candle, window int) float64 {
	buy, sell := splitVolume(candles, window)
	if sell <= 0 {
		return 0
	}
	return finite(buy / sell)
}

func splitVolume(candles []domain.Candle, window int) (buy, sell float64) {
	if window <= 0 || len(candles) == 0 {
		return 0, 0
	}
	if window > len(candles) {
		window = len(candles)
	}
	for _, c := range candles[len(candles)-window:] {
		buy += c.BuyVolume
		sell += c.SellVolume
	}
	return buy, sell
}

// CalculateNetInflow returns buy minus sell notional for trades at or after sinceMs.
func CalculateNetInflow(trades []domain.Trade, sinceMs int64) float64 {
	buy, sell := splitTrades(trades, sinceMs, 0)
	return finite(buy - sell)
}

// CalculateBuyerSellerRatio returns buy/sell notional for trades at or after sinceMs.
// Returns 0 when sell volume is 0 or no trades exist.
func CalculateBuyerSellerRatio(trades []domain.Trade, sinceMs int64) float64 {
	buy, sell := splitTrades(trades, sinceMs, 0)
	if sell <= 0 {
		return 0
	}
	return finite(buy / sell)
}

// NetInflowBetween returns buy minus sell notional for trades in [fromMs, toMs).
func NetInflowBetween(trades []domain.Trade, fromMs, toMs int64) float64 {
	buy, sell := splitTrades(trades, fromMs, toMs)
	return finite(buy - sell)
}

// UniqueBuyers counts distinct buying wallets for trades in [fromMs, toMs).
// toMs <= 0 means unbounded.
func UniqueBuyers(trades []domain.Trade, fromMs, toMs int64) int {
	seen := make(map[string]struct{})
	for _, t := range trades {
		if t.Side != domain.TradeSideBuy || t.Wallet == "" || !inRange(t.Timestamp, fromMs, toMs) {
			continue
		}
		seen[t.Wallet] = struct{}{}
	}
	return len(seen)
}

func splitTrades(trades []domain.Trade, fromMs, toMs int64) (buy, sell float64) {
	for _, t := range trades {
		if !inRange(t.Timestamp, fromMs, toMs) || t.VolumeUSD <= 0 {
			continue
		}
		switch t.Side {
		case domain.TradeSideBuy:
			buy += t.VolumeUSD
		case domain.TradeSideSell:
			sell += t.VolumeUSD
		}
	}
	return buy, sell
}

func inRange(ts, fromMs, toMs int64) bool {
	if ts < fromMs {
		return false
	}
	return toMs <= 0 || ts < toMs
}
