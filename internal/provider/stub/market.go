// Package stub provides deterministic in-memory providers for tests and dry runs.
package stub

import (
	"context"
	"sort"
	"sync"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/provider"
)

// MarketData implements provider.MarketData from in-memory maps.
// Set Err to make every call fail with it.
type MarketData struct {
	mu sync.RWMutex

	Overviews map[string]*domain.TokenOverview
	Series    map[string]map[domain.Timeframe][]domain.Candle
	TradeLog  map[string][]domain.Trade
	HolderMap map[string][]domain.Holder
	Liquidity map[string][]domain.LiquiditySample
	Trend     []domain.TrendingToken
	Err       error

	calls map[string]int
}

var _ provider.MarketData = (*MarketData)(nil)

// NewMarketData creates an empty stub.
func NewMarketData() *MarketData {
	return &MarketData{
		Overviews: make(map[string]*domain.TokenOverview),
		Series:    make(map[string]map[domain.Timeframe][]domain.Candle),
		TradeLog:  make(map[string][]domain.Trade),
		HolderMap: make(map[string][]domain.Holder),
		Liquidity: make(map[string][]domain.LiquiditySample),
		calls:     make(map[string]int),
	}
}

// SetOverview stores the overview for its mint.
func (m *MarketData) SetOverview(ov domain.TokenOverview) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := ov
	m.Overviews[ov.Mint] = &cp
}

// SetCandles stores candles for mint and timeframe.
func (m *MarketData) SetCandles(mint string, tf domain.Timeframe, candles []domain.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Series[mint] == nil {
		m.Series[mint] = make(map[domain.Timeframe][]domain.Candle)
	}
	m.Series[mint][tf] = append([]domain.Candle(nil), candles...)
}

// SetTrades stores trades for mint.
func (m *MarketData) SetTrades(mint string, trades []domain.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TradeLog[mint] = append([]domain.Trade(nil), trades...)
}

// SetHolders stores holders for mint.
func (m *MarketData) SetHolders(mint string, holders []domain.Holder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HolderMap[mint] = append([]domain.Holder(nil), holders...)
}

// SetLiquidity stores liquidity samples for mint.
func (m *MarketData) SetLiquidity(mint string, samples []domain.LiquiditySample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Liquidity[mint] = append([]domain.LiquiditySample(nil), samples...)
}

// Calls returns how many times method was invoked.
func (m *MarketData) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

func (m *MarketData) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.Err
}

// TokenOverview returns the stored overview or nil.
func (m *MarketData) TokenOverview(_ context.Context, mint string) (*domain.TokenOverview, error) {
	if err := m.record("TokenOverview"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ov, ok := m.Overviews[mint]
	if !ok {
		return nil, nil
	}
	cp := *ov
	return &cp, nil
}

// Candles returns stored candles with open time in [fromMs, toMs).
func (m *MarketData) Candles(_ context.Context, mint string, tf domain.Timeframe, fromMs, toMs int64) ([]domain.Candle, error) {
	if err := m.record("Candles"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Candle
	for _, c := range m.Series[mint][tf] {
		if c.OpenTime >= fromMs && c.OpenTime < toMs {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

// Trades returns stored trades at or after sinceMs.
func (m *MarketData) Trades(_ context.Context, mint string, sinceMs int64) ([]domain.Trade, error) {
	if err := m.record("Trades"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Trade
	for _, t := range m.TradeLog[mint] {
		if t.Timestamp >= sinceMs {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// Holders returns up to limit stored holders ordered by percent descending.
func (m *MarketData) Holders(_ context.Context, mint string, limit int) ([]domain.Holder, error) {
	if err := m.record("Holders"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]domain.Holder(nil), m.HolderMap[mint]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Percent > out[j].Percent })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LiquidityHistory returns stored samples in [fromMs, toMs].
func (m *MarketData) LiquidityHistory(_ context.Context, mint string, fromMs, toMs int64) ([]domain.LiquiditySample, error) {
	if err := m.record("LiquidityHistory"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.LiquiditySample
	for _, s := range m.Liquidity[mint] {
		if s.TimestampMs >= fromMs && s.TimestampMs <= toMs {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	return out, nil
}

// Trending returns up to limit stored trending tokens.
func (m *MarketData) Trending(_ context.Context, limit int) ([]domain.TrendingToken, error) {
	if err := m.record("Trending"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]domain.TrendingToken(nil), m.Trend...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetTrending replaces the trending list.
func (m *MarketData) SetTrending(tokens []domain.TrendingToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trend = append([]domain.TrendingToken(nil), tokens...)
}
