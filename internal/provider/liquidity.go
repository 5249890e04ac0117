package provider

import (
	"context"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

// historyOverride serves LiquidityHistory from a local timeseries store.
type historyOverride struct {
	MarketData
	store storage.LiquidityTimeseriesStore
}

// WithLiquidityHistory wraps md so LiquidityHistory reads from store.
// The sampler in the ingestion package fills the store from the moment a
// candidate is registered.
// Other calls pass through to md.
func WithLiquidityHistory(md MarketData, store storage.LiquidityTimeseriesStore) MarketData {
	if store == nil {
		return md
	}
	return &historyOverride{MarketData: md, store: store}
}

func (h *historyOverride) LiquidityHistory(ctx context.Context, mint string, fromMs, toMs int64) ([]domain.LiquiditySample, error) {
	samples, err := h.store.GetByTimeRange(ctx, mint, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	if len(samples) > 0 {
		out := make([]domain.LiquiditySample, len(samples))
		for i, p := range samples {
			out[i] = *p
		}
		return out, nil
	}
	// fall back to the provider's own history, if any
	return h.MarketData.LiquidityHistory(ctx, mint, fromMs, toMs)
}
