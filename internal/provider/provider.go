// Package provider defines the external market-data, quote and position
// collaborators consumed by the decision core.
//
// Implementations return empty results (nil slices, nil overview) for "no
// data" and never an error for it. Errors are reserved for failures that
// survived the client's own retries and wrap domain.ErrTransientProvider.
package provider

import (
	"context"

	"solana-signal-engine/internal/domain"
)

// MarketData provides token snapshots and series.
type MarketData interface {
	// TokenOverview returns nil when the provider has no data for mint.
	TokenOverview(ctx context.Context, mint string) (*domain.TokenOverview, error)

	// Candles returns OHLCV candles with open time in [fromMs, toMs), ordered by open time.
	Candles(ctx context.Context, mint string, tf domain.Timeframe, fromMs, toMs int64) ([]domain.Candle, error)

	// Trades returns trades at or after sinceMs, ordered by timestamp.
	Trades(ctx context.Context, mint string, sinceMs int64) ([]domain.Trade, error)

	// Holders returns up to limit holders ordered by percent descending.
	Holders(ctx context.Context, mint string, limit int) ([]domain.Holder, error)

	// LiquidityHistory returns pooled-liquidity samples in [fromMs, toMs], ordered by time.
	LiquidityHistory(ctx context.Context, mint string, fromMs, toMs int64) ([]domain.LiquiditySample, error)

	// Trending returns up to limit trending tokens ordered by rank.
	Trending(ctx context.Context, limit int) ([]domain.TrendingToken, error)
}

// QuoteProvider returns swap quotes.
type QuoteProvider interface {
	// Quote returns nil when no route exists for the pair and amount.
	Quote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error)
}

// PositionRepository is the read-only view of the execution collaborator's books.
type PositionRepository interface {
	// OpenPositions returns open positions, filtered by sleeve unless sleeve is empty.
	OpenPositions(ctx context.Context, sleeve domain.Sleeve) ([]domain.Position, error)

	// TokenExposure returns the open cost basis for mint, in SOL.
	TokenExposure(ctx context.Context, mint string) (float64, error)

	// DailyRealizedPnL returns realized pnl (SOL) of trades closed at or after dayStartMs.
	DailyRealizedPnL(ctx context.Context, dayStartMs int64) (float64, error)

	// LossStreak returns the number of consecutive most recent losing trades
	// and the close time of the latest loss (0 if none).
	LossStreak(ctx context.Context) (count int, lastLossAt int64, err error)
}
