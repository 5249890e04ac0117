package storage

import (
	"context"

	"solana-signal-engine/internal/domain"
)

// LiquidityTimeseriesStore provides access to liquidity_timeseries storage.
type LiquidityTimeseriesStore interface {
	// InsertBulk adds multiple samples. Fails entire batch on duplicate (mint, timestamp_ms).
	InsertBulk(ctx context.Context, samples []*domain.LiquiditySample) error

	// GetByMint retrieves all samples for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.LiquiditySample, error)

	// GetByTimeRange retrieves samples for a mint within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.LiquiditySample, error)
}

// SignalStore provides access to the append-only signal journal.
type SignalStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, r *domain.SignalRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, signalID string) (*domain.SignalRecord, error)

	// GetByMint retrieves all records for a mint, ordered by evaluated_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.SignalRecord, error)

	// GetByTimeRange retrieves records evaluated within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SignalRecord, error)
}

// PositionStore provides access to positions and closed trades.
// The decision core only reads; writes belong to the execution collaborator.
type PositionStore interface {
	// Open adds a new open position. Returns ErrDuplicateKey if the ID exists.
	Open(ctx context.Context, p *domain.Position) error

	// Update replaces the mutable fields of an open position
	// (size, high-water mark, take-profit rungs). Returns ErrNotFound if not open.
	Update(ctx context.Context, p *domain.Position) error

	// Close marks the position closed and records its realized outcome.
	// Returns ErrNotFound if the position is not open.
	Close(ctx context.Context, t *domain.ClosedTrade) error

	// OpenPositions returns open positions ordered by opened_at ASC,
	// filtered by sleeve unless sleeve is empty.
	OpenPositions(ctx context.Context, sleeve domain.Sleeve) ([]domain.Position, error)

	// TokenExposure returns the summed cost basis (SOL) of open positions in mint.
	TokenExposure(ctx context.Context, mint string) (float64, error)

	// DailyRealizedPnL returns realized pnl (SOL) of trades closed at or after dayStartMs.
	DailyRealizedPnL(ctx context.Context, dayStartMs int64) (float64, error)

	// LossStreak returns the number of consecutive most recent losing closed trades
	// and the close time of the latest of them (0 if none).
	LossStreak(ctx context.Context) (count int, lastLossAt int64, err error)
}
