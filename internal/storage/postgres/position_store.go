package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

const (
	statusOpen   = "OPEN"
	statusClosed = "CLOSED"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Open adds a new open position. Returns ErrDuplicateKey if the ID exists.
func (s *PositionStore) Open(ctx context.Context, p *domain.Position) (err error) {
	if p == nil || p.ID == "" || p.Mint == "" || !p.Sleeve.IsValid() {
		return storage.ErrInvalidInput
	}
	defer observe("position_open", time.Now(), &err)

	query := `
		INSERT INTO positions (
			id, mint, side, size, initial_size, avg_entry_price, cost_basis_sol,
			high_water_mark, opened_at, sleeve, tp_levels_hit, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.Mint, string(p.Side), p.Size, p.InitialSize, p.AvgEntryPrice, p.CostBasisSOL,
		p.HighWaterMark, p.OpenedAt, string(p.Sleeve), p.TPLevelsHit, statusOpen,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update replaces size, high-water mark and take-profit rungs of an open position.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) (err error) {
	if p == nil {
		return storage.ErrInvalidInput
	}
	defer observe("position_update", time.Now(), &err)

	query := `
		UPDATE positions
		SET size = $2, high_water_mark = $3, tp_levels_hit = $4
		WHERE id = $1 AND status = $5
	`

	tag, err := s.pool.Exec(ctx, query, p.ID, p.Size, p.HighWaterMark, p.TPLevelsHit, statusOpen)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Close marks the position closed and records its realized outcome.
func (s *PositionStore) Close(ctx context.Context, t *domain.ClosedTrade) (err error) {
	if t == nil {
		return storage.ErrInvalidInput
	}
	defer observe("position_close", time.Now(), &err)

	query := `
		UPDATE positions
		SET status = $2, closed_at = $3, realized_pnl_sol = $4
		WHERE id = $1 AND status = $5
	`

	tag, err := s.pool.Exec(ctx, query, t.PositionID, statusClosed, t.ClosedAt, t.RealizedPnLSOL, statusOpen)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// OpenPositions returns open positions ordered by opened_at ASC.
func (s *PositionStore) OpenPositions(ctx context.Context, sleeve domain.Sleeve) (result []domain.Position, err error) {
	defer observe("open_positions", time.Now(), &err)

	query := `
		SELECT id, mint, side, size, initial_size, avg_entry_price, cost_basis_sol,
			high_water_mark, opened_at, sleeve, tp_levels_hit
		FROM positions
		WHERE status = $1 AND ($2 = '' OR sleeve = $2)
		ORDER BY opened_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, statusOpen, string(sleeve))
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// TokenExposure returns the summed cost basis (SOL) of open positions in mint.
func (s *PositionStore) TokenExposure(ctx context.Context, mint string) (total float64, err error) {
	defer observe("token_exposure", time.Now(), &err)

	query := `
		SELECT COALESCE(SUM(cost_basis_sol), 0)
		FROM positions
		WHERE status = $1 AND mint = $2
	`

	if err = s.pool.QueryRow(ctx, query, statusOpen, mint).Scan(&total); err != nil {
		return 0, fmt.Errorf("query token exposure: %w", err)
	}
	return total, nil
}

// DailyRealizedPnL returns realized pnl (SOL) of trades closed at or after dayStartMs.
func (s *PositionStore) DailyRealizedPnL(ctx context.Context, dayStartMs int64) (total float64, err error) {
	defer observe("daily_pnl", time.Now(), &err)

	query := `
		SELECT COALESCE(SUM(realized_pnl_sol), 0)
		FROM positions
		WHERE status = $1 AND closed_at >= $2
	`

	if err = s.pool.QueryRow(ctx, query, statusClosed, dayStartMs).Scan(&total); err != nil {
		return 0, fmt.Errorf("query daily pnl: %w", err)
	}
	return total, nil
}

// lossStreakScanLimit bounds how many recent closes are walked.
const lossStreakScanLimit = 100

// LossStreak returns consecutive most recent losses and the latest loss time.
func (s *PositionStore) LossStreak(ctx context.Context) (count int, lastLossAt int64, err error) {
	defer observe("loss_streak", time.Now(), &err)

	query := `
		SELECT realized_pnl_sol, closed_at
		FROM positions
		WHERE status = $1
		ORDER BY closed_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, statusClosed, lossStreakScanLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("query loss streak: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pnl float64
		var closedAt int64
		if err = rows.Scan(&pnl, &closedAt); err != nil {
			return 0, 0, fmt.Errorf("scan loss streak row: %w", err)
		}
		if pnl >= 0 {
			break
		}
		if count == 0 {
			lastLossAt = closedAt
		}
		count++
	}
	if err = rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("iterate loss streak rows: %w", err)
	}
	return count, lastLossAt, nil
}

// scanPositions scans multiple rows.
func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	var result []domain.Position

	for rows.Next() {
		var p domain.Position
		var side, sleeve string

		err := rows.Scan(
			&p.ID, &p.Mint, &side, &p.Size, &p.InitialSize, &p.AvgEntryPrice, &p.CostBasisSOL,
			&p.HighWaterMark, &p.OpenedAt, &sleeve, &p.TPLevelsHit,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		p.Side = domain.Side(side)
		p.Sleeve = domain.Sleeve(sleeve)
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return result, nil
}
