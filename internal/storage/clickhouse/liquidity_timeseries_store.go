package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

// LiquidityTimeseriesStore implements storage.LiquidityTimeseriesStore using ClickHouse.
type LiquidityTimeseriesStore struct {
	conn *Conn
}

// NewLiquidityTimeseriesStore creates a new LiquidityTimeseriesStore.
func NewLiquidityTimeseriesStore(conn *Conn) *LiquidityTimeseriesStore {
	return &LiquidityTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LiquidityTimeseriesStore = (*LiquidityTimeseriesStore)(nil)

// InsertBulk adds multiple samples. Fails entire batch on duplicate.
// MergeTree does not enforce keys, so duplicates are checked before insert.
func (s *LiquidityTimeseriesStore) InsertBulk(ctx context.Context, samples []*domain.LiquiditySample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	defer observe("liquidity_insert", time.Now(), &err)

	type key struct {
		mint        string
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(samples))
	for _, p := range samples {
		if p == nil || p.Mint == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.Mint, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range samples {
		exists, err := s.exists(ctx, p.Mint, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO liquidity_timeseries (mint, timestamp_ms, liquidity_usd)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range samples {
		if err = batch.Append(p.Mint, uint64(p.TimestampMs), p.LiquidityUSD); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all samples for a mint, ordered by timestamp ASC.
func (s *LiquidityTimeseriesStore) GetByMint(ctx context.Context, mint string) (result []*domain.LiquiditySample, err error) {
	defer observe("liquidity_by_mint", time.Now(), &err)

	query := `
		SELECT mint, timestamp_ms, liquidity_usd
		FROM liquidity_timeseries
		WHERE mint = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanLiquiditySamples(rows)
}

// GetByTimeRange retrieves samples for a mint within [start, end] (inclusive).
func (s *LiquidityTimeseriesStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) (result []*domain.LiquiditySample, err error) {
	defer observe("liquidity_by_range", time.Now(), &err)

	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}

	query := `
		SELECT mint, timestamp_ms, liquidity_usd
		FROM liquidity_timeseries
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanLiquiditySamples(rows)
}

func (s *LiquidityTimeseriesStore) exists(ctx context.Context, mint string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM liquidity_timeseries
		WHERE mint = ? AND timestamp_ms = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, mint, uint64(timestampMs)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanLiquiditySamples(rows chRows) ([]*domain.LiquiditySample, error) {
	var samples []*domain.LiquiditySample

	for rows.Next() {
		var p domain.LiquiditySample
		var timestampMs uint64

		if err := rows.Scan(&p.Mint, &timestampMs, &p.LiquidityUSD); err != nil {
			return nil, fmt.Errorf("scan liquidity row: %w", err)
		}
		p.TimestampMs = int64(timestampMs)
		samples = append(samples, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liquidity rows: %w", err)
	}
	return samples, nil
}
