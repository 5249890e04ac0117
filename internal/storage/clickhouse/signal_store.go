package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

// SignalStore implements storage.SignalStore using ClickHouse.
type SignalStore struct {
	conn *Conn
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(conn *Conn) *SignalStore {
	return &SignalStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	signal_id, subject_id, cycle_id, kind, mint, signal, sleeve,
	confidence, suggested_size, reason, metadata, guards, evaluated_at
`

// Insert adds a new record. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(ctx context.Context, r *domain.SignalRecord) (err error) {
	if r == nil || r.SignalID == "" || r.Result.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observe("signal_insert", time.Now(), &err)

	var count uint64
	err = s.conn.QueryRow(ctx, `SELECT count(*) FROM signals WHERE signal_id = ?`, r.SignalID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	metadata, err := json.Marshal(r.Result.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	guards, err := json.Marshal(r.Guards)
	if err != nil {
		return fmt.Errorf("marshal guards: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO signals (`+signalColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.SignalID, r.SubjectID, r.CycleID, string(r.Kind), r.Result.Mint,
		string(r.Result.Signal), string(r.Result.Sleeve),
		r.Result.Confidence, r.Result.SuggestedSize, r.Result.Reason,
		string(metadata), string(guards), uint64(r.Result.EvaluatedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (_ *domain.SignalRecord, err error) {
	defer observe("signal_by_id", time.Now(), &err)

	rows, err := s.conn.Query(ctx, `SELECT `+signalColumns+` FROM signals WHERE signal_id = ? LIMIT 1`, signalID)
	if err != nil {
		return nil, fmt.Errorf("query by id: %w", err)
	}
	defer rows.Close()

	records, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// GetByMint retrieves all records for a mint, ordered by evaluated_at ASC.
func (s *SignalStore) GetByMint(ctx context.Context, mint string) (_ []*domain.SignalRecord, err error) {
	defer observe("signal_by_mint", time.Now(), &err)

	query := `SELECT ` + signalColumns + ` FROM signals WHERE mint = ? ORDER BY evaluated_at ASC, signal_id ASC`
	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetByTimeRange retrieves records evaluated within [start, end] (inclusive).
func (s *SignalStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.SignalRecord, err error) {
	defer observe("signal_by_range", time.Now(), &err)

	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}

	query := `SELECT ` + signalColumns + ` FROM signals
		WHERE evaluated_at >= ? AND evaluated_at <= ?
		ORDER BY evaluated_at ASC, signal_id ASC`
	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func scanSignals(rows chRows) ([]*domain.SignalRecord, error) {
	var records []*domain.SignalRecord

	for rows.Next() {
		var (
			r                      domain.SignalRecord
			kind, signal, sleeve   string
			metadataJSON, guardsJS string
			evaluatedAt            uint64
		)

		err := rows.Scan(
			&r.SignalID, &r.SubjectID, &r.CycleID, &kind, &r.Result.Mint, &signal, &sleeve,
			&r.Result.Confidence, &r.Result.SuggestedSize, &r.Result.Reason,
			&metadataJSON, &guardsJS, &evaluatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}

		r.Kind = domain.EvaluationKind(kind)
		r.Result.Signal = domain.Signal(signal)
		r.Result.Sleeve = domain.Sleeve(sleeve)
		r.Result.EvaluatedAt = int64(evaluatedAt)

		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &r.Result.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		if guardsJS != "" && guardsJS != "null" {
			if err := json.Unmarshal([]byte(guardsJS), &r.Guards); err != nil {
				return nil, fmt.Errorf("unmarshal guards: %w", err)
			}
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return records, nil
}
