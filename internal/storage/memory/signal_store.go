package memory

import (
	"context"
	"sort"
	"sync"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignalRecord
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.SignalRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(_ context.Context, r *domain.SignalRecord) error {
	if r == nil || r.SignalID == "" || r.Result.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.SignalID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.SignalID] = cloneRecord(r)
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, signalID string) (*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[signalID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(r), nil
}

// GetByMint retrieves all records for a mint, ordered by evaluated_at ASC.
func (s *SignalStore) GetByMint(_ context.Context, mint string) ([]*domain.SignalRecord, error) {
	return s.collect(func(r *domain.SignalRecord) bool { return r.Result.Mint == mint }), nil
}

// GetByTimeRange retrieves records evaluated within [start, end] (inclusive).
func (s *SignalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SignalRecord, error) {
	return s.collect(func(r *domain.SignalRecord) bool {
		return r.Result.EvaluatedAt >= start && r.Result.EvaluatedAt <= end
	}), nil
}

func (s *SignalStore) collect(keep func(*domain.SignalRecord) bool) []*domain.SignalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalRecord
	for _, r := range s.data {
		if keep(r) {
			result = append(result, cloneRecord(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Result.EvaluatedAt != result[j].Result.EvaluatedAt {
			return result[i].Result.EvaluatedAt < result[j].Result.EvaluatedAt
		}
		return result[i].SignalID < result[j].SignalID
	})
	return result
}

// cloneRecord copies the record and its slices. Map values inside
// Metadata/Data are shared; callers treat journaled records as immutable.
func cloneRecord(r *domain.SignalRecord) *domain.SignalRecord {
	cp := *r
	if r.Guards != nil {
		cp.Guards = append([]domain.GuardCheckResult(nil), r.Guards...)
	}
	return &cp
}

var _ storage.SignalStore = (*SignalStore)(nil)
