package memory

import (
	"context"
	"sort"
	"sync"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu     sync.RWMutex
	open   map[string]*domain.Position
	closed []domain.ClosedTrade // ordered by insertion
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		open: make(map[string]*domain.Position),
	}
}

// Open adds a new open position. Returns ErrDuplicateKey if the ID exists.
func (s *PositionStore) Open(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" || p.Mint == "" || !p.Sleeve.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.open[p.ID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, t := range s.closed {
		if t.PositionID == p.ID {
			return storage.ErrDuplicateKey
		}
	}
	cp := *p
	s.open[p.ID] = &cp
	return nil
}

// Update replaces the mutable fields of an open position.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.open[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.Size = p.Size
	cur.HighWaterMark = p.HighWaterMark
	cur.TPLevelsHit = p.TPLevelsHit
	return nil
}

// Close marks the position closed and records its realized outcome.
func (s *PositionStore) Close(_ context.Context, t *domain.ClosedTrade) error {
	if t == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.open[t.PositionID]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.open, t.PositionID)

	rec := *t
	rec.Mint = p.Mint
	rec.Sleeve = p.Sleeve
	s.closed = append(s.closed, rec)
	return nil
}

// OpenPositions returns open positions ordered by opened_at ASC.
func (s *PositionStore) OpenPositions(_ context.Context, sleeve domain.Sleeve) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Position
	for _, p := range s.open {
		if sleeve == "" || p.Sleeve == sleeve {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OpenedAt != result[j].OpenedAt {
			return result[i].OpenedAt < result[j].OpenedAt
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// TokenExposure returns the summed cost basis (SOL) of open positions in mint.
func (s *PositionStore) TokenExposure(_ context.Context, mint string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, p := range s.open {
		if p.Mint == mint {
			total += p.CostBasisSOL
		}
	}
	return total, nil
}

// DailyRealizedPnL returns realized pnl (SOL) of trades closed at or after dayStartMs.
func (s *PositionStore) DailyRealizedPnL(_ context.Context, dayStartMs int64) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, t := range s.closed {
		if t.ClosedAt >= dayStartMs {
			total += t.RealizedPnLSOL
		}
	}
	return total, nil
}

// LossStreak returns consecutive most recent losses and the latest loss time.
func (s *PositionStore) LossStreak(_ context.Context) (int, int64, error) {
	s.mu.RLock()
	trades := append([]domain.ClosedTrade(nil), s.closed...)
	s.mu.RUnlock()

	return lossStreak(trades)
}

// lossStreak walks trades newest first. Ties on ClosedAt keep insertion order.
func lossStreak(trades []domain.ClosedTrade) (int, int64, error) {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ClosedAt > trades[j].ClosedAt
	})

	count := 0
	var lastLossAt int64
	for _, t := range trades {
		if !t.IsLoss() {
			break
		}
		if count == 0 {
			lastLossAt = t.ClosedAt
		}
		count++
	}
	return count, lastLossAt, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
