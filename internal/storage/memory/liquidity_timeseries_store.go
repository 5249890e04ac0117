package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

// LiquidityTimeseriesStore is an in-memory implementation of storage.LiquidityTimeseriesStore.
type LiquidityTimeseriesStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LiquiditySample // keyed by (mint, timestamp_ms)
}

// NewLiquidityTimeseriesStore creates a new in-memory liquidity timeseries store.
func NewLiquidityTimeseriesStore() *LiquidityTimeseriesStore {
	return &LiquidityTimeseriesStore{
		data: make(map[string]*domain.LiquiditySample),
	}
}

func liquidityKey(mint string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", mint, timestampMs)
}

// InsertBulk adds multiple samples. Fails entire batch on duplicate.
func (s *LiquidityTimeseriesStore) InsertBulk(_ context.Context, samples []*domain.LiquiditySample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(samples))
	for _, p := range samples {
		if p == nil || p.Mint == "" {
			return storage.ErrInvalidInput
		}
		key := liquidityKey(p.Mint, p.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range samples {
		cp := *p
		s.data[liquidityKey(p.Mint, p.TimestampMs)] = &cp
	}
	return nil
}

// GetByMint retrieves all samples for a mint, ordered by timestamp ASC.
func (s *LiquidityTimeseriesStore) GetByMint(ctx context.Context, mint string) ([]*domain.LiquiditySample, error) {
	return s.collect(mint, func(int64) bool { return true }), nil
}

// GetByTimeRange retrieves samples for a mint within [start, end] (inclusive).
func (s *LiquidityTimeseriesStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.LiquiditySample, error) {
	return s.collect(mint, func(ts int64) bool { return ts >= start && ts <= end }), nil
}

func (s *LiquidityTimeseriesStore) collect(mint string, keep func(int64) bool) []*domain.LiquiditySample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LiquiditySample
	for _, p := range s.data {
		if p.Mint == mint && keep(p.TimestampMs) {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result
}

var _ storage.LiquidityTimeseriesStore = (*LiquidityTimeseriesStore)(nil)
