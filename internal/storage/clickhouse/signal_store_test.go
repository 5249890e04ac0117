package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

func testRecord(id, mint string, evaluatedAt int64) *domain.SignalRecord {
	return &domain.SignalRecord{
		SignalID:  id,
		SubjectID: "reg-" + mint,
		CycleID:   "cycle-1",
		Kind:      domain.EvaluationEntry,
		Result: domain.StrategyResult{
			Mint:          mint,
			Signal:        domain.SignalBuy,
			Sleeve:        domain.SleeveMomentum,
			Confidence:    82.5,
			SuggestedSize: 0.4,
			Reason:        "volume rising, above vwap",
			Metadata:      map[string]any{"ema_fast": 1.25},
			EvaluatedAt:   evaluatedAt,
		},
		Guards: []domain.GuardCheckResult{
			{Name: domain.CheckLiquidity, Outcome: domain.GuardPass, Message: "ok"},
			{Name: domain.CheckConcentration, Outcome: domain.GuardWarning, Message: "top10 62%"},
		},
	}
}

func TestSignalStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testRecord("s1", "mintA", 1000)))

	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.EvaluationEntry, got.Kind)
	assert.Equal(t, domain.SleeveMomentum, got.Result.Sleeve)
	assert.Equal(t, 82.5, got.Result.Confidence)
	assert.Equal(t, 1.25, got.Result.Metadata["ema_fast"])
	require.Len(t, got.Guards, 2)
	assert.Equal(t, domain.GuardWarning, got.Guards[1].Outcome)

	assert.ErrorIs(t, store.Insert(ctx, testRecord("s1", "mintA", 1000)), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSignalStore_Queries(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSignalStore(conn)
	ctx := context.Background()

	for _, r := range []*domain.SignalRecord{
		testRecord("s3", "mintA", 3000),
		testRecord("s1", "mintA", 1000),
		testRecord("s2", "mintB", 2000),
	} {
		require.NoError(t, store.Insert(ctx, r))
	}

	byMint, err := store.GetByMint(ctx, "mintA")
	require.NoError(t, err)
	require.Len(t, byMint, 2)
	assert.Equal(t, "s1", byMint[0].SignalID)

	ranged, err := store.GetByTimeRange(ctx, 1500, 3000)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "s2", ranged[0].SignalID)
}
