package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

func TestLiquidityTimeseriesStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidityTimeseriesStore(conn)
	ctx := context.Background()

	samples := []*domain.LiquiditySample{
		{Mint: "mintA", TimestampMs: 3000, LiquidityUSD: 30_000},
		{Mint: "mintA", TimestampMs: 1000, LiquidityUSD: 10_000},
		{Mint: "mintA", TimestampMs: 2000, LiquidityUSD: 20_000},
		{Mint: "mintB", TimestampMs: 1000, LiquidityUSD: 5_000},
	}
	require.NoError(t, store.InsertBulk(ctx, samples))

	all, err := store.GetByMint(ctx, "mintA")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1000), all[0].TimestampMs)
	assert.Equal(t, int64(3000), all[2].TimestampMs)

	ranged, err := store.GetByTimeRange(ctx, "mintA", 1500, 3000)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, 20_000.0, ranged[0].LiquidityUSD)
}

func TestLiquidityTimeseriesStore_Duplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewLiquidityTimeseriesStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.LiquiditySample{{Mint: "m", TimestampMs: 1}}))

	err := store.InsertBulk(ctx, []*domain.LiquiditySample{{Mint: "m", TimestampMs: 1}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.LiquiditySample{{Mint: "m", TimestampMs: 9}, {Mint: "m", TimestampMs: 9}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}
