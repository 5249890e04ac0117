package memory

import (
	"context"
	"errors"
	"testing"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/storage"
)

func TestLiquidityTimeseriesStore_InsertAndQuery(t *testing.T) {
	store := NewLiquidityTimeseriesStore()
	ctx := context.Background()

	samples := []*domain.LiquiditySample{
		{Mint: "mintA", TimestampMs: 3000, LiquidityUSD: 30},
		{Mint: "mintA", TimestampMs: 1000, LiquidityUSD: 10},
		{Mint: "mintA", TimestampMs: 2000, LiquidityUSD: 20},
		{Mint: "mintB", TimestampMs: 1000, LiquidityUSD: 99},
	}
	if err := store.InsertBulk(ctx, samples); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	all, err := store.GetByMint(ctx, "mintA")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(all))
	}
	for i, want := range []int64{1000, 2000, 3000} {
		if all[i].TimestampMs != want {
			t.Errorf("sample %d: expected ts %d, got %d", i, want, all[i].TimestampMs)
		}
	}

	ranged, err := store.GetByTimeRange(ctx, "mintA", 2000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(ranged) != 2 || ranged[0].LiquidityUSD != 20 {
		t.Errorf("unexpected range result: %+v", ranged)
	}
}

func TestLiquidityTimeseriesStore_Duplicates(t *testing.T) {
	store := NewLiquidityTimeseriesStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.LiquiditySample{{Mint: "m", TimestampMs: 1}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.LiquiditySample{{Mint: "m", TimestampMs: 2}, {Mint: "m", TimestampMs: 1}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// batch is atomic: ts=2 must not have been written
	got, _ := store.GetByMint(ctx, "m")
	if len(got) != 1 {
		t.Errorf("expected 1 sample after failed batch, got %d", len(got))
	}

	err = store.InsertBulk(ctx, []*domain.LiquiditySample{{Mint: "m", TimestampMs: 5}, {Mint: "m", TimestampMs: 5}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	err = store.InsertBulk(ctx, []*domain.LiquiditySample{{TimestampMs: 7}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
