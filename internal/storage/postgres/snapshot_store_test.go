package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

func TestPositionSnapshotStoreLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionSnapshotStore(pool)

	snap := &domain.PositionSnapshot{
		ID:                "snap-1",
		PositionID:        "42",
		OwnerAddress:      "0xalice",
		PoolAddress:       "0x01",
		Liquidity:         decimal.NewFromInt(1000),
		PositionLiquidity: decimal.NewFromInt(0),
		Timestamp:         1_700_000_000_000,
		Block:             100,
		Event:             domain.EventIncreaseLiquidity,
	}
	require.NoError(t, store.Insert(ctx, snap))
	require.ErrorIs(t, store.Insert(ctx, snap), storage.ErrDuplicateKey)

	found, err := store.Find(ctx, "42", 1_700_000_000_000, domain.EventIncreaseLiquidity)
	require.NoError(t, err)
	require.Equal(t, "snap-1", found.ID)
	require.False(t, found.Processed)

	_, err = store.Find(ctx, "42", 1_700_000_000_000, "")
	require.ErrorIs(t, err, storage.ErrNotFound)

	byBlock, err := store.FindByBlock(ctx, "42", 100, domain.EventIncreaseLiquidity)
	require.NoError(t, err)
	require.Equal(t, "snap-1", byBlock.ID)

	require.NoError(t, store.AddCollectedFees(ctx, "snap-1",
		decimal.RequireFromString("0.1"), decimal.RequireFromString("50")))
	require.NoError(t, store.AddCollectedFees(ctx, "snap-1",
		decimal.RequireFromString("0.2"), decimal.RequireFromString("25")))
	require.ErrorIs(t, store.AddCollectedFees(ctx, "missing", decimal.Zero, decimal.Zero),
		storage.ErrNotFound)

	found, err = store.Find(ctx, "42", 1_700_000_000_000, domain.EventIncreaseLiquidity)
	require.NoError(t, err)
	require.True(t, found.CollectedFeesToken0.Equal(decimal.RequireFromString("0.3")))
	require.True(t, found.CollectedFeesToken1.Equal(decimal.NewFromInt(75)))

	pending, err := store.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	found.CurrentFeesUSD = decimal.RequireFromString("1100")
	found.LpPoints = decimal.RequireFromString("1100000")
	found.CurrentTimeVestedValue = decimal.RequireFromString("0.5")
	found.PeriodMs = 648_000_000
	found.PoolBoost = decimal.NewFromInt(2)
	require.NoError(t, store.MarkScored(ctx, found))

	// Scoring is one-shot: a second MarkScored hits the processed guard.
	require.ErrorIs(t, store.MarkScored(ctx, found), storage.ErrInvalidInput)

	pending, err = store.GetPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	last, err := store.GetLastScored(ctx, "42")
	require.NoError(t, err)
	require.Equal(t, "snap-1", last.ID)
	require.True(t, last.Processed)
	require.True(t, last.LpPoints.Equal(decimal.RequireFromString("1100000")))
	require.True(t, last.CurrentTimeVestedValue.Equal(decimal.RequireFromString("0.5")))

	_, err = store.GetLastScored(ctx, "none")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVolumeSnapshotStoreWindow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewVolumeSnapshotStore(pool)

	fees := []string{"3", "1", "10", "2"}
	for i, f := range fees {
		snap := &domain.VolumeSnapshot{
			ID:           string(rune('a' + i)),
			OwnerAddress: "0xtrader",
			SwapFeesUSD:  decimal.RequireFromString(f),
			Timestamp:    1_700_000_000_000 + int64(i),
		}
		require.NoError(t, store.Insert(ctx, snap))
	}

	// GetSince orders by fee ascending for the percentile walk.
	window, err := store.GetSince(ctx, 1_700_000_000_000)
	require.NoError(t, err)
	require.Len(t, window, 4)
	require.True(t, window[0].SwapFeesUSD.Equal(decimal.NewFromInt(1)))
	require.True(t, window[3].SwapFeesUSD.Equal(decimal.NewFromInt(10)))

	window, err = store.GetSince(ctx, 1_700_000_000_002)
	require.NoError(t, err)
	require.Len(t, window, 2)

	pending, err := store.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 4)
	require.Equal(t, "a", pending[0].ID)

	scored := pending[0]
	scored.SybilMultiplier = 1
	scored.EarlyMultiplier = 3
	scored.VolumePoints = decimal.RequireFromString("9000")
	require.NoError(t, store.MarkScored(ctx, scored))
	require.ErrorIs(t, store.MarkScored(ctx, scored), storage.ErrInvalidInput)

	pending, err = store.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
}
