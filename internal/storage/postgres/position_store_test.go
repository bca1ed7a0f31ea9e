package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

func TestPositionStoreUpsertAndGetOpen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPositionStore(pool)

	_, err := store.Get(ctx, "1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	open := &domain.Position{
		PositionID:      "1",
		OwnerAddress:    "0xalice",
		PositionAddress: domain.NFTRouter,
		PoolAddress:     "0x01",
		Token0Address:   domain.ETH,
		Token1Address:   domain.USDC,
		Token0Decimals:  18,
		Token1Decimals:  6,
		TickLower:       -100,
		TickUpper:       100,
		Liquidity:       decimal.NewFromInt(1000),
		DepositedToken0: decimal.RequireFromString("2"),
		DepositedToken1: decimal.RequireFromString("5000"),
	}
	require.NoError(t, store.Upsert(ctx, open))

	closed := &domain.Position{
		PositionID:   "2",
		OwnerAddress: "0xbob",
		Liquidity:    decimal.Zero,
	}
	require.NoError(t, store.Upsert(ctx, closed))

	burned := &domain.Position{
		PositionID:   "3",
		OwnerAddress: domain.ZeroAddress,
		Liquidity:    decimal.NewFromInt(500),
	}
	require.NoError(t, store.Upsert(ctx, burned))

	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "0xalice", got.OwnerAddress)
	require.Equal(t, 6, got.Token1Decimals)
	require.True(t, got.DepositedToken1.Equal(decimal.RequireFromString("5000")))

	// Upsert replaces.
	got.OwnerAddress = "0xcarol"
	got.Liquidity = decimal.NewFromInt(600)
	require.NoError(t, store.Upsert(ctx, got))

	got, err = store.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "0xcarol", got.OwnerAddress)
	require.True(t, got.Liquidity.Equal(decimal.NewFromInt(600)))

	// GetOpen excludes zero liquidity and burned owners.
	openPositions, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, openPositions, 1)
	require.Equal(t, "1", openPositions[0].PositionID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "1", all[0].PositionID)
	require.Equal(t, "3", all[2].PositionID)
}
