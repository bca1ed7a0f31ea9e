package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

func TestLeaderboardStoreAccumulatesPerContest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewLeaderboardStore(pool)

	_, err := store.Get(ctx, domain.ContestLP, "0xalice")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.AddPoints(ctx, domain.ContestLP, "0xalice",
		decimal.RequireFromString("100.5"), 1000))
	require.NoError(t, store.AddPoints(ctx, domain.ContestLP, "0xalice",
		decimal.RequireFromString("99.5"), 2000))
	require.NoError(t, store.AddPoints(ctx, domain.ContestLP, "0xbob",
		decimal.NewFromInt(300), 1500))

	// Same owner, different contest is an independent total.
	require.NoError(t, store.AddPoints(ctx, domain.ContestVolume, "0xalice",
		decimal.NewFromInt(7), 1000))

	alice, err := store.Get(ctx, domain.ContestLP, "0xalice")
	require.NoError(t, err)
	require.True(t, alice.Points.Equal(decimal.NewFromInt(200)))
	require.Equal(t, int64(2000), alice.UpdatedAt)

	top, err := store.Top(ctx, domain.ContestLP, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "0xbob", top[0].UserAddress)
	require.Equal(t, "0xalice", top[1].UserAddress)

	top, err = store.Top(ctx, domain.ContestLP, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
}

func TestBlockStoreClosest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewBlockStore(pool)

	_, err := store.Closest(ctx, 1000)
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Latest(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, &domain.Block{Number: 100, Timestamp: 1000}))
	require.NoError(t, store.Insert(ctx, &domain.Block{Number: 101, Timestamp: 2000}))
	require.NoError(t, store.Insert(ctx, &domain.Block{Number: 102, Timestamp: 5000}))

	closest, err := store.Closest(ctx, 2400)
	require.NoError(t, err)
	require.Equal(t, int64(101), closest.Number)

	closest, err = store.Closest(ctx, 9000)
	require.NoError(t, err)
	require.Equal(t, int64(102), closest.Number)

	// Duplicate numbers are overwritten.
	require.NoError(t, store.Insert(ctx, &domain.Block{Number: 102, Timestamp: 6000}))

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(102), latest.Number)
	require.Equal(t, int64(6000), latest.Timestamp)
}
