package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

func TestFactoryStoreVersioning(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFactoryStore(pool)

	_, err := store.GetLatest(ctx)
	require.ErrorIs(t, err, storage.ErrNotFound)

	factory := &domain.Factory{
		Address:             domain.FactoryAddress,
		PoolCount:           1,
		TxCount:             10,
		TotalVolumeETH:      decimal.RequireFromString("12.5"),
		TotalVolumeUSD:      decimal.RequireFromString("25000.125"),
		TotalFeesUSD:        decimal.RequireFromString("75.0003"),
		TotalValueLockedETH: decimal.RequireFromString("100"),
		TotalValueLockedUSD: decimal.RequireFromString("200000"),
		ValidFrom:           100,
	}
	require.NoError(t, store.Insert(ctx, factory))

	// The partial unique index permits exactly one open version.
	require.ErrorIs(t, store.Insert(ctx, factory), storage.ErrDuplicateKey)

	got, err := store.GetLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(10), got.TxCount)
	require.True(t, got.TotalVolumeUSD.Equal(decimal.RequireFromString("25000.125")))
	require.Nil(t, got.ValidTo)

	got.TxCount = 11
	got.TotalFeesUSD = decimal.RequireFromString("80.5")
	require.NoError(t, store.Update(ctx, got))

	got, err = store.GetLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(11), got.TxCount)
	require.True(t, got.TotalFeesUSD.Equal(decimal.RequireFromString("80.5")))
}

func TestPoolStoreSupersede(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)
	addr := "0x01"

	tick := int64(100)
	v1 := &domain.Pool{
		PoolAddress:          addr,
		Token0:               domain.ETH,
		Token1:               domain.USDC,
		FeeTier:              3000,
		SqrtPriceX96:         decimal.New(1, 28),
		Tick:                 &tick,
		Liquidity:            decimal.RequireFromString("1000"),
		FeeGrowthGlobal0X128: "0x1",
		FeeGrowthGlobal1X128: "0x2",
		TxCount:              5,
		CreatedAt:            1_700_000_000_000,
		ValidFrom:            10,
	}
	require.NoError(t, store.Insert(ctx, v1))

	next := *v1
	next.TxCount = 6
	next.ValidFrom = 20
	require.NoError(t, store.Supersede(ctx, addr, 20, &next))

	got, err := store.GetLatest(ctx, addr)
	require.NoError(t, err)
	require.Equal(t, int64(6), got.TxCount)
	require.Equal(t, int64(20), got.ValidFrom)
	require.Nil(t, got.ValidTo)
	require.NotNil(t, got.Tick)
	require.Equal(t, int64(100), *got.Tick)

	require.ErrorIs(t, store.Supersede(ctx, "0xmissing", 20, &next), storage.ErrVersionClosed)
}

func TestPoolStoreGetByTokenOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolStore(pool)

	for _, addr := range []string{"0x0c", "0x0a", "0x0b"} {
		p := &domain.Pool{
			PoolAddress:          addr,
			Token0:               domain.ETH,
			Token1:               domain.USDC,
			FeeGrowthGlobal0X128: "0",
			FeeGrowthGlobal1X128: "0",
		}
		require.NoError(t, store.Insert(ctx, p))
	}

	pools, err := store.GetByToken(ctx, domain.USDC)
	require.NoError(t, err)
	require.Len(t, pools, 3)
	require.Equal(t, "0x0a", pools[0].PoolAddress)
	require.Equal(t, "0x0b", pools[1].PoolAddress)
	require.Equal(t, "0x0c", pools[2].PoolAddress)
}

func TestTokenStoreRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	token := &domain.Token{
		TokenAddress:        domain.ETH,
		Name:                "Ether",
		Symbol:              "ETH",
		Decimals:            18,
		DerivedETH:          decimal.NewFromInt(1),
		Volume:              decimal.RequireFromString("0.000000000000000001"),
		TotalValueLocked:    decimal.RequireFromString("42.42"),
		TotalValueLockedUSD: decimal.RequireFromString("84840"),
		TxCount:             3,
	}
	require.NoError(t, store.Insert(ctx, token))

	got, err := store.GetLatest(ctx, domain.ETH)
	require.NoError(t, err)
	require.Equal(t, "ETH", got.Symbol)
	require.Equal(t, 18, got.Decimals)
	// NUMERIC keeps full precision through the string round trip.
	require.True(t, got.Volume.Equal(decimal.RequireFromString("0.000000000000000001")))

	got.TxCount = 4
	require.NoError(t, store.Update(ctx, got))

	got, err = store.GetLatest(ctx, domain.ETH)
	require.NoError(t, err)
	require.Equal(t, int64(4), got.TxCount)

	_, err = store.GetLatest(ctx, "0xmissing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
