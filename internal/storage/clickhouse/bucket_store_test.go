package clickhouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

func TestPoolBucketStoreUpsertReplaces(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPoolBucketStore(conn)

	_, err := store.Get(ctx, "0x01", domain.BucketHour, 472222)
	require.ErrorIs(t, err, storage.ErrNotFound)

	tick := int64(10)
	bucket := &domain.PoolBucket{
		PoolAddress:          "0x01",
		IntervalSeconds:      domain.BucketHour,
		BucketID:             472222,
		PeriodStart:          472222 * domain.BucketHour,
		Open:                 decimal.RequireFromString("2500"),
		High:                 decimal.RequireFromString("2500"),
		Low:                  decimal.RequireFromString("2500"),
		Close:                decimal.RequireFromString("2500"),
		Token0Price:          decimal.RequireFromString("2500"),
		VolumeUSD:            decimal.RequireFromString("100.5"),
		FeesUSD:              decimal.RequireFromString("0.3"),
		TxCount:              1,
		Liquidity:            decimal.NewFromInt(1000),
		Tick:                 &tick,
		FeeGrowthGlobal0X128: "0x1",
		FeeGrowthGlobal1X128: "0x2",
	}
	require.NoError(t, store.Upsert(ctx, bucket))

	// Rewrite of the same key collapses to the newest row under FINAL.
	bucket.VolumeUSD = decimal.RequireFromString("200.5")
	bucket.TxCount = 2
	bucket.High = decimal.RequireFromString("2600")
	require.NoError(t, store.Upsert(ctx, bucket))

	got, err := store.Get(ctx, "0x01", domain.BucketHour, 472222)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.TxCount)
	require.InDelta(t, 200.5, got.VolumeUSD.InexactFloat64(), 1e-9)
	require.InDelta(t, 2600, got.High.InexactFloat64(), 1e-9)
	require.NotNil(t, got.Tick)
	require.Equal(t, int64(10), *got.Tick)
	require.Equal(t, "0x1", got.FeeGrowthGlobal0X128)
}

func TestTokenBucketStoreGetLatestPriced(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenBucketStore(conn)

	insert := func(bucketID int64, price string) {
		t.Helper()
		require.NoError(t, store.Upsert(ctx, &domain.TokenBucket{
			TokenAddress:    domain.ETH,
			IntervalSeconds: domain.BucketHour,
			BucketID:        bucketID,
			PeriodStart:     bucketID * domain.BucketHour,
			PriceUSD:        decimal.RequireFromString(price),
		}))
	}

	insert(100, "2000")
	insert(102, "0") // unpriced bucket must be skipped
	insert(103, "2100")

	// Exact bucket is unpriced: fall back to the latest priced one before it.
	got, err := store.GetLatestPriced(ctx, domain.ETH, domain.BucketHour, 102)
	require.NoError(t, err)
	require.Equal(t, int64(100), got.BucketID)
	require.InDelta(t, 2000, got.PriceUSD.InexactFloat64(), 1e-9)

	got, err = store.GetLatestPriced(ctx, domain.ETH, domain.BucketHour, 200)
	require.NoError(t, err)
	require.Equal(t, int64(103), got.BucketID)

	_, err = store.GetLatestPriced(ctx, domain.ETH, domain.BucketHour, 99)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetLatestPriced(ctx, domain.USDC, domain.BucketHour, 200)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFactoryBucketStoreRoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewFactoryBucketStore(conn)

	_, err := store.Get(ctx, domain.BucketDay, 19676)
	require.ErrorIs(t, err, storage.ErrNotFound)

	bucket := &domain.FactoryBucket{
		IntervalSeconds:     domain.BucketDay,
		BucketID:            19676,
		PeriodStart:         19676 * domain.BucketDay,
		VolumeETH:           decimal.RequireFromString("12.25"),
		VolumeUSD:           decimal.RequireFromString("30625"),
		FeesUSD:             decimal.RequireFromString("91.875"),
		TxCount:             7,
		TotalValueLockedUSD: decimal.RequireFromString("1000000"),
	}
	require.NoError(t, store.Upsert(ctx, bucket))

	got, err := store.Get(ctx, domain.BucketDay, 19676)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.TxCount)
	require.InDelta(t, 12.25, got.VolumeETH.InexactFloat64(), 1e-9)
	require.InDelta(t, 30625, got.VolumeUSD.InexactFloat64(), 1e-9)
}
