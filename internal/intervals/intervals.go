// Package intervals maintains the hour/day bucket documents for factory,
// pool and token aggregates. Buckets are upserted in place: OHLC fields
// track the reference price, volume/fee fields accumulate, state fields are
// last-write-wins, and txCount increments once per triggering event.
package intervals

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/pricing"
	"starkdex-indexer/internal/storage"
)

// Aggregator upserts time-bucketed statistics.
type Aggregator struct {
	poolBuckets    storage.PoolBucketStore
	tokenBuckets   storage.TokenBucketStore
	factoryBuckets storage.FactoryBucketStore
}

// NewAggregator creates a bucket aggregator.
func NewAggregator(poolBuckets storage.PoolBucketStore, tokenBuckets storage.TokenBucketStore, factoryBuckets storage.FactoryBucketStore) *Aggregator {
	return &Aggregator{
		poolBuckets:    poolBuckets,
		tokenBuckets:   tokenBuckets,
		factoryBuckets: factoryBuckets,
	}
}

// SwapDelta carries the per-event additive amounts. The zero value is used
// for non-swap events (liquidity changes still snapshot state and bump
// txCount, but add no volume).
type SwapDelta struct {
	VolumeETH    decimal.Decimal // tracked, factory only
	VolumeUSD    decimal.Decimal // tracked
	VolumeToken0 decimal.Decimal
	VolumeToken1 decimal.Decimal
	FeesUSD      decimal.Decimal
}

// UpdatePool upserts the pool's hour and day buckets for the event
// timestamp.
func (a *Aggregator) UpdatePool(ctx context.Context, pool *domain.Pool, timestampMs int64, delta SwapDelta) error {
	for _, interval := range []int64{domain.BucketHour, domain.BucketDay} {
		if err := a.updatePoolBucket(ctx, pool, timestampMs, interval, delta); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) updatePoolBucket(ctx context.Context, pool *domain.Pool, timestampMs, interval int64, delta SwapDelta) error {
	id := domain.BucketID(timestampMs, interval)

	b, err := a.poolBuckets.Get(ctx, pool.PoolAddress, interval, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load pool bucket: %w", err)
		}
		b = &domain.PoolBucket{
			PoolAddress:     pool.PoolAddress,
			IntervalSeconds: interval,
			BucketID:        id,
			PeriodStart:     domain.BucketStart(id, interval),
			Open:            pool.Token0Price,
			High:            pool.Token0Price,
			Low:             pool.Token0Price,
			Close:           pool.Token0Price,
		}
	}

	if pool.Token0Price.GreaterThan(b.High) {
		b.High = pool.Token0Price
	}
	if pool.Token0Price.LessThan(b.Low) {
		b.Low = pool.Token0Price
	}
	b.Close = pool.Token0Price
	b.Token0Price = pool.Token0Price
	b.Token1Price = pool.Token1Price

	b.Liquidity = pool.Liquidity
	b.SqrtPriceX96 = pool.SqrtPriceX96
	b.Tick = pool.Tick
	b.TotalValueLockedUSD = pool.TotalValueLockedUSD
	b.FeeGrowthGlobal0X128 = pool.FeeGrowthGlobal0X128
	b.FeeGrowthGlobal1X128 = pool.FeeGrowthGlobal1X128

	b.VolumeUSD = b.VolumeUSD.Add(delta.VolumeUSD)
	b.VolumeToken0 = b.VolumeToken0.Add(delta.VolumeToken0)
	b.VolumeToken1 = b.VolumeToken1.Add(delta.VolumeToken1)
	b.FeesUSD = b.FeesUSD.Add(delta.FeesUSD)
	b.TxCount++

	if err := a.poolBuckets.Upsert(ctx, b); err != nil {
		return fmt.Errorf("upsert pool bucket: %w", err)
	}
	return nil
}

// UpdateToken upserts the token's hour and day buckets. amountAbs is the
// token-unit volume of the triggering event, priceUSD the token's current
// USD price (derivedETH x ethUSD).
func (a *Aggregator) UpdateToken(ctx context.Context, token *domain.Token, timestampMs int64, priceUSD, volumeUSD, amountAbs, feesUSD decimal.Decimal) error {
	for _, interval := range []int64{domain.BucketHour, domain.BucketDay} {
		if err := a.updateTokenBucket(ctx, token, timestampMs, interval, priceUSD, volumeUSD, amountAbs, feesUSD); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) updateTokenBucket(ctx context.Context, token *domain.Token, timestampMs, interval int64, priceUSD, volumeUSD, amountAbs, feesUSD decimal.Decimal) error {
	id := domain.BucketID(timestampMs, interval)

	b, err := a.tokenBuckets.Get(ctx, token.TokenAddress, interval, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load token bucket: %w", err)
		}
		b = &domain.TokenBucket{
			TokenAddress:    token.TokenAddress,
			IntervalSeconds: interval,
			BucketID:        id,
			PeriodStart:     domain.BucketStart(id, interval),
			Open:            priceUSD,
			High:            priceUSD,
			Low:             priceUSD,
			Close:           priceUSD,
		}
	}

	if priceUSD.GreaterThan(b.High) {
		b.High = priceUSD
	}
	if priceUSD.LessThan(b.Low) {
		b.Low = priceUSD
	}
	b.Close = priceUSD
	b.PriceUSD = priceUSD

	b.TotalValueLocked = token.TotalValueLocked
	b.TotalValueLockedUSD = token.TotalValueLockedUSD

	b.Volume = b.Volume.Add(amountAbs)
	b.VolumeUSD = b.VolumeUSD.Add(volumeUSD)
	b.UntrackedVolumeUSD = b.UntrackedVolumeUSD.Add(amountAbs.Mul(priceUSD))
	b.FeesUSD = b.FeesUSD.Add(feesUSD)
	b.TxCount++

	if err := a.tokenBuckets.Upsert(ctx, b); err != nil {
		return fmt.Errorf("upsert token bucket: %w", err)
	}
	return nil
}

// UpdateTokenFromState is the UpdateToken variant for non-swap events: no
// volume, price taken from the token's derived price.
func (a *Aggregator) UpdateTokenFromState(ctx context.Context, token *domain.Token, timestampMs int64, pc *pricing.Context) error {
	priceUSD := token.DerivedETH.Mul(pc.EthUSD())
	return a.UpdateToken(ctx, token, timestampMs, priceUSD, decimal.Zero, decimal.Zero, decimal.Zero)
}

// UpdateFactory upserts the factory-wide hour and day buckets.
func (a *Aggregator) UpdateFactory(ctx context.Context, factory *domain.Factory, timestampMs int64, delta SwapDelta) error {
	for _, interval := range []int64{domain.BucketHour, domain.BucketDay} {
		if err := a.updateFactoryBucket(ctx, factory, timestampMs, interval, delta); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) updateFactoryBucket(ctx context.Context, factory *domain.Factory, timestampMs, interval int64, delta SwapDelta) error {
	id := domain.BucketID(timestampMs, interval)

	b, err := a.factoryBuckets.Get(ctx, interval, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load factory bucket: %w", err)
		}
		b = &domain.FactoryBucket{
			IntervalSeconds: interval,
			BucketID:        id,
			PeriodStart:     domain.BucketStart(id, interval),
		}
	}

	b.TotalValueLockedUSD = factory.TotalValueLockedUSD
	b.VolumeETH = b.VolumeETH.Add(delta.VolumeETH)
	b.VolumeUSD = b.VolumeUSD.Add(delta.VolumeUSD)
	b.FeesUSD = b.FeesUSD.Add(delta.FeesUSD)
	b.TxCount++

	if err := a.factoryBuckets.Upsert(ctx, b); err != nil {
		return fmt.Errorf("upsert factory bucket: %w", err)
	}
	return nil
}
