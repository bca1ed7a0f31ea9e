package domain

import "github.com/shopspring/decimal"

// Supported bucket widths (in seconds).
const (
	BucketHour = 3600
	BucketDay  = 86400
)

// BucketID maps a millisecond timestamp to its bucket index for a width.
func BucketID(timestampMs int64, intervalSeconds int64) int64 {
	return timestampMs / 1000 / intervalSeconds
}

// BucketStart returns the bucket's start as a Unix timestamp in seconds.
func BucketStart(bucketID, intervalSeconds int64) int64 {
	return bucketID * intervalSeconds
}

// PoolBucket is one hour/day OHLC + volume document for a pool.
// Keyed by (pool address, interval, bucket id); one document per key.
type PoolBucket struct {
	PoolAddress     string
	IntervalSeconds int64
	BucketID        int64
	PeriodStart     int64 // Unix seconds

	// OHLC of token0Price.
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Token0Price decimal.Decimal
	Token1Price decimal.Decimal

	// Rolling sums.
	VolumeToken0 decimal.Decimal
	VolumeToken1 decimal.Decimal
	VolumeUSD    decimal.Decimal
	FeesUSD      decimal.Decimal
	TxCount      int64

	// Last-write-wins snapshots of pool state.
	Liquidity            decimal.Decimal
	SqrtPriceX96         decimal.Decimal
	Tick                 *int64
	TotalValueLockedUSD  decimal.Decimal
	FeeGrowthGlobal0X128 string
	FeeGrowthGlobal1X128 string
}

// TokenBucket is one hour/day OHLC + volume document for a token.
type TokenBucket struct {
	TokenAddress    string
	IntervalSeconds int64
	BucketID        int64
	PeriodStart     int64

	// OHLC of the token's USD price.
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	PriceUSD decimal.Decimal

	Volume             decimal.Decimal // token units
	VolumeUSD          decimal.Decimal
	UntrackedVolumeUSD decimal.Decimal
	FeesUSD            decimal.Decimal
	TxCount            int64

	TotalValueLocked    decimal.Decimal
	TotalValueLockedUSD decimal.Decimal
}

// FactoryBucket is one hour/day aggregate document across all pools.
type FactoryBucket struct {
	IntervalSeconds int64
	BucketID        int64
	PeriodStart     int64

	VolumeETH decimal.Decimal
	VolumeUSD decimal.Decimal
	FeesUSD   decimal.Decimal
	TxCount   int64

	TotalValueLockedUSD decimal.Decimal
}
