package domain

import "github.com/shopspring/decimal"

// Pool is the materialized aggregate state of one AMM pool.
//
// Pool documents are cursor-range versioned: ValidFrom/ValidTo bound the block
// range a version was current for, ValidTo == nil marks the single open
// version per address. Versions are appended, never deleted.
type Pool struct {
	PoolAddress string
	Token0      string // token0 address
	Token1      string // token1 address
	FeeTier     int64  // fee in hundredths of a bip (3000 = 0.3%)

	SqrtPriceX96 decimal.Decimal
	Tick         *int64 // nil until Initialize
	Liquidity    decimal.Decimal
	Token0Price  decimal.Decimal // token0 per token1
	Token1Price  decimal.Decimal // token1 per token0

	TotalValueLockedToken0 decimal.Decimal
	TotalValueLockedToken1 decimal.Decimal
	TotalValueLockedETH    decimal.Decimal
	TotalValueLockedUSD    decimal.Decimal

	VolumeToken0       decimal.Decimal
	VolumeToken1       decimal.Decimal
	VolumeUSD          decimal.Decimal // tracked
	UntrackedVolumeUSD decimal.Decimal
	FeesUSD            decimal.Decimal

	FeeGrowthGlobal0X128 string // hex felt, refreshed via RPC after swaps
	FeeGrowthGlobal1X128 string

	TxCount   int64
	CreatedAt int64 // Unix timestamp in milliseconds

	ValidFrom int64  // block the version became current at
	ValidTo   *int64 // nil = open version
}

// Initialized reports whether the pool has received its Initialize event.
// Liquidity deltas are inapplicable before that.
func (p *Pool) Initialized() bool {
	return p.Tick != nil
}

// InRange reports whether the pool's current tick lies in [lower, upper).
func (p *Pool) InRange(lower, upper int64) bool {
	return p.Tick != nil && lower <= *p.Tick && *p.Tick < upper
}
