package domain

import "github.com/shopspring/decimal"

// Token is the materialized aggregate state of one ERC-20 token.
// Versioned the same way as Pool (see Pool doc).
type Token struct {
	TokenAddress string
	Name         string
	Symbol       string
	Decimals     int

	// DerivedETH is the token price in units of the native asset, discovered
	// by the pricing oracle's pool traversal.
	DerivedETH decimal.Decimal

	Volume             decimal.Decimal // in token units
	VolumeUSD          decimal.Decimal // tracked
	UntrackedVolumeUSD decimal.Decimal
	FeesUSD            decimal.Decimal

	TotalValueLocked    decimal.Decimal // in token units
	TotalValueLockedUSD decimal.Decimal

	TxCount int64

	ValidFrom int64
	ValidTo   *int64
}

// Factory is the singleton aggregate over all pools.
// Versioned the same way as Pool.
type Factory struct {
	Address   string
	PoolCount int64
	TxCount   int64

	TotalVolumeETH     decimal.Decimal
	TotalVolumeUSD     decimal.Decimal
	UntrackedVolumeUSD decimal.Decimal
	TotalFeesETH       decimal.Decimal
	TotalFeesUSD       decimal.Decimal

	TotalValueLockedETH decimal.Decimal
	TotalValueLockedUSD decimal.Decimal

	ValidFrom int64
	ValidTo   *int64
}
