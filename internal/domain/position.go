package domain

import "github.com/shopspring/decimal"

// Position is one NFT liquidity position. Created on the first Transfer
// (mint), mutated by liquidity and collect events, persists after closing.
// OwnerAddress == ZeroAddress marks a burned position, excluded from scoring.
type Position struct {
	PositionID      string
	OwnerAddress    string
	PositionAddress string // NFT router contract holding the position
	PoolAddress     string
	Token0Address   string
	Token1Address   string
	Token0Decimals  int
	Token1Decimals  int
	TickLower       int64
	TickUpper       int64

	Liquidity decimal.Decimal // never negative; paired increase/decrease deltas

	DepositedToken0 decimal.Decimal
	DepositedToken1 decimal.Decimal
	WithdrawnToken0 decimal.Decimal
	WithdrawnToken1 decimal.Decimal

	CollectedFeesToken0 decimal.Decimal
	CollectedFeesToken1 decimal.Decimal

	// LastUnclaimedFeesToken0/1 hold the uncollected fee level observed at
	// the last scored snapshot, so scoring only counts growth since then.
	LastUnclaimedFeesToken0 decimal.Decimal
	LastUnclaimedFeesToken1 decimal.Decimal

	LpPoints             decimal.Decimal
	TimeVestedValue      decimal.Decimal // in [0, 1]
	LastUpdatedTimestamp int64           // Unix timestamp in milliseconds
}

// Open reports whether the position still holds liquidity and belongs to a
// real owner.
func (p *Position) Open() bool {
	return p.OwnerAddress != ZeroAddress && !p.Liquidity.IsZero()
}

// Block is a recorded block header, used to resolve the closest block to a
// backfill day boundary. Corresponds to the blocks table in PostgreSQL.
type Block struct {
	Number    int64
	Timestamp int64 // Unix timestamp in milliseconds
}
