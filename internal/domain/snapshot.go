package domain

import "github.com/shopspring/decimal"

// PositionSnapshot is one append-only LP scoring opportunity: either tagged
// with a liquidity-changing event or inserted by the daily cron/backfill.
// Rows transition pending -> scored exactly once, guarded by Processed.
type PositionSnapshot struct {
	ID           string // uuid
	PositionID   string
	OwnerAddress string
	PoolAddress  string
	Liquidity    decimal.Decimal // liquidity delta of the tagged event, 0 for cron
	// PositionLiquidity is the position's liquidity when the snapshot was
	// created, before the tagged event's delta was applied.
	PositionLiquidity decimal.Decimal
	Timestamp         int64 // Unix milliseconds
	Block             int64
	Event             EventType // "" for cron/backfill rows

	// Fees collected between the previous snapshot and this one.
	CollectedFeesToken0 decimal.Decimal
	CollectedFeesToken1 decimal.Decimal

	// Populated by the scoring pass.
	Processed                 bool
	CurrentFeesUSD            decimal.Decimal
	LpPoints                  decimal.Decimal
	LastTimeVestedValue       decimal.Decimal
	CurrentTimeVestedValue    decimal.Decimal
	PeriodMs                  int64 // time since the position's last update
	PoolBoost                 decimal.Decimal
	LastUnclaimedFeesToken0   decimal.Decimal
	LastUnclaimedFeesToken1   decimal.Decimal
	CurrentUnclaimedFees0     decimal.Decimal
	CurrentUnclaimedFees1     decimal.Decimal
	Token0Price               decimal.Decimal
	Token1Price               decimal.Decimal
}

// VolumeSnapshot is one append-only volume scoring row, inserted per swap.
type VolumeSnapshot struct {
	ID           string // uuid
	OwnerAddress string // swap sender
	SwapFeesUSD  decimal.Decimal
	Timestamp    int64 // Unix milliseconds

	Processed       bool
	SybilMultiplier int // 0 or 1
	EarlyMultiplier int
	VolumePoints    decimal.Decimal
}

// Contest names the two leaderboards.
type Contest string

const (
	ContestLP     Contest = "lp"
	ContestVolume Contest = "volume"
)

// LeaderboardEntry is the per-owner running point total for one contest.
type LeaderboardEntry struct {
	Contest     Contest
	UserAddress string
	Points      decimal.Decimal
	UpdatedAt   int64 // Unix milliseconds
}
