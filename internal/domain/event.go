package domain

import "github.com/shopspring/decimal"

// EventType identifies a raw on-chain event kind.
type EventType string

// Event type constants. Mint/Burn fire on the pool contract,
// IncreaseLiquidity/DecreaseLiquidity/Collect/Transfer on the NFT router.
const (
	EventInitialize        EventType = "Initialize"
	EventMint              EventType = "Mint"
	EventBurn              EventType = "Burn"
	EventSwap              EventType = "Swap"
	EventCollect           EventType = "Collect"
	EventTransfer          EventType = "Transfer"
	EventIncreaseLiquidity EventType = "IncreaseLiquidity"
	EventDecreaseLiquidity EventType = "DecreaseLiquidity"
)

// RawEvent is one staged on-chain event produced by the chain listener.
// Exactly one payload pointer is set, matching Type.
// Corresponds to the raw_events table in PostgreSQL.
type RawEvent struct {
	ID          string    // unique record id
	Type        EventType // dispatch key
	PoolAddress string    // subject pool (pool events)
	PositionID  string    // subject position (position events)
	Block       int64     // block number
	TxHash      string    // transaction hash
	EventIndex  int       // index of event within transaction
	Timestamp   int64     // Unix timestamp in milliseconds
	Processed   bool      // set true only after the full batch applied

	Initialize *InitializePayload
	Mint       *LiquidityPayload
	Burn       *LiquidityPayload
	Swap       *SwapPayload
	Collect    *CollectPayload
	Transfer   *TransferPayload
}

// InitializePayload seeds a pool's price state.
type InitializePayload struct {
	SqrtPriceX96 decimal.Decimal
	Tick         int64
}

// LiquidityPayload carries a Mint/Burn (or Increase/DecreaseLiquidity) delta.
// Amounts are raw integer token units, unscaled by decimals.
type LiquidityPayload struct {
	Owner     string
	TickLower int64
	TickUpper int64
	Amount    decimal.Decimal // liquidity delta
	Amount0   decimal.Decimal
	Amount1   decimal.Decimal
}

// SwapPayload carries a swap with signed raw amounts and the post-swap
// pool state.
type SwapPayload struct {
	Sender       string
	Amount0      decimal.Decimal // signed, raw units
	Amount1      decimal.Decimal // signed, raw units
	SqrtPriceX96 decimal.Decimal
	Liquidity    decimal.Decimal
	Tick         int64
}

// CollectPayload carries fee amounts claimed from a position.
type CollectPayload struct {
	Recipient string
	Amount0   decimal.Decimal // raw units
	Amount1   decimal.Decimal // raw units
}

// TransferPayload carries NFT position ownership changes. A transfer to the
// zero address burns the position.
type TransferPayload struct {
	From string
	To   string
}

// SubjectKey returns the entity key the event applies to.
func (e *RawEvent) SubjectKey() string {
	if e.PositionID != "" {
		return e.PositionID
	}
	return e.PoolAddress
}
