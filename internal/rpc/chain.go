// Package rpc talks to a Starknet JSON-RPC node. The indexer uses it for
// contract reads that events alone cannot supply: token metadata, fee
// growth accumulators, position state and collect-fee simulation.
package rpc

import (
	"context"

	"github.com/shopspring/decimal"
)

// ChainReader defines the read-only chain interface.
type ChainReader interface {
	// Call invokes a view entrypoint on a contract at the latest block and
	// returns the raw felt words of the result.
	Call(ctx context.Context, contract, entrypoint string, calldata []string) ([]string, error)

	// BlockNumber returns the latest block number.
	BlockNumber(ctx context.Context) (int64, error)

	// Nonce returns the current nonce of an account contract as a felt.
	Nonce(ctx context.Context, account string) (string, error)

	// TokenMetadata reads name, symbol and decimals from an ERC-20 contract.
	TokenMetadata(ctx context.Context, token string) (*TokenMetadata, error)

	// FeeGrowthGlobals reads both fee growth accumulators from a pool
	// contract, as decimal strings.
	FeeGrowthGlobals(ctx context.Context, pool string) (string, string, error)

	// PositionInfo reads the token pair, tick range and liquidity of a
	// router position.
	PositionInfo(ctx context.Context, positionID uint64) (*PositionInfo, error)

	// SimulateCollect simulates a collect transaction for the position and
	// returns the uncollected fee amounts in raw token units.
	SimulateCollect(ctx context.Context, account string, positionID uint64) (*CollectResult, error)
}

// TokenMetadata is the on-chain ERC-20 descriptor.
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals int
}

// PositionInfo mirrors the router's get_position view.
type PositionInfo struct {
	Token0    string
	Token1    string
	FeeTier   int64
	TickLower int64
	TickUpper int64
	Liquidity decimal.Decimal
}

// CollectResult is the outcome of a simulated collect call, raw token units.
type CollectResult struct {
	Amount0 decimal.Decimal
	Amount1 decimal.Decimal
}
