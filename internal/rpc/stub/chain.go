// Package stub provides an in-memory ChainReader for tests.
package stub

import (
	"context"
	"errors"
	"fmt"

	"starkdex-indexer/internal/rpc"
)

// ErrNotFound is returned when the stub has no data for a key.
var ErrNotFound = errors.New("not found")

// ChainReader implements rpc.ChainReader for testing.
type ChainReader struct {
	Tokens      map[string]*rpc.TokenMetadata
	FeeGrowth   map[string][2]string // pool -> (fg0, fg1)
	Positions   map[uint64]*rpc.PositionInfo
	Collects    map[uint64]*rpc.CollectResult
	CallResults map[string][]string // contract|entrypoint -> words
	Block       int64
	Nonces      map[string]string

	// CollectErr, when set, fails every SimulateCollect.
	CollectErr error
}

// NewChainReader creates an empty stub.
func NewChainReader() *ChainReader {
	return &ChainReader{
		Tokens:      make(map[string]*rpc.TokenMetadata),
		FeeGrowth:   make(map[string][2]string),
		Positions:   make(map[uint64]*rpc.PositionInfo),
		Collects:    make(map[uint64]*rpc.CollectResult),
		CallResults: make(map[string][]string),
		Nonces:      make(map[string]string),
	}
}

// Call returns a canned result for contract|entrypoint.
func (c *ChainReader) Call(_ context.Context, contract, entrypoint string, _ []string) ([]string, error) {
	words, ok := c.CallResults[contract+"|"+entrypoint]
	if !ok {
		return nil, ErrNotFound
	}
	return words, nil
}

// BlockNumber returns the configured block height.
func (c *ChainReader) BlockNumber(_ context.Context) (int64, error) {
	return c.Block, nil
}

// Nonce returns the configured account nonce, defaulting to zero.
func (c *ChainReader) Nonce(_ context.Context, account string) (string, error) {
	if n, ok := c.Nonces[account]; ok {
		return n, nil
	}
	return "0x0", nil
}

// TokenMetadata returns canned token metadata.
func (c *ChainReader) TokenMetadata(_ context.Context, token string) (*rpc.TokenMetadata, error) {
	meta, ok := c.Tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	return meta, nil
}

// FeeGrowthGlobals returns canned fee growth accumulators.
func (c *ChainReader) FeeGrowthGlobals(_ context.Context, pool string) (string, string, error) {
	fg, ok := c.FeeGrowth[pool]
	if !ok {
		return "", "", ErrNotFound
	}
	return fg[0], fg[1], nil
}

// PositionInfo returns canned position state.
func (c *ChainReader) PositionInfo(_ context.Context, positionID uint64) (*rpc.PositionInfo, error) {
	p, ok := c.Positions[positionID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// SimulateCollect returns canned uncollected fees.
func (c *ChainReader) SimulateCollect(_ context.Context, _ string, positionID uint64) (*rpc.CollectResult, error) {
	if c.CollectErr != nil {
		return nil, c.CollectErr
	}
	r, ok := c.Collects[positionID]
	if !ok {
		return nil, fmt.Errorf("position %d: %w", positionID, ErrNotFound)
	}
	return r, nil
}
