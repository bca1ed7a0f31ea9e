package leaderboard

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/pricing"
	"starkdex-indexer/internal/rpc"
	"starkdex-indexer/internal/storage"
)

// SourceType keys a position custody kind in the registry.
type SourceType string

// SourceNFT is the router-held NFT position source.
const SourceNFT SourceType = "nft"

// PositionSource is the capability set the scoring pass needs from a
// position custody kind. Vault-style sources plug in beside the native NFT
// source through the registry.
type PositionSource interface {
	// LatestPosition retrieves the current position record.
	LatestPosition(ctx context.Context, positionID string) (*domain.Position, error)

	// UpdatePosition persists scoring-side position mutations.
	UpdatePosition(ctx context.Context, p *domain.Position) error

	// UncollectedFees returns the position's currently claimable fees in
	// token units (scaled by decimals).
	UncollectedFees(ctx context.Context, p *domain.Position) (fees0, fees1 decimal.Decimal, err error)
}

// Registry dispatches position sources by type.
type Registry struct {
	sources map[SourceType]PositionSource
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[SourceType]PositionSource)}
}

// Register installs a source under a type key, replacing any previous one.
func (r *Registry) Register(t SourceType, s PositionSource) {
	r.sources[t] = s
}

// Get returns the source for a type key.
func (r *Registry) Get(t SourceType) (PositionSource, error) {
	s, ok := r.sources[t]
	if !ok {
		return nil, fmt.Errorf("no position source registered for %q", t)
	}
	return s, nil
}

// NFTSource reads router-held NFT positions from the position store and
// their claimable fees from a simulated collect call.
type NFTSource struct {
	positions storage.PositionStore
	chain     rpc.ChainReader
}

// NewNFTSource creates the native NFT position source.
func NewNFTSource(positions storage.PositionStore, chain rpc.ChainReader) *NFTSource {
	return &NFTSource{positions: positions, chain: chain}
}

func (s *NFTSource) LatestPosition(ctx context.Context, positionID string) (*domain.Position, error) {
	return s.positions.Get(ctx, positionID)
}

func (s *NFTSource) UpdatePosition(ctx context.Context, p *domain.Position) error {
	return s.positions.Upsert(ctx, p)
}

// UncollectedFees simulates a max-amount collect from the owner's account
// and scales the two raw amounts by the position's token decimals.
func (s *NFTSource) UncollectedFees(ctx context.Context, p *domain.Position) (decimal.Decimal, decimal.Decimal, error) {
	id, err := strconv.ParseUint(p.PositionID, 10, 64)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("position id %q: %w", p.PositionID, err)
	}

	result, err := s.chain.SimulateCollect(ctx, p.OwnerAddress, id)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("simulate collect %s: %w", p.PositionID, err)
	}

	fees0 := pricing.AmountAfterDecimals(result.Amount0, p.Token0Decimals)
	fees1 := pricing.AmountAfterDecimals(result.Amount1, p.Token1Decimals)
	return fees0, fees1, nil
}
