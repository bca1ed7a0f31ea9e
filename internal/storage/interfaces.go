package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
)

// Versioned entity stores (Factory/Pool/Token) follow cursor-range
// versioning: versions are appended, never deleted; exactly one version per
// natural key has ValidTo == nil and all reads/writes below address only that
// open version. Supersede closes the open version and appends the next one.
// Update and Supersede return ErrVersionClosed when no open version exists.

// FactoryStore provides access to the factory singleton.
type FactoryStore interface {
	// GetLatest retrieves the open factory version. Returns ErrNotFound if
	// the factory was never created.
	GetLatest(ctx context.Context) (*domain.Factory, error)

	// Insert appends a new open version. Returns ErrDuplicateKey if an open
	// version already exists.
	Insert(ctx context.Context, f *domain.Factory) error

	// Update overwrites the open version's fields in place.
	Update(ctx context.Context, f *domain.Factory) error
}

// PoolStore provides access to versioned pool documents.
type PoolStore interface {
	// GetLatest retrieves the open version for an address.
	GetLatest(ctx context.Context, poolAddress string) (*domain.Pool, error)

	// Insert appends a new open version for a new pool.
	Insert(ctx context.Context, p *domain.Pool) error

	// Update overwrites the open version's fields in place.
	Update(ctx context.Context, p *domain.Pool) error

	// Supersede closes the open version at the given block and appends next
	// as the new open version.
	Supersede(ctx context.Context, poolAddress string, atBlock int64, next *domain.Pool) error

	// GetByToken retrieves the open versions of all pools containing the
	// token on either side, ordered by pool address ASC. Ordering matters:
	// the pricing oracle's first-candidate seeding depends on it.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.Pool, error)
}

// TokenStore provides access to versioned token documents.
type TokenStore interface {
	// GetLatest retrieves the open version for an address.
	GetLatest(ctx context.Context, tokenAddress string) (*domain.Token, error)

	// Insert appends a new open version for a new token.
	Insert(ctx context.Context, t *domain.Token) error

	// Update overwrites the open version's fields in place.
	Update(ctx context.Context, t *domain.Token) error
}

// PositionStore provides access to NFT positions.
type PositionStore interface {
	// Get retrieves a position by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, positionID string) (*domain.Position, error)

	// Upsert inserts or replaces a position.
	Upsert(ctx context.Context, p *domain.Position) error

	// GetOpen retrieves all positions with nonzero liquidity and a nonzero
	// owner, ordered by position id.
	GetOpen(ctx context.Context) ([]*domain.Position, error)

	// GetAll retrieves every position, ordered by position id.
	GetAll(ctx context.Context) ([]*domain.Position, error)
}

// RawEventStore provides access to the staged raw event log.
type RawEventStore interface {
	// Insert adds a staged event. Returns ErrDuplicateKey on id collision.
	Insert(ctx context.Context, e *domain.RawEvent) error

	// GetUnprocessed retrieves events with Processed != true ordered by
	// (block ASC, timestamp ASC, event index ASC).
	GetUnprocessed(ctx context.Context) ([]*domain.RawEvent, error)

	// MarkProcessed sets Processed on all ids in one commit.
	MarkProcessed(ctx context.Context, ids []string) error
}

// PoolBucketStore provides access to pool hour/day buckets.
type PoolBucketStore interface {
	// Get retrieves a bucket. Returns ErrNotFound if not exists.
	Get(ctx context.Context, poolAddress string, intervalSeconds, bucketID int64) (*domain.PoolBucket, error)

	// Upsert inserts or replaces a bucket document.
	Upsert(ctx context.Context, b *domain.PoolBucket) error
}

// TokenBucketStore provides access to token hour/day buckets.
type TokenBucketStore interface {
	Get(ctx context.Context, tokenAddress string, intervalSeconds, bucketID int64) (*domain.TokenBucket, error)
	Upsert(ctx context.Context, b *domain.TokenBucket) error

	// GetLatestPriced retrieves the most recent bucket with bucket id <= the
	// given id and a nonzero PriceUSD. Returns ErrNotFound if none.
	GetLatestPriced(ctx context.Context, tokenAddress string, intervalSeconds, bucketID int64) (*domain.TokenBucket, error)
}

// FactoryBucketStore provides access to factory hour/day buckets.
type FactoryBucketStore interface {
	Get(ctx context.Context, intervalSeconds, bucketID int64) (*domain.FactoryBucket, error)
	Upsert(ctx context.Context, b *domain.FactoryBucket) error
}

// PositionSnapshotStore provides access to the LP scoring ledger.
type PositionSnapshotStore interface {
	// Insert adds a pending snapshot. Returns ErrDuplicateKey on id collision.
	Insert(ctx context.Context, s *domain.PositionSnapshot) error

	// Find retrieves the snapshot matching (positionID, timestamp, event),
	// or ErrNotFound.
	Find(ctx context.Context, positionID string, timestamp int64, event domain.EventType) (*domain.PositionSnapshot, error)

	// FindByBlock retrieves the snapshot matching (positionID, block, event),
	// or ErrNotFound.
	FindByBlock(ctx context.Context, positionID string, block int64, event domain.EventType) (*domain.PositionSnapshot, error)

	// AddCollectedFees increments the collected-fee fields of a snapshot.
	AddCollectedFees(ctx context.Context, id string, fees0, fees1 decimal.Decimal) error

	// GetPending retrieves unscored snapshots ordered by timestamp ASC.
	GetPending(ctx context.Context) ([]*domain.PositionSnapshot, error)

	// GetLastScored retrieves the most recently scored snapshot for a
	// position, or ErrNotFound.
	GetLastScored(ctx context.Context, positionID string) (*domain.PositionSnapshot, error)

	// MarkScored replaces the snapshot with its scored form and flips
	// Processed. Returns ErrInvalidInput if it was already scored.
	MarkScored(ctx context.Context, s *domain.PositionSnapshot) error
}

// VolumeSnapshotStore provides access to the volume scoring ledger.
type VolumeSnapshotStore interface {
	// Insert adds a pending snapshot.
	Insert(ctx context.Context, s *domain.VolumeSnapshot) error

	// GetPending retrieves unscored snapshots ordered by timestamp ASC.
	GetPending(ctx context.Context) ([]*domain.VolumeSnapshot, error)

	// GetSince retrieves all snapshots with Timestamp >= since ordered by
	// fee ASC (the percentile window).
	GetSince(ctx context.Context, since int64) ([]*domain.VolumeSnapshot, error)

	// MarkScored replaces the snapshot with its scored form and flips
	// Processed.
	MarkScored(ctx context.Context, s *domain.VolumeSnapshot) error
}

// LeaderboardStore provides access to per-owner contest totals.
type LeaderboardStore interface {
	// AddPoints upsert-increments an owner's total for a contest.
	AddPoints(ctx context.Context, contest domain.Contest, userAddress string, points decimal.Decimal, at int64) error

	// Get retrieves an owner's entry, or ErrNotFound.
	Get(ctx context.Context, contest domain.Contest, userAddress string) (*domain.LeaderboardEntry, error)

	// Top retrieves the highest entries for a contest, ordered by points DESC.
	Top(ctx context.Context, contest domain.Contest, limit int) ([]*domain.LeaderboardEntry, error)
}

// BlockStore provides access to recorded block headers.
type BlockStore interface {
	// Insert records a block header. Duplicate numbers are overwritten.
	Insert(ctx context.Context, b *domain.Block) error

	// Closest retrieves the block whose timestamp is nearest to target.
	// Returns ErrNotFound when no blocks are recorded.
	Closest(ctx context.Context, targetTimestamp int64) (*domain.Block, error)

	// Latest retrieves the highest recorded block, or ErrNotFound.
	Latest(ctx context.Context) (*domain.Block, error)
}
