package postgres

import (
	"context"
	"fmt"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// BlockStore implements storage.BlockStore using PostgreSQL.
type BlockStore struct {
	pool *Pool
}

// NewBlockStore creates a new BlockStore.
func NewBlockStore(pool *Pool) *BlockStore {
	return &BlockStore{pool: pool}
}

var _ storage.BlockStore = (*BlockStore)(nil)

// Insert records a block header. Duplicate numbers are overwritten.
func (s *BlockStore) Insert(ctx context.Context, b *domain.Block) error {
	query := `
		INSERT INTO blocks (number, timestamp)
		VALUES ($1, $2)
		ON CONFLICT (number) DO UPDATE SET timestamp = EXCLUDED.timestamp
	`
	if _, err := s.pool.Exec(ctx, query, b.Number, b.Timestamp); err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// Closest retrieves the block whose timestamp is nearest to target.
func (s *BlockStore) Closest(ctx context.Context, targetTimestamp int64) (*domain.Block, error) {
	query := `
		SELECT number, timestamp
		FROM blocks
		ORDER BY abs(timestamp - $1) ASC, number ASC
		LIMIT 1
	`
	var b domain.Block
	err := s.pool.QueryRow(ctx, query, targetTimestamp).Scan(&b.Number, &b.Timestamp)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("closest block: %w", err)
	}
	return &b, nil
}

// Latest retrieves the highest recorded block.
func (s *BlockStore) Latest(ctx context.Context) (*domain.Block, error) {
	query := `SELECT number, timestamp FROM blocks ORDER BY number DESC LIMIT 1`

	var b domain.Block
	err := s.pool.QueryRow(ctx, query).Scan(&b.Number, &b.Timestamp)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("latest block: %w", err)
	}
	return &b, nil
}
