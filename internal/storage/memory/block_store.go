package memory

import (
	"context"
	"sync"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// BlockStore is an in-memory implementation of storage.BlockStore.
type BlockStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.Block
}

// NewBlockStore creates a new in-memory block store.
func NewBlockStore() *BlockStore {
	return &BlockStore{data: make(map[int64]*domain.Block)}
}

func (s *BlockStore) Insert(_ context.Context, b *domain.Block) error {
	if b == nil || b.Number < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.data[b.Number] = &cp
	return nil
}

func (s *BlockStore) Closest(_ context.Context, targetTimestamp int64) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Block
	var bestDiff int64
	for _, b := range s.data {
		diff := b.Timestamp - targetTimestamp
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff {
			best = b
			bestDiff = diff
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *BlockStore) Latest(_ context.Context) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Block
	for _, b := range s.data {
		if best == nil || b.Number > best.Number {
			best = b
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	cp := *best
	return &cp, nil
}
