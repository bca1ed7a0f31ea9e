package memory

import (
	"context"
	"fmt"
	"sync"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

func bucketKey(entity string, intervalSeconds, bucketID int64) string {
	return fmt.Sprintf("%s|%d|%d", entity, intervalSeconds, bucketID)
}

// PoolBucketStore is an in-memory implementation of storage.PoolBucketStore.
type PoolBucketStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PoolBucket
}

// NewPoolBucketStore creates a new in-memory pool bucket store.
func NewPoolBucketStore() *PoolBucketStore {
	return &PoolBucketStore{data: make(map[string]*domain.PoolBucket)}
}

func (s *PoolBucketStore) Get(_ context.Context, poolAddress string, intervalSeconds, bucketID int64) (*domain.PoolBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data[bucketKey(poolAddress, intervalSeconds, bucketID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *PoolBucketStore) Upsert(_ context.Context, b *domain.PoolBucket) error {
	if b == nil || b.PoolAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.data[bucketKey(b.PoolAddress, b.IntervalSeconds, b.BucketID)] = &cp
	return nil
}

// TokenBucketStore is an in-memory implementation of storage.TokenBucketStore.
type TokenBucketStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenBucket
}

// NewTokenBucketStore creates a new in-memory token bucket store.
func NewTokenBucketStore() *TokenBucketStore {
	return &TokenBucketStore{data: make(map[string]*domain.TokenBucket)}
}

func (s *TokenBucketStore) Get(_ context.Context, tokenAddress string, intervalSeconds, bucketID int64) (*domain.TokenBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data[bucketKey(tokenAddress, intervalSeconds, bucketID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *TokenBucketStore) Upsert(_ context.Context, b *domain.TokenBucket) error {
	if b == nil || b.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.data[bucketKey(b.TokenAddress, b.IntervalSeconds, b.BucketID)] = &cp
	return nil
}

func (s *TokenBucketStore) GetLatestPriced(_ context.Context, tokenAddress string, intervalSeconds, bucketID int64) (*domain.TokenBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.TokenBucket
	for _, b := range s.data {
		if b.TokenAddress != tokenAddress || b.IntervalSeconds != intervalSeconds {
			continue
		}
		if b.BucketID > bucketID || b.PriceUSD.IsZero() {
			continue
		}
		if best == nil || b.BucketID > best.BucketID {
			best = b
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// FactoryBucketStore is an in-memory implementation of storage.FactoryBucketStore.
type FactoryBucketStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FactoryBucket
}

// NewFactoryBucketStore creates a new in-memory factory bucket store.
func NewFactoryBucketStore() *FactoryBucketStore {
	return &FactoryBucketStore{data: make(map[string]*domain.FactoryBucket)}
}

func (s *FactoryBucketStore) Get(_ context.Context, intervalSeconds, bucketID int64) (*domain.FactoryBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.data[bucketKey("factory", intervalSeconds, bucketID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *FactoryBucketStore) Upsert(_ context.Context, b *domain.FactoryBucket) error {
	if b == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *b
	s.data[bucketKey("factory", b.IntervalSeconds, b.BucketID)] = &cp
	return nil
}
