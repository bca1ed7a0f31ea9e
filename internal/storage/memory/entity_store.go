// Package memory provides in-memory store implementations used by tests and
// the one-shot replay command.
package memory

import (
	"context"
	"sort"
	"sync"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// FactoryStore is an in-memory implementation of storage.FactoryStore.
// Versions are appended; the last element with ValidTo == nil is open.
type FactoryStore struct {
	mu       sync.RWMutex
	versions []*domain.Factory
}

// NewFactoryStore creates a new in-memory factory store.
func NewFactoryStore() *FactoryStore {
	return &FactoryStore{}
}

func (s *FactoryStore) GetLatest(_ context.Context) (*domain.Factory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.versions) - 1; i >= 0; i-- {
		if s.versions[i].ValidTo == nil {
			cp := *s.versions[i]
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *FactoryStore) Insert(_ context.Context, f *domain.Factory) error {
	if f == nil || f.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.versions {
		if v.ValidTo == nil {
			return storage.ErrDuplicateKey
		}
	}
	cp := *f
	cp.ValidTo = nil
	s.versions = append(s.versions, &cp)
	return nil
}

func (s *FactoryStore) Update(_ context.Context, f *domain.Factory) error {
	if f == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.versions) - 1; i >= 0; i-- {
		if s.versions[i].ValidTo == nil {
			cp := *f
			cp.ValidFrom = s.versions[i].ValidFrom
			cp.ValidTo = nil
			s.versions[i] = &cp
			return nil
		}
	}
	return storage.ErrVersionClosed
}

// PoolStore is an in-memory implementation of storage.PoolStore.
type PoolStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Pool // address -> version log
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{data: make(map[string][]*domain.Pool)}
}

func openPool(versions []*domain.Pool) *domain.Pool {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].ValidTo == nil {
			return versions[i]
		}
	}
	return nil
}

func (s *PoolStore) GetLatest(_ context.Context, poolAddress string) (*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := openPool(s.data[poolAddress]); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, storage.ErrNotFound
}

func (s *PoolStore) Insert(_ context.Context, p *domain.Pool) error {
	if p == nil || p.PoolAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if openPool(s.data[p.PoolAddress]) != nil {
		return storage.ErrDuplicateKey
	}
	cp := *p
	cp.ValidTo = nil
	s.data[p.PoolAddress] = append(s.data[p.PoolAddress], &cp)
	return nil
}

func (s *PoolStore) Update(_ context.Context, p *domain.Pool) error {
	if p == nil || p.PoolAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.data[p.PoolAddress]
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].ValidTo == nil {
			cp := *p
			cp.ValidFrom = versions[i].ValidFrom
			cp.ValidTo = nil
			versions[i] = &cp
			return nil
		}
	}
	return storage.ErrVersionClosed
}

func (s *PoolStore) Supersede(_ context.Context, poolAddress string, atBlock int64, next *domain.Pool) error {
	if next == nil || poolAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := openPool(s.data[poolAddress])
	if cur == nil {
		return storage.ErrVersionClosed
	}
	closed := atBlock
	cur.ValidTo = &closed

	cp := *next
	cp.ValidFrom = atBlock
	cp.ValidTo = nil
	s.data[poolAddress] = append(s.data[poolAddress], &cp)
	return nil
}

func (s *PoolStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Pool
	for _, versions := range s.data {
		p := openPool(versions)
		if p == nil {
			continue
		}
		if p.Token0 == tokenAddress || p.Token1 == tokenAddress {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PoolAddress < result[j].PoolAddress })
	return result, nil
}

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{data: make(map[string][]*domain.Token)}
}

func (s *TokenStore) GetLatest(_ context.Context, tokenAddress string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.data[tokenAddress]
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].ValidTo == nil {
			cp := *versions[i]
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.data[t.TokenAddress] {
		if v.ValidTo == nil {
			return storage.ErrDuplicateKey
		}
	}
	cp := *t
	cp.ValidTo = nil
	s.data[t.TokenAddress] = append(s.data[t.TokenAddress], &cp)
	return nil
}

func (s *TokenStore) Update(_ context.Context, t *domain.Token) error {
	if t == nil || t.TokenAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.data[t.TokenAddress]
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].ValidTo == nil {
			cp := *t
			cp.ValidFrom = versions[i].ValidFrom
			cp.ValidTo = nil
			versions[i] = &cp
			return nil
		}
	}
	return storage.ErrVersionClosed
}
