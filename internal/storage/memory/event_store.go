package memory

import (
	"context"
	"sort"
	"sync"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// RawEventStore is an in-memory implementation of storage.RawEventStore.
type RawEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RawEvent
}

// NewRawEventStore creates a new in-memory raw event store.
func NewRawEventStore() *RawEventStore {
	return &RawEventStore{data: make(map[string]*domain.RawEvent)}
}

func (s *RawEventStore) Insert(_ context.Context, e *domain.RawEvent) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *e
	s.data[e.ID] = &cp
	return nil
}

func (s *RawEventStore) GetUnprocessed(_ context.Context) ([]*domain.RawEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawEvent
	for _, e := range s.data {
		if !e.Processed {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Block != b.Block {
			return a.Block < b.Block
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.EventIndex < b.EventIndex
	})
	return result, nil
}

func (s *RawEventStore) MarkProcessed(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if e, ok := s.data[id]; ok {
			e.Processed = true
		}
	}
	return nil
}
