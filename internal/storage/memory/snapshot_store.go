package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// PositionSnapshotStore is an in-memory implementation of
// storage.PositionSnapshotStore.
type PositionSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PositionSnapshot
}

// NewPositionSnapshotStore creates a new in-memory LP snapshot store.
func NewPositionSnapshotStore() *PositionSnapshotStore {
	return &PositionSnapshotStore{data: make(map[string]*domain.PositionSnapshot)}
}

func (s *PositionSnapshotStore) Insert(_ context.Context, snap *domain.PositionSnapshot) error {
	if snap == nil || snap.ID == "" || snap.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[snap.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *snap
	s.data[snap.ID] = &cp
	return nil
}

func (s *PositionSnapshotStore) Find(_ context.Context, positionID string, timestamp int64, event domain.EventType) (*domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snap := range s.data {
		if snap.PositionID == positionID && snap.Timestamp == timestamp && snap.Event == event {
			cp := *snap
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *PositionSnapshotStore) FindByBlock(_ context.Context, positionID string, block int64, event domain.EventType) (*domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snap := range s.data {
		if snap.PositionID == positionID && snap.Block == block && snap.Event == event {
			cp := *snap
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *PositionSnapshotStore) AddCollectedFees(_ context.Context, id string, fees0, fees1 decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	snap.CollectedFeesToken0 = snap.CollectedFeesToken0.Add(fees0)
	snap.CollectedFeesToken1 = snap.CollectedFeesToken1.Add(fees1)
	return nil
}

func (s *PositionSnapshotStore) GetPending(_ context.Context) ([]*domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionSnapshot
	for _, snap := range s.data {
		if !snap.Processed {
			cp := *snap
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *PositionSnapshotStore) GetLastScored(_ context.Context, positionID string) (*domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.PositionSnapshot
	for _, snap := range s.data {
		if snap.PositionID != positionID || !snap.Processed {
			continue
		}
		if best == nil || snap.Timestamp > best.Timestamp {
			best = snap
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *PositionSnapshotStore) MarkScored(_ context.Context, snap *domain.PositionSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[snap.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if existing.Processed {
		return storage.ErrInvalidInput
	}
	cp := *snap
	cp.Processed = true
	s.data[snap.ID] = &cp
	return nil
}

// VolumeSnapshotStore is an in-memory implementation of
// storage.VolumeSnapshotStore.
type VolumeSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.VolumeSnapshot
}

// NewVolumeSnapshotStore creates a new in-memory volume snapshot store.
func NewVolumeSnapshotStore() *VolumeSnapshotStore {
	return &VolumeSnapshotStore{data: make(map[string]*domain.VolumeSnapshot)}
}

func (s *VolumeSnapshotStore) Insert(_ context.Context, snap *domain.VolumeSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[snap.ID]; exists {
		return storage.ErrDuplicateKey
	}
	cp := *snap
	s.data[snap.ID] = &cp
	return nil
}

func (s *VolumeSnapshotStore) GetPending(_ context.Context) ([]*domain.VolumeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VolumeSnapshot
	for _, snap := range s.data {
		if !snap.Processed {
			cp := *snap
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *VolumeSnapshotStore) GetSince(_ context.Context, since int64) ([]*domain.VolumeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VolumeSnapshot
	for _, snap := range s.data {
		if snap.Timestamp >= since {
			cp := *snap
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SwapFeesUSD.LessThan(result[j].SwapFeesUSD)
	})
	return result, nil
}

func (s *VolumeSnapshotStore) MarkScored(_ context.Context, snap *domain.VolumeSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[snap.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if existing.Processed {
		return storage.ErrInvalidInput
	}
	cp := *snap
	cp.Processed = true
	s.data[snap.ID] = &cp
	return nil
}
