package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// LeaderboardStore is an in-memory implementation of storage.LeaderboardStore.
type LeaderboardStore struct {
	mu   sync.RWMutex
	data map[domain.Contest]map[string]*domain.LeaderboardEntry
}

// NewLeaderboardStore creates a new in-memory leaderboard store.
func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{data: make(map[domain.Contest]map[string]*domain.LeaderboardEntry)}
}

func (s *LeaderboardStore) AddPoints(_ context.Context, contest domain.Contest, userAddress string, points decimal.Decimal, at int64) error {
	if userAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	board := s.data[contest]
	if board == nil {
		board = make(map[string]*domain.LeaderboardEntry)
		s.data[contest] = board
	}
	entry, ok := board[userAddress]
	if !ok {
		entry = &domain.LeaderboardEntry{
			Contest:     contest,
			UserAddress: userAddress,
			Points:      decimal.Zero,
		}
		board[userAddress] = entry
	}
	entry.Points = entry.Points.Add(points)
	entry.UpdatedAt = at
	return nil
}

func (s *LeaderboardStore) Get(_ context.Context, contest domain.Contest, userAddress string) (*domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.data[contest][userAddress]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *LeaderboardStore) Top(_ context.Context, contest domain.Contest, limit int) ([]*domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LeaderboardEntry, 0, len(s.data[contest]))
	for _, entry := range s.data[contest] {
		cp := *entry
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Points.GreaterThan(result[j].Points)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
