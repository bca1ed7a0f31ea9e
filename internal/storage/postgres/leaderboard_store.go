package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// LeaderboardStore implements storage.LeaderboardStore using PostgreSQL.
type LeaderboardStore struct {
	pool *Pool
}

// NewLeaderboardStore creates a new LeaderboardStore.
func NewLeaderboardStore(pool *Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

var _ storage.LeaderboardStore = (*LeaderboardStore)(nil)

// AddPoints upsert-increments an owner's total for a contest.
func (s *LeaderboardStore) AddPoints(ctx context.Context, contest domain.Contest, userAddress string, points decimal.Decimal, at int64) error {
	query := `
		INSERT INTO leaderboard (contest, user_address, points, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contest, user_address) DO UPDATE SET
			points = leaderboard.points + EXCLUDED.points,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query, string(contest), userAddress, num(points), at)
	if err != nil {
		return fmt.Errorf("add leaderboard points: %w", err)
	}
	return nil
}

// Get retrieves an owner's entry.
func (s *LeaderboardStore) Get(ctx context.Context, contest domain.Contest, userAddress string) (*domain.LeaderboardEntry, error) {
	query := `
		SELECT contest, user_address, points::text, updated_at
		FROM leaderboard
		WHERE contest = $1 AND user_address = $2
	`
	entry, err := scanLeaderboardEntry(s.pool.QueryRow(ctx, query, string(contest), userAddress))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get leaderboard entry: %w", err)
	}
	return entry, nil
}

// Top retrieves the highest entries for a contest.
func (s *LeaderboardStore) Top(ctx context.Context, contest domain.Contest, limit int) ([]*domain.LeaderboardEntry, error) {
	query := `
		SELECT contest, user_address, points::text, updated_at
		FROM leaderboard
		WHERE contest = $1
		ORDER BY points DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, string(contest), limit)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard top: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LeaderboardEntry
	for rows.Next() {
		entry, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanLeaderboardEntry(row interface{ Scan(...any) error }) (*domain.LeaderboardEntry, error) {
	var entry domain.LeaderboardEntry
	var contest, points string
	if err := row.Scan(&contest, &entry.UserAddress, &points, &entry.UpdatedAt); err != nil {
		return nil, err
	}
	entry.Contest = domain.Contest(contest)

	p := &numParser{}
	entry.Points = p.parse(points)
	return &entry, p.err
}
