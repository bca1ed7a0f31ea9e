package postgres

import (
	"context"
	"fmt"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, owner_address, position_address, pool_address,
	token0_address, token1_address, token0_decimals, token1_decimals,
	tick_lower, tick_upper, liquidity::text,
	deposited_token0::text, deposited_token1::text,
	withdrawn_token0::text, withdrawn_token1::text,
	collected_fees_token0::text, collected_fees_token1::text,
	last_unclaimed_fees_token0::text, last_unclaimed_fees_token1::text,
	lp_points::text, time_vested_value::text, last_updated_timestamp
`

func scanPosition(row interface{ Scan(...any) error }) (*domain.Position, error) {
	var pos domain.Position
	var liquidity, dep0, dep1, wd0, wd1 string
	var coll0, coll1, unc0, unc1, points, vested string
	if err := row.Scan(
		&pos.PositionID, &pos.OwnerAddress, &pos.PositionAddress, &pos.PoolAddress,
		&pos.Token0Address, &pos.Token1Address, &pos.Token0Decimals, &pos.Token1Decimals,
		&pos.TickLower, &pos.TickUpper, &liquidity,
		&dep0, &dep1, &wd0, &wd1,
		&coll0, &coll1, &unc0, &unc1,
		&points, &vested, &pos.LastUpdatedTimestamp,
	); err != nil {
		return nil, err
	}

	p := &numParser{}
	pos.Liquidity = p.parse(liquidity)
	pos.DepositedToken0 = p.parse(dep0)
	pos.DepositedToken1 = p.parse(dep1)
	pos.WithdrawnToken0 = p.parse(wd0)
	pos.WithdrawnToken1 = p.parse(wd1)
	pos.CollectedFeesToken0 = p.parse(coll0)
	pos.CollectedFeesToken1 = p.parse(coll1)
	pos.LastUnclaimedFeesToken0 = p.parse(unc0)
	pos.LastUnclaimedFeesToken1 = p.parse(unc1)
	pos.LpPoints = p.parse(points)
	pos.TimeVestedValue = p.parse(vested)
	return &pos, p.err
}

// Get retrieves a position by id.
func (s *PositionStore) Get(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`

	pos, err := scanPosition(s.pool.QueryRow(ctx, query, positionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position %s: %w", positionID, err)
	}
	return pos, nil
}

// Upsert inserts or replaces a position.
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO positions (
			position_id, owner_address, position_address, pool_address,
			token0_address, token1_address, token0_decimals, token1_decimals,
			tick_lower, tick_upper, liquidity,
			deposited_token0, deposited_token1,
			withdrawn_token0, withdrawn_token1,
			collected_fees_token0, collected_fees_token1,
			last_unclaimed_fees_token0, last_unclaimed_fees_token1,
			lp_points, time_vested_value, last_updated_timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (position_id) DO UPDATE SET
			owner_address = EXCLUDED.owner_address,
			position_address = EXCLUDED.position_address,
			pool_address = EXCLUDED.pool_address,
			token0_address = EXCLUDED.token0_address,
			token1_address = EXCLUDED.token1_address,
			token0_decimals = EXCLUDED.token0_decimals,
			token1_decimals = EXCLUDED.token1_decimals,
			tick_lower = EXCLUDED.tick_lower,
			tick_upper = EXCLUDED.tick_upper,
			liquidity = EXCLUDED.liquidity,
			deposited_token0 = EXCLUDED.deposited_token0,
			deposited_token1 = EXCLUDED.deposited_token1,
			withdrawn_token0 = EXCLUDED.withdrawn_token0,
			withdrawn_token1 = EXCLUDED.withdrawn_token1,
			collected_fees_token0 = EXCLUDED.collected_fees_token0,
			collected_fees_token1 = EXCLUDED.collected_fees_token1,
			last_unclaimed_fees_token0 = EXCLUDED.last_unclaimed_fees_token0,
			last_unclaimed_fees_token1 = EXCLUDED.last_unclaimed_fees_token1,
			lp_points = EXCLUDED.lp_points,
			time_vested_value = EXCLUDED.time_vested_value,
			last_updated_timestamp = EXCLUDED.last_updated_timestamp
	`
	_, err := s.pool.Exec(ctx, query,
		p.PositionID, p.OwnerAddress, p.PositionAddress, p.PoolAddress,
		p.Token0Address, p.Token1Address, p.Token0Decimals, p.Token1Decimals,
		p.TickLower, p.TickUpper, num(p.Liquidity),
		num(p.DepositedToken0), num(p.DepositedToken1),
		num(p.WithdrawnToken0), num(p.WithdrawnToken1),
		num(p.CollectedFeesToken0), num(p.CollectedFeesToken1),
		num(p.LastUnclaimedFeesToken0), num(p.LastUnclaimedFeesToken1),
		num(p.LpPoints), num(p.TimeVestedValue), p.LastUpdatedTimestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// GetOpen retrieves positions with nonzero liquidity and a real owner.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE liquidity <> 0 AND owner_address <> $1
		ORDER BY position_id ASC
	`
	return s.queryPositions(ctx, query, domain.ZeroAddress)
}

// GetAll retrieves every position.
func (s *PositionStore) GetAll(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions ORDER BY position_id ASC`
	return s.queryPositions(ctx, query)
}

func (s *PositionStore) queryPositions(ctx context.Context, query string, args ...any) ([]*domain.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}
