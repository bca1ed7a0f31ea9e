package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// PositionSnapshotStore implements storage.PositionSnapshotStore using
// PostgreSQL.
type PositionSnapshotStore struct {
	pool *Pool
}

// NewPositionSnapshotStore creates a new PositionSnapshotStore.
func NewPositionSnapshotStore(pool *Pool) *PositionSnapshotStore {
	return &PositionSnapshotStore{pool: pool}
}

var _ storage.PositionSnapshotStore = (*PositionSnapshotStore)(nil)

const positionSnapshotColumns = `
	id, position_id, owner_address, pool_address,
	liquidity::text, position_liquidity::text, timestamp, block, event,
	collected_fees_token0::text, collected_fees_token1::text,
	processed, current_fees_usd::text, lp_points::text,
	last_time_vested_value::text, current_time_vested_value::text,
	period_ms, pool_boost::text,
	last_unclaimed_fees_token0::text, last_unclaimed_fees_token1::text,
	current_unclaimed_fees_token0::text, current_unclaimed_fees_token1::text,
	token0_price::text, token1_price::text
`

func scanPositionSnapshot(row interface{ Scan(...any) error }) (*domain.PositionSnapshot, error) {
	var snap domain.PositionSnapshot
	var event string
	var liq, posLiq, coll0, coll1 string
	var feesUSD, points, lastVested, curVested, boost string
	var lastUnc0, lastUnc1, curUnc0, curUnc1, price0, price1 string
	if err := row.Scan(
		&snap.ID, &snap.PositionID, &snap.OwnerAddress, &snap.PoolAddress,
		&liq, &posLiq, &snap.Timestamp, &snap.Block, &event,
		&coll0, &coll1,
		&snap.Processed, &feesUSD, &points,
		&lastVested, &curVested,
		&snap.PeriodMs, &boost,
		&lastUnc0, &lastUnc1, &curUnc0, &curUnc1,
		&price0, &price1,
	); err != nil {
		return nil, err
	}
	snap.Event = domain.EventType(event)

	p := &numParser{}
	snap.Liquidity = p.parse(liq)
	snap.PositionLiquidity = p.parse(posLiq)
	snap.CollectedFeesToken0 = p.parse(coll0)
	snap.CollectedFeesToken1 = p.parse(coll1)
	snap.CurrentFeesUSD = p.parse(feesUSD)
	snap.LpPoints = p.parse(points)
	snap.LastTimeVestedValue = p.parse(lastVested)
	snap.CurrentTimeVestedValue = p.parse(curVested)
	snap.PoolBoost = p.parse(boost)
	snap.LastUnclaimedFeesToken0 = p.parse(lastUnc0)
	snap.LastUnclaimedFeesToken1 = p.parse(lastUnc1)
	snap.CurrentUnclaimedFees0 = p.parse(curUnc0)
	snap.CurrentUnclaimedFees1 = p.parse(curUnc1)
	snap.Token0Price = p.parse(price0)
	snap.Token1Price = p.parse(price1)
	return &snap, p.err
}

// Insert adds a pending snapshot.
func (s *PositionSnapshotStore) Insert(ctx context.Context, snap *domain.PositionSnapshot) error {
	query := `
		INSERT INTO position_snapshots (
			id, position_id, owner_address, pool_address,
			liquidity, position_liquidity, timestamp, block, event,
			collected_fees_token0, collected_fees_token1, processed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.pool.Exec(ctx, query,
		snap.ID, snap.PositionID, snap.OwnerAddress, snap.PoolAddress,
		num(snap.Liquidity), num(snap.PositionLiquidity),
		snap.Timestamp, snap.Block, string(snap.Event),
		num(snap.CollectedFeesToken0), num(snap.CollectedFeesToken1), snap.Processed,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position snapshot: %w", err)
	}
	return nil
}

// Find retrieves the snapshot matching (positionID, timestamp, event).
func (s *PositionSnapshotStore) Find(ctx context.Context, positionID string, timestamp int64, event domain.EventType) (*domain.PositionSnapshot, error) {
	query := `
		SELECT ` + positionSnapshotColumns + `
		FROM position_snapshots
		WHERE position_id = $1 AND timestamp = $2 AND event = $3
	`
	snap, err := scanPositionSnapshot(s.pool.QueryRow(ctx, query, positionID, timestamp, string(event)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find position snapshot: %w", err)
	}
	return snap, nil
}

// FindByBlock retrieves the snapshot matching (positionID, block, event).
func (s *PositionSnapshotStore) FindByBlock(ctx context.Context, positionID string, block int64, event domain.EventType) (*domain.PositionSnapshot, error) {
	query := `
		SELECT ` + positionSnapshotColumns + `
		FROM position_snapshots
		WHERE position_id = $1 AND block = $2 AND event = $3
	`
	snap, err := scanPositionSnapshot(s.pool.QueryRow(ctx, query, positionID, block, string(event)))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find position snapshot by block: %w", err)
	}
	return snap, nil
}

// AddCollectedFees increments the collected-fee fields of a snapshot.
func (s *PositionSnapshotStore) AddCollectedFees(ctx context.Context, id string, fees0, fees1 decimal.Decimal) error {
	query := `
		UPDATE position_snapshots SET
			collected_fees_token0 = collected_fees_token0 + $2::numeric,
			collected_fees_token1 = collected_fees_token1 + $3::numeric
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, query, id, num(fees0), num(fees1))
	if err != nil {
		return fmt.Errorf("add collected fees: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetPending retrieves unscored snapshots ordered by timestamp.
func (s *PositionSnapshotStore) GetPending(ctx context.Context) ([]*domain.PositionSnapshot, error) {
	query := `
		SELECT ` + positionSnapshotColumns + `
		FROM position_snapshots
		WHERE NOT processed
		ORDER BY timestamp ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get pending position snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.PositionSnapshot
	for rows.Next() {
		snap, err := scanPositionSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// GetLastScored retrieves the most recently scored snapshot for a position.
func (s *PositionSnapshotStore) GetLastScored(ctx context.Context, positionID string) (*domain.PositionSnapshot, error) {
	query := `
		SELECT ` + positionSnapshotColumns + `
		FROM position_snapshots
		WHERE position_id = $1 AND processed
		ORDER BY timestamp DESC
		LIMIT 1
	`
	snap, err := scanPositionSnapshot(s.pool.QueryRow(ctx, query, positionID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get last scored snapshot: %w", err)
	}
	return snap, nil
}

// MarkScored replaces the snapshot with its scored form and flips Processed.
// The processed guard in the WHERE clause makes double scoring impossible.
func (s *PositionSnapshotStore) MarkScored(ctx context.Context, snap *domain.PositionSnapshot) error {
	query := `
		UPDATE position_snapshots SET
			processed = TRUE,
			current_fees_usd = $2,
			lp_points = $3,
			last_time_vested_value = $4,
			current_time_vested_value = $5,
			period_ms = $6,
			pool_boost = $7,
			last_unclaimed_fees_token0 = $8,
			last_unclaimed_fees_token1 = $9,
			current_unclaimed_fees_token0 = $10,
			current_unclaimed_fees_token1 = $11,
			token0_price = $12,
			token1_price = $13
		WHERE id = $1 AND NOT processed
	`
	tag, err := s.pool.Exec(ctx, query,
		snap.ID,
		num(snap.CurrentFeesUSD), num(snap.LpPoints),
		num(snap.LastTimeVestedValue), num(snap.CurrentTimeVestedValue),
		snap.PeriodMs, num(snap.PoolBoost),
		num(snap.LastUnclaimedFeesToken0), num(snap.LastUnclaimedFeesToken1),
		num(snap.CurrentUnclaimedFees0), num(snap.CurrentUnclaimedFees1),
		num(snap.Token0Price), num(snap.Token1Price),
	)
	if err != nil {
		return fmt.Errorf("mark snapshot scored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInvalidInput
	}
	return nil
}

// VolumeSnapshotStore implements storage.VolumeSnapshotStore using PostgreSQL.
type VolumeSnapshotStore struct {
	pool *Pool
}

// NewVolumeSnapshotStore creates a new VolumeSnapshotStore.
func NewVolumeSnapshotStore(pool *Pool) *VolumeSnapshotStore {
	return &VolumeSnapshotStore{pool: pool}
}

var _ storage.VolumeSnapshotStore = (*VolumeSnapshotStore)(nil)

const volumeSnapshotColumns = `
	id, owner_address, swap_fees_usd::text, timestamp,
	processed, sybil_multiplier, early_multiplier, volume_points::text
`

func scanVolumeSnapshot(row interface{ Scan(...any) error }) (*domain.VolumeSnapshot, error) {
	var snap domain.VolumeSnapshot
	var fees, points string
	if err := row.Scan(
		&snap.ID, &snap.OwnerAddress, &fees, &snap.Timestamp,
		&snap.Processed, &snap.SybilMultiplier, &snap.EarlyMultiplier, &points,
	); err != nil {
		return nil, err
	}

	p := &numParser{}
	snap.SwapFeesUSD = p.parse(fees)
	snap.VolumePoints = p.parse(points)
	return &snap, p.err
}

// Insert adds a pending snapshot.
func (s *VolumeSnapshotStore) Insert(ctx context.Context, snap *domain.VolumeSnapshot) error {
	query := `
		INSERT INTO volume_snapshots (
			id, owner_address, swap_fees_usd, timestamp, processed
		) VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query,
		snap.ID, snap.OwnerAddress, num(snap.SwapFeesUSD), snap.Timestamp, snap.Processed,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert volume snapshot: %w", err)
	}
	return nil
}

// GetPending retrieves unscored snapshots ordered by timestamp.
func (s *VolumeSnapshotStore) GetPending(ctx context.Context) ([]*domain.VolumeSnapshot, error) {
	query := `
		SELECT ` + volumeSnapshotColumns + `
		FROM volume_snapshots
		WHERE NOT processed
		ORDER BY timestamp ASC
	`
	return s.queryVolumeSnapshots(ctx, query)
}

// GetSince retrieves the percentile window, ordered by fee ascending.
func (s *VolumeSnapshotStore) GetSince(ctx context.Context, since int64) ([]*domain.VolumeSnapshot, error) {
	query := `
		SELECT ` + volumeSnapshotColumns + `
		FROM volume_snapshots
		WHERE timestamp >= $1
		ORDER BY swap_fees_usd ASC
	`
	return s.queryVolumeSnapshots(ctx, query, since)
}

// MarkScored replaces the snapshot with its scored form and flips Processed.
func (s *VolumeSnapshotStore) MarkScored(ctx context.Context, snap *domain.VolumeSnapshot) error {
	query := `
		UPDATE volume_snapshots SET
			processed = TRUE,
			sybil_multiplier = $2,
			early_multiplier = $3,
			volume_points = $4
		WHERE id = $1 AND NOT processed
	`
	tag, err := s.pool.Exec(ctx, query,
		snap.ID, snap.SybilMultiplier, snap.EarlyMultiplier, num(snap.VolumePoints),
	)
	if err != nil {
		return fmt.Errorf("mark volume snapshot scored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrInvalidInput
	}
	return nil
}

func (s *VolumeSnapshotStore) queryVolumeSnapshots(ctx context.Context, query string, args ...any) ([]*domain.VolumeSnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query volume snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.VolumeSnapshot
	for rows.Next() {
		snap, err := scanVolumeSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan volume snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
