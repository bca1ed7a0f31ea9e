package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// numParser collects the first error while parsing a row's NUMERIC columns.
type numParser struct {
	err error
}

func (p *numParser) parse(s string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	d, err := parseNum(s)
	if err != nil {
		p.err = err
	}
	return d
}

// FactoryStore implements storage.FactoryStore using PostgreSQL.
type FactoryStore struct {
	pool *Pool
}

// NewFactoryStore creates a new FactoryStore.
func NewFactoryStore(pool *Pool) *FactoryStore {
	return &FactoryStore{pool: pool}
}

var _ storage.FactoryStore = (*FactoryStore)(nil)

const factoryColumns = `
	address, pool_count, tx_count,
	total_volume_eth::text, total_volume_usd::text, untracked_volume_usd::text,
	total_fees_eth::text, total_fees_usd::text,
	total_value_locked_eth::text, total_value_locked_usd::text,
	valid_from, valid_to
`

func scanFactory(row interface{ Scan(...any) error }) (*domain.Factory, error) {
	var f domain.Factory
	var volETH, volUSD, untracked, feesETH, feesUSD, tvlETH, tvlUSD string
	if err := row.Scan(
		&f.Address, &f.PoolCount, &f.TxCount,
		&volETH, &volUSD, &untracked, &feesETH, &feesUSD, &tvlETH, &tvlUSD,
		&f.ValidFrom, &f.ValidTo,
	); err != nil {
		return nil, err
	}

	p := &numParser{}
	f.TotalVolumeETH = p.parse(volETH)
	f.TotalVolumeUSD = p.parse(volUSD)
	f.UntrackedVolumeUSD = p.parse(untracked)
	f.TotalFeesETH = p.parse(feesETH)
	f.TotalFeesUSD = p.parse(feesUSD)
	f.TotalValueLockedETH = p.parse(tvlETH)
	f.TotalValueLockedUSD = p.parse(tvlUSD)
	return &f, p.err
}

// GetLatest retrieves the open factory version.
func (s *FactoryStore) GetLatest(ctx context.Context) (*domain.Factory, error) {
	query := `SELECT ` + factoryColumns + ` FROM factories WHERE valid_to IS NULL`

	f, err := scanFactory(s.pool.QueryRow(ctx, query))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get factory: %w", err)
	}
	return f, nil
}

// Insert appends a new open factory version.
func (s *FactoryStore) Insert(ctx context.Context, f *domain.Factory) error {
	query := `
		INSERT INTO factories (
			address, pool_count, tx_count,
			total_volume_eth, total_volume_usd, untracked_volume_usd,
			total_fees_eth, total_fees_usd,
			total_value_locked_eth, total_value_locked_usd,
			valid_from, valid_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL)
	`
	_, err := s.pool.Exec(ctx, query,
		f.Address, f.PoolCount, f.TxCount,
		num(f.TotalVolumeETH), num(f.TotalVolumeUSD), num(f.UntrackedVolumeUSD),
		num(f.TotalFeesETH), num(f.TotalFeesUSD),
		num(f.TotalValueLockedETH), num(f.TotalValueLockedUSD),
		f.ValidFrom,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert factory: %w", err)
	}
	return nil
}

// Update overwrites the open factory version.
func (s *FactoryStore) Update(ctx context.Context, f *domain.Factory) error {
	query := `
		UPDATE factories SET
			pool_count = $2, tx_count = $3,
			total_volume_eth = $4, total_volume_usd = $5, untracked_volume_usd = $6,
			total_fees_eth = $7, total_fees_usd = $8,
			total_value_locked_eth = $9, total_value_locked_usd = $10
		WHERE address = $1 AND valid_to IS NULL
	`
	tag, err := s.pool.Exec(ctx, query,
		f.Address, f.PoolCount, f.TxCount,
		num(f.TotalVolumeETH), num(f.TotalVolumeUSD), num(f.UntrackedVolumeUSD),
		num(f.TotalFeesETH), num(f.TotalFeesUSD),
		num(f.TotalValueLockedETH), num(f.TotalValueLockedUSD),
	)
	if err != nil {
		return fmt.Errorf("update factory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrVersionClosed
	}
	return nil
}

// PoolStore implements storage.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *Pool
}

// NewPoolStore creates a new PoolStore.
func NewPoolStore(pool *Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

var _ storage.PoolStore = (*PoolStore)(nil)

const poolColumns = `
	pool_address, token0, token1, fee_tier,
	sqrt_price_x96::text, tick, liquidity::text, token0_price::text, token1_price::text,
	total_value_locked_token0::text, total_value_locked_token1::text,
	total_value_locked_eth::text, total_value_locked_usd::text,
	volume_token0::text, volume_token1::text, volume_usd::text,
	untracked_volume_usd::text, fees_usd::text,
	fee_growth_global_0_x128, fee_growth_global_1_x128,
	tx_count, created_at, valid_from, valid_to
`

func scanPool(row interface{ Scan(...any) error }) (*domain.Pool, error) {
	var pl domain.Pool
	var sqrtPrice, liquidity, price0, price1 string
	var tvl0, tvl1, tvlETH, tvlUSD string
	var vol0, vol1, volUSD, untracked, feesUSD string
	if err := row.Scan(
		&pl.PoolAddress, &pl.Token0, &pl.Token1, &pl.FeeTier,
		&sqrtPrice, &pl.Tick, &liquidity, &price0, &price1,
		&tvl0, &tvl1, &tvlETH, &tvlUSD,
		&vol0, &vol1, &volUSD, &untracked, &feesUSD,
		&pl.FeeGrowthGlobal0X128, &pl.FeeGrowthGlobal1X128,
		&pl.TxCount, &pl.CreatedAt, &pl.ValidFrom, &pl.ValidTo,
	); err != nil {
		return nil, err
	}

	p := &numParser{}
	pl.SqrtPriceX96 = p.parse(sqrtPrice)
	pl.Liquidity = p.parse(liquidity)
	pl.Token0Price = p.parse(price0)
	pl.Token1Price = p.parse(price1)
	pl.TotalValueLockedToken0 = p.parse(tvl0)
	pl.TotalValueLockedToken1 = p.parse(tvl1)
	pl.TotalValueLockedETH = p.parse(tvlETH)
	pl.TotalValueLockedUSD = p.parse(tvlUSD)
	pl.VolumeToken0 = p.parse(vol0)
	pl.VolumeToken1 = p.parse(vol1)
	pl.VolumeUSD = p.parse(volUSD)
	pl.UntrackedVolumeUSD = p.parse(untracked)
	pl.FeesUSD = p.parse(feesUSD)
	return &pl, p.err
}

// GetLatest retrieves the open version for an address.
func (s *PoolStore) GetLatest(ctx context.Context, poolAddress string) (*domain.Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM pools WHERE pool_address = $1 AND valid_to IS NULL`

	pl, err := scanPool(s.pool.QueryRow(ctx, query, poolAddress))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool %s: %w", poolAddress, err)
	}
	return pl, nil
}

const poolInsertQuery = `
	INSERT INTO pools (
		pool_address, token0, token1, fee_tier,
		sqrt_price_x96, tick, liquidity, token0_price, token1_price,
		total_value_locked_token0, total_value_locked_token1,
		total_value_locked_eth, total_value_locked_usd,
		volume_token0, volume_token1, volume_usd,
		untracked_volume_usd, fees_usd,
		fee_growth_global_0_x128, fee_growth_global_1_x128,
		tx_count, created_at, valid_from, valid_to
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, NULL
	)
`

func poolInsertArgs(p *domain.Pool) []any {
	return []any{
		p.PoolAddress, p.Token0, p.Token1, p.FeeTier,
		num(p.SqrtPriceX96), p.Tick, num(p.Liquidity), num(p.Token0Price), num(p.Token1Price),
		num(p.TotalValueLockedToken0), num(p.TotalValueLockedToken1),
		num(p.TotalValueLockedETH), num(p.TotalValueLockedUSD),
		num(p.VolumeToken0), num(p.VolumeToken1), num(p.VolumeUSD),
		num(p.UntrackedVolumeUSD), num(p.FeesUSD),
		p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128,
		p.TxCount, p.CreatedAt, p.ValidFrom,
	}
}

// Insert appends a new open version for a new pool.
func (s *PoolStore) Insert(ctx context.Context, p *domain.Pool) error {
	if _, err := s.pool.Exec(ctx, poolInsertQuery, poolInsertArgs(p)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pool: %w", err)
	}
	return nil
}

// Update overwrites the open version's fields in place.
func (s *PoolStore) Update(ctx context.Context, p *domain.Pool) error {
	query := `
		UPDATE pools SET
			token0 = $2, token1 = $3, fee_tier = $4,
			sqrt_price_x96 = $5, tick = $6, liquidity = $7,
			token0_price = $8, token1_price = $9,
			total_value_locked_token0 = $10, total_value_locked_token1 = $11,
			total_value_locked_eth = $12, total_value_locked_usd = $13,
			volume_token0 = $14, volume_token1 = $15, volume_usd = $16,
			untracked_volume_usd = $17, fees_usd = $18,
			fee_growth_global_0_x128 = $19, fee_growth_global_1_x128 = $20,
			tx_count = $21, created_at = $22
		WHERE pool_address = $1 AND valid_to IS NULL
	`
	tag, err := s.pool.Exec(ctx, query,
		p.PoolAddress, p.Token0, p.Token1, p.FeeTier,
		num(p.SqrtPriceX96), p.Tick, num(p.Liquidity),
		num(p.Token0Price), num(p.Token1Price),
		num(p.TotalValueLockedToken0), num(p.TotalValueLockedToken1),
		num(p.TotalValueLockedETH), num(p.TotalValueLockedUSD),
		num(p.VolumeToken0), num(p.VolumeToken1), num(p.VolumeUSD),
		num(p.UntrackedVolumeUSD), num(p.FeesUSD),
		p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128,
		p.TxCount, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrVersionClosed
	}
	return nil
}

// Supersede closes the open version at the given block and appends next as
// the new open version, atomically.
func (s *PoolStore) Supersede(ctx context.Context, poolAddress string, atBlock int64, next *domain.Pool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE pools SET valid_to = $2 WHERE pool_address = $1 AND valid_to IS NULL`,
		poolAddress, atBlock,
	)
	if err != nil {
		return fmt.Errorf("close pool version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrVersionClosed
	}

	if _, err := tx.Exec(ctx, poolInsertQuery, poolInsertArgs(next)...); err != nil {
		return fmt.Errorf("insert pool version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByToken retrieves the open versions of all pools containing the token
// on either side, ordered by pool address. The ordering is load-bearing for
// the pricing oracle's first-candidate seeding.
func (s *PoolStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.Pool, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM pools
		WHERE (token0 = $1 OR token1 = $1) AND valid_to IS NULL
		ORDER BY pool_address ASC
	`
	rows, err := s.pool.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get pools by token: %w", err)
	}
	defer rows.Close()

	var pools []*domain.Pool
	for rows.Next() {
		pl, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, pl)
	}
	return pools, rows.Err()
}

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	token_address, name, symbol, decimals, derived_eth::text,
	volume::text, volume_usd::text, untracked_volume_usd::text, fees_usd::text,
	total_value_locked::text, total_value_locked_usd::text,
	tx_count, valid_from, valid_to
`

func scanToken(row interface{ Scan(...any) error }) (*domain.Token, error) {
	var t domain.Token
	var derived, vol, volUSD, untracked, feesUSD, tvl, tvlUSD string
	if err := row.Scan(
		&t.TokenAddress, &t.Name, &t.Symbol, &t.Decimals, &derived,
		&vol, &volUSD, &untracked, &feesUSD, &tvl, &tvlUSD,
		&t.TxCount, &t.ValidFrom, &t.ValidTo,
	); err != nil {
		return nil, err
	}

	p := &numParser{}
	t.DerivedETH = p.parse(derived)
	t.Volume = p.parse(vol)
	t.VolumeUSD = p.parse(volUSD)
	t.UntrackedVolumeUSD = p.parse(untracked)
	t.FeesUSD = p.parse(feesUSD)
	t.TotalValueLocked = p.parse(tvl)
	t.TotalValueLockedUSD = p.parse(tvlUSD)
	return &t, p.err
}

// GetLatest retrieves the open version for an address.
func (s *TokenStore) GetLatest(ctx context.Context, tokenAddress string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE token_address = $1 AND valid_to IS NULL`

	t, err := scanToken(s.pool.QueryRow(ctx, query, tokenAddress))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token %s: %w", tokenAddress, err)
	}
	return t, nil
}

// Insert appends a new open version for a new token.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	query := `
		INSERT INTO tokens (
			token_address, name, symbol, decimals, derived_eth,
			volume, volume_usd, untracked_volume_usd, fees_usd,
			total_value_locked, total_value_locked_usd,
			tx_count, valid_from, valid_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL)
	`
	_, err := s.pool.Exec(ctx, query,
		t.TokenAddress, t.Name, t.Symbol, t.Decimals, num(t.DerivedETH),
		num(t.Volume), num(t.VolumeUSD), num(t.UntrackedVolumeUSD), num(t.FeesUSD),
		num(t.TotalValueLocked), num(t.TotalValueLockedUSD),
		t.TxCount, t.ValidFrom,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Update overwrites the open version's fields in place.
func (s *TokenStore) Update(ctx context.Context, t *domain.Token) error {
	query := `
		UPDATE tokens SET
			name = $2, symbol = $3, decimals = $4, derived_eth = $5,
			volume = $6, volume_usd = $7, untracked_volume_usd = $8, fees_usd = $9,
			total_value_locked = $10, total_value_locked_usd = $11,
			tx_count = $12
		WHERE token_address = $1 AND valid_to IS NULL
	`
	tag, err := s.pool.Exec(ctx, query,
		t.TokenAddress, t.Name, t.Symbol, t.Decimals, num(t.DerivedETH),
		num(t.Volume), num(t.VolumeUSD), num(t.UntrackedVolumeUSD), num(t.FeesUSD),
		num(t.TotalValueLocked), num(t.TotalValueLockedUSD),
		t.TxCount,
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrVersionClosed
	}
	return nil
}
