package clickhouse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// fl converts a decimal to the Float64 column representation.
func fl(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// PoolBucketStore implements storage.PoolBucketStore on ClickHouse.
// Upsert is a plain insert into a ReplacingMergeTree; reads use FINAL so the
// newest version of a key wins regardless of merge timing.
type PoolBucketStore struct {
	conn *Conn
}

// NewPoolBucketStore creates a new PoolBucketStore.
func NewPoolBucketStore(conn *Conn) *PoolBucketStore {
	return &PoolBucketStore{conn: conn}
}

var _ storage.PoolBucketStore = (*PoolBucketStore)(nil)

// Get retrieves a bucket.
func (s *PoolBucketStore) Get(ctx context.Context, poolAddress string, intervalSeconds, bucketID int64) (*domain.PoolBucket, error) {
	query := `
		SELECT pool_address, interval_seconds, bucket_id, bucket_start,
			tx_count, volume_token0, volume_token1, volume_usd, fees_usd,
			liquidity, sqrt_price_x96, token0_price, token1_price, tick,
			total_value_locked_usd,
			fee_growth_global_0_x128, fee_growth_global_1_x128,
			open, high, low, close
		FROM pool_buckets FINAL
		WHERE pool_address = ? AND interval_seconds = ? AND bucket_id = ?
	`
	rows, err := s.conn.Query(ctx, query, poolAddress, intervalSeconds, bucketID)
	if err != nil {
		return nil, fmt.Errorf("get pool bucket: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}

	var b domain.PoolBucket
	var vol0, vol1, volUSD, feesUSD float64
	var liquidity, sqrtPrice, price0, price1, tvlUSD float64
	var open, high, low, closing float64
	if err := rows.Scan(
		&b.PoolAddress, &b.IntervalSeconds, &b.BucketID, &b.PeriodStart,
		&b.TxCount, &vol0, &vol1, &volUSD, &feesUSD,
		&liquidity, &sqrtPrice, &price0, &price1, &b.Tick,
		&tvlUSD,
		&b.FeeGrowthGlobal0X128, &b.FeeGrowthGlobal1X128,
		&open, &high, &low, &closing,
	); err != nil {
		return nil, fmt.Errorf("scan pool bucket: %w", err)
	}
	b.VolumeToken0 = decimal.NewFromFloat(vol0)
	b.VolumeToken1 = decimal.NewFromFloat(vol1)
	b.VolumeUSD = decimal.NewFromFloat(volUSD)
	b.FeesUSD = decimal.NewFromFloat(feesUSD)
	b.Liquidity = decimal.NewFromFloat(liquidity)
	b.SqrtPriceX96 = decimal.NewFromFloat(sqrtPrice)
	b.Token0Price = decimal.NewFromFloat(price0)
	b.Token1Price = decimal.NewFromFloat(price1)
	b.TotalValueLockedUSD = decimal.NewFromFloat(tvlUSD)
	b.Open = decimal.NewFromFloat(open)
	b.High = decimal.NewFromFloat(high)
	b.Low = decimal.NewFromFloat(low)
	b.Close = decimal.NewFromFloat(closing)
	return &b, rows.Err()
}

// Upsert inserts or replaces a bucket document.
func (s *PoolBucketStore) Upsert(ctx context.Context, b *domain.PoolBucket) error {
	query := `
		INSERT INTO pool_buckets (
			pool_address, interval_seconds, bucket_id, bucket_start,
			tx_count, volume_token0, volume_token1, volume_usd, fees_usd,
			liquidity, sqrt_price_x96, token0_price, token1_price, tick,
			total_value_locked_usd,
			fee_growth_global_0_x128, fee_growth_global_1_x128,
			open, high, low, close
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.conn.Exec(ctx, query,
		b.PoolAddress, b.IntervalSeconds, b.BucketID, b.PeriodStart,
		b.TxCount, fl(b.VolumeToken0), fl(b.VolumeToken1), fl(b.VolumeUSD), fl(b.FeesUSD),
		fl(b.Liquidity), fl(b.SqrtPriceX96), fl(b.Token0Price), fl(b.Token1Price), b.Tick,
		fl(b.TotalValueLockedUSD),
		b.FeeGrowthGlobal0X128, b.FeeGrowthGlobal1X128,
		fl(b.Open), fl(b.High), fl(b.Low), fl(b.Close),
	)
	if err != nil {
		return fmt.Errorf("upsert pool bucket: %w", err)
	}
	return nil
}

// TokenBucketStore implements storage.TokenBucketStore on ClickHouse.
type TokenBucketStore struct {
	conn *Conn
}

// NewTokenBucketStore creates a new TokenBucketStore.
func NewTokenBucketStore(conn *Conn) *TokenBucketStore {
	return &TokenBucketStore{conn: conn}
}

var _ storage.TokenBucketStore = (*TokenBucketStore)(nil)

const tokenBucketSelect = `
	SELECT token_address, interval_seconds, bucket_id, bucket_start,
		tx_count, volume, volume_usd, untracked_volume_usd, fees_usd,
		total_value_locked, total_value_locked_usd, price_usd,
		open, high, low, close
	FROM token_buckets FINAL
`

func scanTokenBucket(rows interface{ Scan(...any) error }) (*domain.TokenBucket, error) {
	var b domain.TokenBucket
	var vol, volUSD, untracked, feesUSD float64
	var tvl, tvlUSD, priceUSD float64
	var open, high, low, closing float64
	if err := rows.Scan(
		&b.TokenAddress, &b.IntervalSeconds, &b.BucketID, &b.PeriodStart,
		&b.TxCount, &vol, &volUSD, &untracked, &feesUSD,
		&tvl, &tvlUSD, &priceUSD,
		&open, &high, &low, &closing,
	); err != nil {
		return nil, err
	}
	b.Volume = decimal.NewFromFloat(vol)
	b.VolumeUSD = decimal.NewFromFloat(volUSD)
	b.UntrackedVolumeUSD = decimal.NewFromFloat(untracked)
	b.FeesUSD = decimal.NewFromFloat(feesUSD)
	b.TotalValueLocked = decimal.NewFromFloat(tvl)
	b.TotalValueLockedUSD = decimal.NewFromFloat(tvlUSD)
	b.PriceUSD = decimal.NewFromFloat(priceUSD)
	b.Open = decimal.NewFromFloat(open)
	b.High = decimal.NewFromFloat(high)
	b.Low = decimal.NewFromFloat(low)
	b.Close = decimal.NewFromFloat(closing)
	return &b, nil
}

// Get retrieves a bucket.
func (s *TokenBucketStore) Get(ctx context.Context, tokenAddress string, intervalSeconds, bucketID int64) (*domain.TokenBucket, error) {
	query := tokenBucketSelect + `
		WHERE token_address = ? AND interval_seconds = ? AND bucket_id = ?
	`
	rows, err := s.conn.Query(ctx, query, tokenAddress, intervalSeconds, bucketID)
	if err != nil {
		return nil, fmt.Errorf("get token bucket: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}
	b, err := scanTokenBucket(rows)
	if err != nil {
		return nil, fmt.Errorf("scan token bucket: %w", err)
	}
	return b, rows.Err()
}

// GetLatestPriced retrieves the most recent bucket at or before bucketID with
// a nonzero USD price. Backfill scoring uses it to price fees at snapshot time.
func (s *TokenBucketStore) GetLatestPriced(ctx context.Context, tokenAddress string, intervalSeconds, bucketID int64) (*domain.TokenBucket, error) {
	query := tokenBucketSelect + `
		WHERE token_address = ? AND interval_seconds = ? AND bucket_id <= ? AND price_usd != 0
		ORDER BY bucket_id DESC
		LIMIT 1
	`
	rows, err := s.conn.Query(ctx, query, tokenAddress, intervalSeconds, bucketID)
	if err != nil {
		return nil, fmt.Errorf("get latest priced token bucket: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}
	b, err := scanTokenBucket(rows)
	if err != nil {
		return nil, fmt.Errorf("scan token bucket: %w", err)
	}
	return b, rows.Err()
}

// Upsert inserts or replaces a bucket document.
func (s *TokenBucketStore) Upsert(ctx context.Context, b *domain.TokenBucket) error {
	query := `
		INSERT INTO token_buckets (
			token_address, interval_seconds, bucket_id, bucket_start,
			tx_count, volume, volume_usd, untracked_volume_usd, fees_usd,
			total_value_locked, total_value_locked_usd, price_usd,
			open, high, low, close
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.conn.Exec(ctx, query,
		b.TokenAddress, b.IntervalSeconds, b.BucketID, b.PeriodStart,
		b.TxCount, fl(b.Volume), fl(b.VolumeUSD), fl(b.UntrackedVolumeUSD), fl(b.FeesUSD),
		fl(b.TotalValueLocked), fl(b.TotalValueLockedUSD), fl(b.PriceUSD),
		fl(b.Open), fl(b.High), fl(b.Low), fl(b.Close),
	)
	if err != nil {
		return fmt.Errorf("upsert token bucket: %w", err)
	}
	return nil
}

// FactoryBucketStore implements storage.FactoryBucketStore on ClickHouse.
type FactoryBucketStore struct {
	conn *Conn
}

// NewFactoryBucketStore creates a new FactoryBucketStore.
func NewFactoryBucketStore(conn *Conn) *FactoryBucketStore {
	return &FactoryBucketStore{conn: conn}
}

var _ storage.FactoryBucketStore = (*FactoryBucketStore)(nil)

// Get retrieves a bucket.
func (s *FactoryBucketStore) Get(ctx context.Context, intervalSeconds, bucketID int64) (*domain.FactoryBucket, error) {
	query := `
		SELECT interval_seconds, bucket_id, bucket_start,
			tx_count, volume_eth, volume_usd, fees_usd, total_value_locked_usd
		FROM factory_buckets FINAL
		WHERE interval_seconds = ? AND bucket_id = ?
	`
	rows, err := s.conn.Query(ctx, query, intervalSeconds, bucketID)
	if err != nil {
		return nil, fmt.Errorf("get factory bucket: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}

	var b domain.FactoryBucket
	var volETH, volUSD, feesUSD, tvlUSD float64
	if err := rows.Scan(
		&b.IntervalSeconds, &b.BucketID, &b.PeriodStart,
		&b.TxCount, &volETH, &volUSD, &feesUSD, &tvlUSD,
	); err != nil {
		return nil, fmt.Errorf("scan factory bucket: %w", err)
	}
	b.VolumeETH = decimal.NewFromFloat(volETH)
	b.VolumeUSD = decimal.NewFromFloat(volUSD)
	b.FeesUSD = decimal.NewFromFloat(feesUSD)
	b.TotalValueLockedUSD = decimal.NewFromFloat(tvlUSD)
	return &b, rows.Err()
}

// Upsert inserts or replaces a bucket document.
func (s *FactoryBucketStore) Upsert(ctx context.Context, b *domain.FactoryBucket) error {
	query := `
		INSERT INTO factory_buckets (
			interval_seconds, bucket_id, bucket_start,
			tx_count, volume_eth, volume_usd, fees_usd, total_value_locked_usd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.conn.Exec(ctx, query,
		b.IntervalSeconds, b.BucketID, b.PeriodStart,
		b.TxCount, fl(b.VolumeETH), fl(b.VolumeUSD), fl(b.FeesUSD), fl(b.TotalValueLockedUSD),
	)
	if err != nil {
		return fmt.Errorf("upsert factory bucket: %w", err)
	}
	return nil
}
