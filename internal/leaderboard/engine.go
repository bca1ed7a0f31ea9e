// Package leaderboard maintains the LP and volume contest ledgers: snapshot
// creation (daily cron, event-tagged, gap backfill), the time-vested LP
// scoring pass and the percentile-thresholded volume scoring pass.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/observability"
	"starkdex-indexer/internal/storage"
)

const (
	// vestingWindowMs is the span over which a position's scoring weight
	// grows linearly from 0 to 1 (15 days).
	vestingWindowMs = int64(1_296_000_000)

	// earlyAdopterMultiplier applies to every volume snapshot.
	earlyAdopterMultiplier = 3

	// sybilPercentile sets the trailing-window fee threshold below which
	// volume contributions score zero.
	sybilPercentile = 0.75

	dayMs = int64(86_400_000)
)

var pointsScale = decimal.NewFromInt(1000)

// poolBoosts elevates LP scoring for strategic pairs, keyed by the
// lexicographically ordered token pair.
var poolBoosts = map[[2]string]decimal.Decimal{
	pairKey(domain.ETH, domain.USDC):  decimal.NewFromInt(2),
	pairKey(domain.USDC, domain.USDT): decimal.NewFromInt(2),
	pairKey(domain.STRK, domain.ETH):  decimal.NewFromInt(3),
	pairKey(domain.STRK, domain.USDC): decimal.NewFromInt(3),
}

func pairKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// PoolBoost returns the pair's scoring multiplier, 1 for unlisted pairs.
func PoolBoost(token0, token1 string) decimal.Decimal {
	if boost, ok := poolBoosts[pairKey(token0, token1)]; ok {
		return boost
	}
	return decimal.NewFromInt(1)
}

// Config carries the engine's dependencies.
type Config struct {
	Registry        *Registry
	Positions       storage.PositionStore
	Snapshots       storage.PositionSnapshotStore
	VolumeSnapshots storage.VolumeSnapshotStore
	Blocks          storage.BlockStore
	TokenBuckets    storage.TokenBucketStore
	Pools           storage.PoolStore
	Board           storage.LeaderboardStore
	Logger          *slog.Logger
}

// Engine runs snapshot creation and the two scoring passes.
type Engine struct {
	registry    *Registry
	positions   storage.PositionStore
	snapshots   storage.PositionSnapshotStore
	volumeSnaps storage.VolumeSnapshotStore
	blocks      storage.BlockStore
	buckets     storage.TokenBucketStore
	pools       storage.PoolStore
	board       storage.LeaderboardStore
	logger      *slog.Logger
}

// NewEngine creates the leaderboard engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		registry:    cfg.Registry,
		positions:   cfg.Positions,
		snapshots:   cfg.Snapshots,
		volumeSnaps: cfg.VolumeSnapshots,
		blocks:      cfg.Blocks,
		buckets:     cfg.TokenBuckets,
		pools:       cfg.Pools,
		board:       cfg.Board,
		logger:      cfg.Logger.With("component", "leaderboard"),
	}
}

// RunDaily is the daily cycle: stage snapshots for every open position,
// backfill gaps, then score everything pending.
func (e *Engine) RunDaily(ctx context.Context, now int64) error {
	if err := e.CreateDailySnapshots(ctx, now); err != nil {
		return err
	}
	if err := e.Backfill(ctx, now); err != nil {
		return err
	}
	return e.ScoreLP(ctx)
}

// CreateDailySnapshots inserts one pending snapshot per open position at the
// prior day's 23:59:59 boundary, skipping positions already snapshotted
// there.
func (e *Engine) CreateDailySnapshots(ctx context.Context, now int64) error {
	boundary := dayEndMs(now) - dayMs

	blockNumber := int64(0)
	if block, err := e.blocks.Closest(ctx, boundary); err == nil {
		blockNumber = block.Number
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("resolve boundary block: %w", err)
	}

	open, err := e.positions.GetOpen(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	created := 0
	for _, position := range open {
		if _, err := e.snapshots.Find(ctx, position.PositionID, boundary, ""); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("find snapshot: %w", err)
		}

		snapshot := &domain.PositionSnapshot{
			ID:                uuid.NewString(),
			PositionID:        position.PositionID,
			OwnerAddress:      position.OwnerAddress,
			PoolAddress:       position.PoolAddress,
			PositionLiquidity: position.Liquidity,
			Timestamp:         boundary,
			Block:             blockNumber,
		}
		if err := e.snapshots.Insert(ctx, snapshot); err != nil {
			return fmt.Errorf("insert daily snapshot: %w", err)
		}
		observability.RecordSnapshotCreated("cron")
		created++
	}

	if created > 0 {
		e.logger.Info("staged daily snapshots", "count", created, "boundary", boundary)
	}
	return nil
}

// Backfill fills missed daily snapshots, walking forward one day at a time
// from each position's last scored day to yesterday. A day whose boundary
// block cannot be resolved defers the whole position; partial backfills are
// never inserted.
func (e *Engine) Backfill(ctx context.Context, now int64) error {
	yesterday := dayEndMs(now) - dayMs

	open, err := e.positions.GetOpen(ctx)
	if err != nil {
		return fmt.Errorf("load open positions: %w", err)
	}

	for _, position := range open {
		startTs := position.LastUpdatedTimestamp
		if last, err := e.snapshots.GetLastScored(ctx, position.PositionID); err == nil {
			startTs = last.Timestamp
		} else if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("last scored snapshot: %w", err)
		}

		var planned []*domain.PositionSnapshot
		deferred := false

		for day := dayEndMs(startTs) + dayMs; day < yesterday; day += dayMs {
			if _, err := e.snapshots.Find(ctx, position.PositionID, day, ""); err == nil {
				continue
			} else if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("find snapshot: %w", err)
			}

			block, err := e.blocks.Closest(ctx, day)
			if err != nil || absInt64(block.Timestamp-day) > dayMs {
				e.logger.Warn("backfill deferred, no block near day boundary",
					"position", position.PositionID, "day", day)
				observability.DefaultMetrics.SnapshotsDeferred.Inc()
				deferred = true
				break
			}

			planned = append(planned, &domain.PositionSnapshot{
				ID:                uuid.NewString(),
				PositionID:        position.PositionID,
				OwnerAddress:      position.OwnerAddress,
				PoolAddress:       position.PoolAddress,
				PositionLiquidity: position.Liquidity,
				Timestamp:         day,
				Block:             block.Number,
			})
		}

		if deferred {
			continue
		}
		for _, snapshot := range planned {
			if err := e.snapshots.Insert(ctx, snapshot); err != nil {
				return fmt.Errorf("insert backfill snapshot: %w", err)
			}
			observability.RecordSnapshotCreated("backfill")
		}
	}
	return nil
}

// ScoreLP runs the LP scoring pass over pending snapshots, oldest first.
// Each snapshot scores the fee growth since the position's last scoring,
// weighted by the time-vested value and the pool boost, then transitions to
// scored exactly once.
func (e *Engine) ScoreLP(ctx context.Context) error {
	start := time.Now()

	pending, err := e.snapshots.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending snapshots: %w", err)
	}
	observability.DefaultMetrics.PendingSnapshots.WithLabelValues(string(domain.ContestLP)).Set(float64(len(pending)))

	scored := 0
	for _, snap := range pending {
		source, err := e.registry.Get(SourceNFT)
		if err != nil {
			return err
		}

		position, err := source.LatestPosition(ctx, snap.PositionID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				e.logger.Warn("snapshot for unknown position, scoring zero", "position", snap.PositionID)
				snap.Processed = true
				if err := e.snapshots.MarkScored(ctx, snap); err != nil {
					return fmt.Errorf("mark scored: %w", err)
				}
				continue
			}
			return fmt.Errorf("load position %s: %w", snap.PositionID, err)
		}

		uncollected0, uncollected1, err := source.UncollectedFees(ctx, position)
		if err != nil {
			// Simulation failures degrade to zero uncollected fees.
			e.logger.Warn("uncollected fees unavailable", "position", snap.PositionID, "error", err)
			uncollected0, uncollected1 = decimal.Zero, decimal.Zero
		}

		fees0 := snap.CollectedFeesToken0.Add(uncollected0).Sub(position.LastUnclaimedFeesToken0)
		fees1 := snap.CollectedFeesToken1.Add(uncollected1).Sub(position.LastUnclaimedFeesToken1)

		price0 := e.hourlyPrice(ctx, position.Token0Address, snap.Timestamp)
		price1 := e.hourlyPrice(ctx, position.Token1Address, snap.Timestamp)

		feesUSD := fees0.Mul(price0).Add(fees1.Mul(price1))
		if feesUSD.IsNegative() {
			feesUSD = decimal.Zero
		}

		period := snap.Timestamp - position.LastUpdatedTimestamp
		if period < 0 {
			period = 0
		}
		vested := e.vestedWeight(position, snap, period)

		boost := e.boostFor(ctx, position.PoolAddress)
		points := feesUSD.Mul(vested).Mul(boost).Mul(pointsScale)

		snap.Processed = true
		snap.CurrentFeesUSD = feesUSD
		snap.LpPoints = points
		snap.LastTimeVestedValue = position.TimeVestedValue
		snap.CurrentTimeVestedValue = vested
		snap.PeriodMs = period
		snap.PoolBoost = boost
		snap.LastUnclaimedFeesToken0 = position.LastUnclaimedFeesToken0
		snap.LastUnclaimedFeesToken1 = position.LastUnclaimedFeesToken1
		snap.CurrentUnclaimedFees0 = uncollected0
		snap.CurrentUnclaimedFees1 = uncollected1
		snap.Token0Price = price0
		snap.Token1Price = price1
		if err := e.snapshots.MarkScored(ctx, snap); err != nil {
			return fmt.Errorf("mark scored: %w", err)
		}

		position.TimeVestedValue = vested
		position.LastUpdatedTimestamp = snap.Timestamp
		position.LastUnclaimedFeesToken0 = uncollected0
		position.LastUnclaimedFeesToken1 = uncollected1
		position.LpPoints = position.LpPoints.Add(points)
		if err := source.UpdatePosition(ctx, position); err != nil {
			return fmt.Errorf("update position %s: %w", snap.PositionID, err)
		}

		if err := e.board.AddPoints(ctx, domain.ContestLP, position.OwnerAddress, points, snap.Timestamp); err != nil {
			return fmt.Errorf("add lp points: %w", err)
		}
		scored++
	}

	if scored > 0 {
		e.logger.Info("scored lp snapshots", "count", scored)
	}
	observability.RecordScoringPass(string(domain.ContestLP), scored, time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulScoring.Set(float64(time.Now().Unix()))
	return nil
}

// vestedWeight advances the position's time-vested value by the elapsed
// period (capped at 1), scales it down proportionally on a liquidity
// increase, and hard-resets it when the position is fully withdrawn.
func (e *Engine) vestedWeight(position *domain.Position, snap *domain.PositionSnapshot, periodMs int64) decimal.Decimal {
	vested := position.TimeVestedValue.Add(
		decimal.NewFromInt(periodMs).Div(decimal.NewFromInt(vestingWindowMs)))
	one := decimal.NewFromInt(1)
	if vested.GreaterThan(one) {
		vested = one
	}

	switch snap.Event {
	case domain.EventDecreaseLiquidity:
		if snap.PositionLiquidity.Sub(snap.Liquidity).LessThanOrEqual(decimal.Zero) {
			return decimal.Zero
		}
	case domain.EventIncreaseLiquidity:
		newLiquidity := snap.PositionLiquidity.Add(snap.Liquidity)
		if snap.PositionLiquidity.IsPositive() && newLiquidity.IsPositive() {
			vested = vested.Mul(snap.PositionLiquidity.Div(newLiquidity))
		}
	}
	return vested
}

// ScoreVolume runs the volume scoring pass: pending snapshots ranked
// against the trailing-24h fee distribution, contributions strictly below
// the 75th-percentile fee score zero.
func (e *Engine) ScoreVolume(ctx context.Context, now int64) error {
	start := time.Now()

	pending, err := e.volumeSnaps.GetPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending volume snapshots: %w", err)
	}
	observability.DefaultMetrics.PendingSnapshots.WithLabelValues(string(domain.ContestVolume)).Set(float64(len(pending)))
	if len(pending) == 0 {
		return nil
	}

	window, err := e.volumeSnaps.GetSince(ctx, now-dayMs)
	if err != nil {
		return fmt.Errorf("load volume window: %w", err)
	}

	// Pending snapshots older than the window still participate in the
	// ranking.
	seen := make(map[string]bool, len(window))
	ranked := make([]*domain.VolumeSnapshot, 0, len(window)+len(pending))
	for _, snap := range window {
		seen[snap.ID] = true
		ranked = append(ranked, snap)
	}
	for _, snap := range pending {
		if !seen[snap.ID] {
			ranked = append(ranked, snap)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SwapFeesUSD.LessThan(ranked[j].SwapFeesUSD)
	})

	threshold := decimal.Zero
	if idx := int(float64(len(ranked))*sybilPercentile) - 1; idx >= 0 {
		threshold = ranked[idx].SwapFeesUSD
	}

	early := decimal.NewFromInt(earlyAdopterMultiplier)
	for _, snap := range pending {
		sybil := 1
		if threshold.GreaterThan(snap.SwapFeesUSD) {
			sybil = 0
		}

		points := snap.SwapFeesUSD.Mul(early).Mul(decimal.NewFromInt(int64(sybil))).Mul(pointsScale)

		snap.Processed = true
		snap.SybilMultiplier = sybil
		snap.EarlyMultiplier = earlyAdopterMultiplier
		snap.VolumePoints = points
		if err := e.volumeSnaps.MarkScored(ctx, snap); err != nil {
			return fmt.Errorf("mark volume scored: %w", err)
		}

		if err := e.board.AddPoints(ctx, domain.ContestVolume, snap.OwnerAddress, points, snap.Timestamp); err != nil {
			return fmt.Errorf("add volume points: %w", err)
		}
	}

	e.logger.Info("scored volume snapshots", "count", len(pending), "threshold", threshold)
	observability.RecordScoringPass(string(domain.ContestVolume), len(pending), time.Since(start).Seconds())
	return nil
}

// hourlyPrice returns the most recent nonzero hourly price at or before the
// timestamp's hour, zero when none is recorded.
func (e *Engine) hourlyPrice(ctx context.Context, tokenAddress string, timestampMs int64) decimal.Decimal {
	hourID := domain.BucketID(timestampMs, domain.BucketHour)
	bucket, err := e.buckets.GetLatestPriced(ctx, tokenAddress, domain.BucketHour, hourID)
	if err != nil {
		return decimal.Zero
	}
	return bucket.PriceUSD
}

// boostFor resolves the pool's token pair and returns its boost, 1 when the
// pool is unknown.
func (e *Engine) boostFor(ctx context.Context, poolAddress string) decimal.Decimal {
	pool, err := e.pools.GetLatest(ctx, poolAddress)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return PoolBoost(pool.Token0, pool.Token1)
}

// dayEndMs returns 23:59:59 UTC of the timestamp's day, in milliseconds.
func dayEndMs(timestampMs int64) int64 {
	t := time.UnixMilli(timestampMs).UTC()
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
	return end.UnixMilli()
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
