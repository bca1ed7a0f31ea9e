package transform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/intervals"
	"starkdex-indexer/internal/pricing"
	"starkdex-indexer/internal/storage"
)

// handleInitialize seeds the pool's price state and zeroes its TVL.
func (e *Engine) handleInitialize(ctx context.Context, ev *domain.RawEvent) error {
	p := ev.Initialize
	if p == nil {
		return fmt.Errorf("missing initialize payload")
	}

	pool, err := e.getOrCreatePool(ctx, ev.PoolAddress, ev.Block)
	if err != nil {
		return err
	}
	token0, token1, err := e.poolTokens(ctx, pool, ev.Block)
	if err != nil {
		return err
	}

	price0, price1 := pricing.SqrtPriceX96ToPrices(p.SqrtPriceX96, token0.Decimals, token1.Decimals)

	tick := p.Tick
	pool.SqrtPriceX96 = p.SqrtPriceX96
	pool.Tick = &tick
	pool.Liquidity = decimal.Zero
	pool.Token0Price = price0
	pool.Token1Price = price1
	pool.TotalValueLockedToken0 = decimal.Zero
	pool.TotalValueLockedToken1 = decimal.Zero
	pool.TotalValueLockedETH = decimal.Zero
	pool.TotalValueLockedUSD = decimal.Zero
	pool.FeeGrowthGlobal0X128 = "0"
	pool.FeeGrowthGlobal1X128 = "0"
	pool.TxCount = 1 // the initialize itself
	pool.CreatedAt = ev.Timestamp

	if err := e.pools.Update(ctx, pool); err != nil {
		return fmt.Errorf("update pool: %w", err)
	}

	if err := e.pricing.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh eth price: %w", err)
	}

	if err := e.agg.UpdatePool(ctx, pool, ev.Timestamp, intervals.SwapDelta{}); err != nil {
		return err
	}

	return e.refreshDerivedETH(ctx, token0, token1)
}

// handleMint applies a liquidity deposit to token, pool and factory TVL.
func (e *Engine) handleMint(ctx context.Context, ev *domain.RawEvent) error {
	return e.applyLiquidityChange(ctx, ev, ev.Mint, false)
}

// handleBurn applies a liquidity withdrawal, the exact mirror of Mint.
func (e *Engine) handleBurn(ctx context.Context, ev *domain.RawEvent) error {
	return e.applyLiquidityChange(ctx, ev, ev.Burn, true)
}

// applyLiquidityChange is the shared Mint/Burn state mutation. Pool
// liquidity moves only when the current tick lies inside the event's range;
// the factory TVL is re-derived by swapping the pool's old ETH contribution
// for its new one.
func (e *Engine) applyLiquidityChange(ctx context.Context, ev *domain.RawEvent, p *domain.LiquidityPayload, burn bool) error {
	if p == nil {
		return fmt.Errorf("missing liquidity payload")
	}

	factory, err := e.getOrCreateFactory(ctx, ev.Block)
	if err != nil {
		return err
	}
	pool, err := e.getOrCreatePool(ctx, ev.PoolAddress, ev.Block)
	if err != nil {
		return err
	}
	token0, token1, err := e.poolTokens(ctx, pool, ev.Block)
	if err != nil {
		return err
	}

	amount0 := pricing.AmountAfterDecimals(p.Amount0, token0.Decimals)
	amount1 := pricing.AmountAfterDecimals(p.Amount1, token1.Decimals)
	liquidity := p.Amount
	if burn {
		amount0 = amount0.Neg()
		amount1 = amount1.Neg()
		liquidity = liquidity.Neg()
	}

	ethPrice := e.pricing.EthUSD()

	token0.TotalValueLocked = token0.TotalValueLocked.Add(amount0)
	token0.TotalValueLockedUSD = token0.TotalValueLocked.Mul(token0.DerivedETH).Mul(ethPrice)
	token0.TxCount++

	token1.TotalValueLocked = token1.TotalValueLocked.Add(amount1)
	token1.TotalValueLockedUSD = token1.TotalValueLocked.Mul(token1.DerivedETH).Mul(ethPrice)
	token1.TxCount++

	// Liquidity deltas apply only when the pool is initialized and the
	// current tick is inside [tickLower, tickUpper).
	if pool.InRange(p.TickLower, p.TickUpper) {
		pool.Liquidity = pool.Liquidity.Add(liquidity)
	}

	factoryETHWithoutPool := factory.TotalValueLockedETH.Sub(pool.TotalValueLockedETH)

	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Add(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Add(amount1)
	pool.TotalValueLockedETH = pool.TotalValueLockedToken0.Mul(token0.DerivedETH).
		Add(pool.TotalValueLockedToken1.Mul(token1.DerivedETH))
	pool.TotalValueLockedUSD = pool.TotalValueLockedETH.Mul(ethPrice)
	pool.TxCount++

	factory.TotalValueLockedETH = factoryETHWithoutPool.Add(pool.TotalValueLockedETH)
	factory.TotalValueLockedUSD = factory.TotalValueLockedETH.Mul(ethPrice)
	factory.TxCount++

	if err := e.tokens.Update(ctx, token0); err != nil {
		return fmt.Errorf("update token0: %w", err)
	}
	if err := e.tokens.Update(ctx, token1); err != nil {
		return fmt.Errorf("update token1: %w", err)
	}
	if err := e.pools.Update(ctx, pool); err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if err := e.factories.Update(ctx, factory); err != nil {
		return fmt.Errorf("update factory: %w", err)
	}

	if err := e.agg.UpdateFactory(ctx, factory, ev.Timestamp, intervals.SwapDelta{}); err != nil {
		return err
	}
	if err := e.agg.UpdatePool(ctx, pool, ev.Timestamp, intervals.SwapDelta{}); err != nil {
		return err
	}
	if err := e.agg.UpdateTokenFromState(ctx, token0, ev.Timestamp, e.pricing); err != nil {
		return err
	}
	return e.agg.UpdateTokenFromState(ctx, token1, ev.Timestamp, e.pricing)
}

// handleSwap is the volume path: tracked/untracked volumes, fees, price
// recomputation, derived price refresh, TVL re-derivation, bucket deltas
// and the pending volume snapshot.
func (e *Engine) handleSwap(ctx context.Context, ev *domain.RawEvent) error {
	p := ev.Swap
	if p == nil {
		return fmt.Errorf("missing swap payload")
	}

	factory, err := e.getOrCreateFactory(ctx, ev.Block)
	if err != nil {
		return err
	}
	pool, err := e.getOrCreatePool(ctx, ev.PoolAddress, ev.Block)
	if err != nil {
		return err
	}
	token0, token1, err := e.poolTokens(ctx, pool, ev.Block)
	if err != nil {
		return err
	}

	amount0 := pricing.AmountAfterDecimals(p.Amount0, token0.Decimals)
	amount1 := pricing.AmountAfterDecimals(p.Amount1, token1.Decimals)
	amount0Abs := amount0.Abs()
	amount1Abs := amount1.Abs()

	ethPrice := e.pricing.EthUSD()
	amount0USD := amount0Abs.Mul(token0.DerivedETH).Mul(ethPrice)
	amount1USD := amount1Abs.Mul(token1.DerivedETH).Mul(ethPrice)

	// Halved so one swap is not double-counted across both legs.
	two := decimal.NewFromInt(2)
	trackedUSD := e.pricing.TrackedAmountUSD(
		amount0Abs, token0.TokenAddress, token0.DerivedETH,
		amount1Abs, token1.TokenAddress, token1.DerivedETH,
	).Div(two)
	trackedETH := pricing.SafeDiv(trackedUSD, ethPrice)
	untrackedUSD := amount0USD.Add(amount1USD).Div(two)

	feeTier := decimal.NewFromInt(pool.FeeTier)
	feeDenominator := decimal.NewFromInt(domain.FeeDenominator)
	feesETH := trackedETH.Mul(feeTier).Div(feeDenominator)
	feesUSD := untrackedUSD.Mul(feeTier).Div(feeDenominator)

	factory.TxCount++
	factory.TotalVolumeETH = factory.TotalVolumeETH.Add(trackedETH)
	factory.TotalVolumeUSD = factory.TotalVolumeUSD.Add(trackedUSD)
	factory.UntrackedVolumeUSD = factory.UntrackedVolumeUSD.Add(untrackedUSD)
	factory.TotalFeesETH = factory.TotalFeesETH.Add(feesETH)
	factory.TotalFeesUSD = factory.TotalFeesUSD.Add(feesUSD)

	pool.VolumeToken0 = pool.VolumeToken0.Add(amount0Abs)
	pool.VolumeToken1 = pool.VolumeToken1.Add(amount1Abs)
	pool.VolumeUSD = pool.VolumeUSD.Add(trackedUSD)
	pool.UntrackedVolumeUSD = pool.UntrackedVolumeUSD.Add(untrackedUSD)
	pool.FeesUSD = pool.FeesUSD.Add(feesUSD)
	pool.TxCount++

	tick := p.Tick
	pool.Liquidity = p.Liquidity
	pool.Tick = &tick
	pool.SqrtPriceX96 = p.SqrtPriceX96
	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Add(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Add(amount1)

	token0.Volume = token0.Volume.Add(amount0Abs)
	token0.VolumeUSD = token0.VolumeUSD.Add(trackedUSD)
	token0.UntrackedVolumeUSD = token0.UntrackedVolumeUSD.Add(untrackedUSD)
	token0.FeesUSD = token0.FeesUSD.Add(feesUSD)
	token0.TxCount++

	token1.Volume = token1.Volume.Add(amount1Abs)
	token1.VolumeUSD = token1.VolumeUSD.Add(trackedUSD)
	token1.UntrackedVolumeUSD = token1.UntrackedVolumeUSD.Add(untrackedUSD)
	token1.FeesUSD = token1.FeesUSD.Add(feesUSD)
	token1.TxCount++

	pool.Token0Price, pool.Token1Price = pricing.SqrtPriceX96ToPrices(p.SqrtPriceX96, token0.Decimals, token1.Decimals)

	// Price refresh reads the stores, which still hold pre-swap state; the
	// new reference price takes effect next cycle, matching replay order.
	if err := e.pricing.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh eth price: %w", err)
	}
	d0, err := e.pricing.FindEthPerToken(ctx, token0.TokenAddress)
	if err != nil {
		return fmt.Errorf("derive price %s: %w", token0.TokenAddress, err)
	}
	d1, err := e.pricing.FindEthPerToken(ctx, token1.TokenAddress)
	if err != nil {
		return fmt.Errorf("derive price %s: %w", token1.TokenAddress, err)
	}
	token0.DerivedETH = d0
	token1.DerivedETH = d1

	ethPrice = e.pricing.EthUSD()
	factoryETHWithoutPool := factory.TotalValueLockedETH.Sub(pool.TotalValueLockedETH)

	pool.TotalValueLockedETH = pool.TotalValueLockedToken0.Mul(d0).
		Add(pool.TotalValueLockedToken1.Mul(d1))
	pool.TotalValueLockedUSD = pool.TotalValueLockedETH.Mul(ethPrice)

	factory.TotalValueLockedETH = factoryETHWithoutPool.Add(pool.TotalValueLockedETH)
	factory.TotalValueLockedUSD = factory.TotalValueLockedETH.Mul(ethPrice)

	token0.TotalValueLocked = token0.TotalValueLocked.Add(amount0)
	token0.TotalValueLockedUSD = token0.TotalValueLocked.Mul(d0).Mul(ethPrice)
	token1.TotalValueLocked = token1.TotalValueLocked.Add(amount1)
	token1.TotalValueLockedUSD = token1.TotalValueLocked.Mul(d1).Mul(ethPrice)

	e.feeGrowthPending[pool.PoolAddress] = struct{}{}

	if err := e.tokens.Update(ctx, token0); err != nil {
		return fmt.Errorf("update token0: %w", err)
	}
	if err := e.tokens.Update(ctx, token1); err != nil {
		return fmt.Errorf("update token1: %w", err)
	}
	if err := e.pools.Update(ctx, pool); err != nil {
		return fmt.Errorf("update pool: %w", err)
	}
	if err := e.factories.Update(ctx, factory); err != nil {
		return fmt.Errorf("update factory: %w", err)
	}

	factoryDelta := intervals.SwapDelta{VolumeETH: trackedETH, VolumeUSD: trackedUSD, FeesUSD: feesUSD}
	if err := e.agg.UpdateFactory(ctx, factory, ev.Timestamp, factoryDelta); err != nil {
		return err
	}
	poolDelta := intervals.SwapDelta{
		VolumeUSD:    trackedUSD,
		VolumeToken0: amount0Abs,
		VolumeToken1: amount1Abs,
		FeesUSD:      feesUSD,
	}
	if err := e.agg.UpdatePool(ctx, pool, ev.Timestamp, poolDelta); err != nil {
		return err
	}
	if err := e.agg.UpdateToken(ctx, token0, ev.Timestamp, d0.Mul(ethPrice), trackedUSD, amount0Abs, feesUSD); err != nil {
		return err
	}
	if err := e.agg.UpdateToken(ctx, token1, ev.Timestamp, d1.Mul(ethPrice), trackedUSD, amount1Abs, feesUSD); err != nil {
		return err
	}

	snapshot := &domain.VolumeSnapshot{
		ID:           newSnapshotID(),
		OwnerAddress: p.Sender,
		SwapFeesUSD:  feesUSD,
		Timestamp:    ev.Timestamp,
	}
	if err := e.volumeSnapshots.Insert(ctx, snapshot); err != nil {
		return fmt.Errorf("insert volume snapshot: %w", err)
	}
	return nil
}

// handleCollect accrues claimed fees on the position and folds them into
// the day's snapshot so the scoring pass nets them out.
func (e *Engine) handleCollect(ctx context.Context, ev *domain.RawEvent) error {
	p := ev.Collect
	if p == nil {
		return fmt.Errorf("missing collect payload")
	}

	position, err := e.getOrCreatePosition(ctx, ev, p.Recipient)
	if err != nil {
		return err
	}

	amount0 := pricing.AmountAfterDecimals(p.Amount0, position.Token0Decimals)
	amount1 := pricing.AmountAfterDecimals(p.Amount1, position.Token1Decimals)

	position.CollectedFeesToken0 = position.CollectedFeesToken0.Add(amount0)
	position.CollectedFeesToken1 = position.CollectedFeesToken1.Add(amount1)
	if err := e.positions.Upsert(ctx, position); err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	// A collect in the same block as a liquidity decrease belongs to that
	// decrease snapshot.
	if snap, err := e.posSnapshots.FindByBlock(ctx, position.PositionID, ev.Block, domain.EventDecreaseLiquidity); err == nil {
		return e.posSnapshots.AddCollectedFees(ctx, snap.ID, amount0, amount1)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("find decrease snapshot: %w", err)
	}

	todayEnd := dayEndMs(ev.Timestamp)
	yesterdayEnd := todayEnd - 86_400_000

	for _, ts := range []int64{yesterdayEnd, todayEnd} {
		snap, err := e.posSnapshots.Find(ctx, position.PositionID, ts, "")
		if err == nil {
			return e.posSnapshots.AddCollectedFees(ctx, snap.ID, amount0, amount1)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("find day snapshot: %w", err)
		}
	}

	// No snapshot for either boundary yet: open positions accrue on today,
	// closed ones on yesterday.
	ts := yesterdayEnd
	if position.Liquidity.GreaterThan(decimal.Zero) {
		ts = todayEnd
	}
	snapshot := &domain.PositionSnapshot{
		ID:                  newSnapshotID(),
		PositionID:          position.PositionID,
		OwnerAddress:        position.OwnerAddress,
		PoolAddress:         position.PoolAddress,
		PositionLiquidity:   position.Liquidity,
		Timestamp:           ts,
		Block:               ev.Block,
		CollectedFeesToken0: amount0,
		CollectedFeesToken1: amount1,
	}
	if err := e.posSnapshots.Insert(ctx, snapshot); err != nil {
		return fmt.Errorf("insert collect snapshot: %w", err)
	}
	return nil
}

// handleTransfer upserts position ownership. The first transfer of an id
// materializes the position from the router's view.
func (e *Engine) handleTransfer(ctx context.Context, ev *domain.RawEvent) error {
	p := ev.Transfer
	if p == nil {
		return fmt.Errorf("missing transfer payload")
	}

	position, err := e.getOrCreatePosition(ctx, ev, p.To)
	if err != nil {
		return err
	}

	position.OwnerAddress = p.To
	return e.positions.Upsert(ctx, position)
}

// handleIncreaseLiquidity applies a position deposit and stages a pending
// scoring snapshot tagged with the event.
func (e *Engine) handleIncreaseLiquidity(ctx context.Context, ev *domain.RawEvent) error {
	return e.applyPositionLiquidity(ctx, ev, domain.EventIncreaseLiquidity)
}

// handleDecreaseLiquidity applies a position withdrawal and stages a
// pending scoring snapshot tagged with the event.
func (e *Engine) handleDecreaseLiquidity(ctx context.Context, ev *domain.RawEvent) error {
	return e.applyPositionLiquidity(ctx, ev, domain.EventDecreaseLiquidity)
}

func (e *Engine) applyPositionLiquidity(ctx context.Context, ev *domain.RawEvent, eventType domain.EventType) error {
	var p *domain.LiquidityPayload
	if eventType == domain.EventIncreaseLiquidity {
		p = ev.Mint
	} else {
		p = ev.Burn
	}
	if p == nil {
		return fmt.Errorf("missing liquidity payload")
	}

	position, err := e.getOrCreatePosition(ctx, ev, p.Owner)
	if err != nil {
		return err
	}

	preLiquidity := position.Liquidity

	amount0 := pricing.AmountAfterDecimals(p.Amount0, position.Token0Decimals)
	amount1 := pricing.AmountAfterDecimals(p.Amount1, position.Token1Decimals)

	if eventType == domain.EventIncreaseLiquidity {
		position.DepositedToken0 = position.DepositedToken0.Add(amount0)
		position.DepositedToken1 = position.DepositedToken1.Add(amount1)
		position.Liquidity = position.Liquidity.Add(p.Amount)
	} else {
		position.WithdrawnToken0 = position.WithdrawnToken0.Add(amount0)
		position.WithdrawnToken1 = position.WithdrawnToken1.Add(amount1)
		position.Liquidity = position.Liquidity.Sub(p.Amount)
	}

	if err := e.positions.Upsert(ctx, position); err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	// One snapshot per (position, timestamp, event).
	if _, err := e.posSnapshots.Find(ctx, position.PositionID, ev.Timestamp, eventType); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("find snapshot: %w", err)
	}

	snapshot := &domain.PositionSnapshot{
		ID:                newSnapshotID(),
		PositionID:        position.PositionID,
		OwnerAddress:      position.OwnerAddress,
		PoolAddress:       position.PoolAddress,
		Liquidity:         p.Amount,
		PositionLiquidity: preLiquidity,
		Timestamp:         ev.Timestamp,
		Block:             ev.Block,
		Event:             eventType,
	}
	if err := e.posSnapshots.Insert(ctx, snapshot); err != nil {
		return fmt.Errorf("insert position snapshot: %w", err)
	}
	return nil
}

// getOrCreatePosition lazily materializes a position from the router view,
// with safe defaults when the view is unreadable.
func (e *Engine) getOrCreatePosition(ctx context.Context, ev *domain.RawEvent, owner string) (*domain.Position, error) {
	position, err := e.positions.Get(ctx, ev.PositionID)
	if err == nil {
		return position, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load position %s: %w", ev.PositionID, err)
	}

	position = &domain.Position{
		PositionID:           ev.PositionID,
		OwnerAddress:         owner,
		PositionAddress:      domain.NFTRouter,
		PoolAddress:          ev.PoolAddress,
		Token0Decimals:       domain.DefaultDecimals,
		Token1Decimals:       domain.DefaultDecimals,
		LastUpdatedTimestamp: ev.Timestamp,
	}

	if id, err := strconv.ParseUint(ev.PositionID, 10, 64); err == nil {
		info, err := e.chain.PositionInfo(ctx, id)
		if err != nil {
			e.logger.Warn("position view unreadable, using defaults", "position", ev.PositionID, "error", err)
		} else {
			position.Token0Address = info.Token0
			position.Token1Address = info.Token1
			position.TickLower = info.TickLower
			position.TickUpper = info.TickUpper

			if token0, err := e.getOrCreateToken(ctx, info.Token0, ev.Block); err == nil {
				position.Token0Decimals = token0.Decimals
			}
			if token1, err := e.getOrCreateToken(ctx, info.Token1, ev.Block); err == nil {
				position.Token1Decimals = token1.Decimals
			}
		}
	}

	if err := e.positions.Upsert(ctx, position); err != nil {
		return nil, fmt.Errorf("create position %s: %w", ev.PositionID, err)
	}
	e.logger.Info("materialized position", "position", ev.PositionID, "owner", owner)
	return position, nil
}

// dayEndMs returns 23:59:59 UTC of the timestamp's day, in milliseconds.
func dayEndMs(timestampMs int64) int64 {
	t := time.UnixMilli(timestampMs).UTC()
	end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
	return end.UnixMilli()
}
