// Package transform replays staged raw events into the materialized
// aggregate state: factory, pools, tokens, positions, buckets and scoring
// ledgers. A cycle is all-or-nothing: events are marked processed in one
// bulk commit only after every handler in the batch succeeded.
package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/intervals"
	"starkdex-indexer/internal/observability"
	"starkdex-indexer/internal/pricing"
	"starkdex-indexer/internal/rpc"
	"starkdex-indexer/internal/storage"
)

// Config carries the engine's dependencies.
type Config struct {
	Factories       storage.FactoryStore
	Pools           storage.PoolStore
	Tokens          storage.TokenStore
	Positions       storage.PositionStore
	Events          storage.RawEventStore
	PosSnapshots    storage.PositionSnapshotStore
	VolumeSnapshots storage.VolumeSnapshotStore

	Aggregator *intervals.Aggregator
	Pricing    *pricing.Context
	Chain      rpc.ChainReader
	Logger     *slog.Logger
}

// Engine dispatches raw events to per-type handlers.
type Engine struct {
	factories       storage.FactoryStore
	pools           storage.PoolStore
	tokens          storage.TokenStore
	positions       storage.PositionStore
	events          storage.RawEventStore
	posSnapshots    storage.PositionSnapshotStore
	volumeSnapshots storage.VolumeSnapshotStore

	agg     *intervals.Aggregator
	pricing *pricing.Context
	chain   rpc.ChainReader
	logger  *slog.Logger

	handlers map[domain.EventType]func(context.Context, *domain.RawEvent) error

	// pools touched by swaps this cycle, fee growth refreshed afterwards
	feeGrowthPending map[string]struct{}
}

// NewEngine creates the event engine with its static dispatch table.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		factories:        cfg.Factories,
		pools:            cfg.Pools,
		tokens:           cfg.Tokens,
		positions:        cfg.Positions,
		events:           cfg.Events,
		posSnapshots:     cfg.PosSnapshots,
		volumeSnapshots:  cfg.VolumeSnapshots,
		agg:              cfg.Aggregator,
		pricing:          cfg.Pricing,
		chain:            cfg.Chain,
		logger:           cfg.Logger.With("component", "transform"),
		feeGrowthPending: make(map[string]struct{}),
	}

	e.handlers = map[domain.EventType]func(context.Context, *domain.RawEvent) error{
		domain.EventInitialize:        e.handleInitialize,
		domain.EventMint:              e.handleMint,
		domain.EventBurn:              e.handleBurn,
		domain.EventSwap:              e.handleSwap,
		domain.EventCollect:           e.handleCollect,
		domain.EventTransfer:          e.handleTransfer,
		domain.EventIncreaseLiquidity: e.handleIncreaseLiquidity,
		domain.EventDecreaseLiquidity: e.handleDecreaseLiquidity,
	}

	return e
}

// ProcessEvents runs one replay cycle. Any handler error aborts the cycle
// before anything is marked processed, so the whole batch is retried
// verbatim next cycle. Unknown event types are skipped and left unmarked.
func (e *Engine) ProcessEvents(ctx context.Context) error {
	start := time.Now()

	if err := e.pricing.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh eth price: %w", err)
	}

	batch, err := e.events.GetUnprocessed(ctx)
	if err != nil {
		return fmt.Errorf("load unprocessed events: %w", err)
	}
	observability.UpdateUnprocessedEvents(len(batch))
	if len(batch) == 0 {
		return nil
	}

	counts := make(map[domain.EventType]int)
	applied := make([]string, 0, len(batch))

	for _, ev := range batch {
		handler, ok := e.handlers[ev.Type]
		if !ok {
			e.logger.Warn("unknown event type, skipping", "type", ev.Type, "id", ev.ID)
			observability.RecordEventSkipped()
			continue
		}
		if err := handler(ctx, ev); err != nil {
			observability.RecordReplayCycle("error", time.Since(start).Seconds())
			return fmt.Errorf("apply %s event %s: %w", ev.Type, ev.ID, err)
		}
		observability.RecordEventProcessed(string(ev.Type))
		observability.UpdateHighestBlock(ev.Block)
		counts[ev.Type]++
		applied = append(applied, ev.ID)
	}

	if len(applied) > 0 {
		if err := e.events.MarkProcessed(ctx, applied); err != nil {
			observability.RecordReplayCycle("error", time.Since(start).Seconds())
			return fmt.Errorf("mark processed: %w", err)
		}
	}

	e.refreshFeeGrowth(ctx)

	for eventType, n := range counts {
		e.logger.Info("processed events", "type", eventType, "count", n)
	}
	observability.RecordReplayCycle("success", time.Since(start).Seconds())
	observability.DefaultMetrics.LastSuccessfulReplay.Set(float64(time.Now().Unix()))
	return nil
}

// refreshFeeGrowth re-reads fee growth accumulators for pools touched by
// swaps. RPC failure keeps the old value; the refresh retries when the pool
// is swapped again.
func (e *Engine) refreshFeeGrowth(ctx context.Context) {
	for address := range e.feeGrowthPending {
		fg0, fg1, err := e.chain.FeeGrowthGlobals(ctx, address)
		if err != nil {
			e.logger.Warn("fee growth refresh failed", "pool", address, "error", err)
			continue
		}

		pool, err := e.pools.GetLatest(ctx, address)
		if err != nil {
			e.logger.Warn("fee growth refresh: pool missing", "pool", address, "error", err)
			continue
		}
		pool.FeeGrowthGlobal0X128 = fg0
		pool.FeeGrowthGlobal1X128 = fg1
		if err := e.pools.Update(ctx, pool); err != nil {
			e.logger.Warn("fee growth refresh: update failed", "pool", address, "error", err)
		}
	}
	e.feeGrowthPending = make(map[string]struct{})
}

// getOrCreatePool lazily materializes a pool on first reference. The token
// pair and fee tier come from the pool contract's views; unreachable views
// leave them zero-valued.
func (e *Engine) getOrCreatePool(ctx context.Context, address string, block int64) (*domain.Pool, error) {
	pool, err := e.pools.GetLatest(ctx, address)
	if err == nil {
		return pool, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load pool %s: %w", address, err)
	}

	pool = &domain.Pool{
		PoolAddress:          address,
		FeeGrowthGlobal0X128: "0",
		FeeGrowthGlobal1X128: "0",
		ValidFrom:            block,
	}

	if words, err := e.chain.Call(ctx, address, "token0", nil); err == nil && len(words) > 0 {
		pool.Token0 = words[0]
	} else {
		e.logger.Warn("pool token0 unreadable", "pool", address, "error", err)
	}
	if words, err := e.chain.Call(ctx, address, "token1", nil); err == nil && len(words) > 0 {
		pool.Token1 = words[0]
	} else {
		e.logger.Warn("pool token1 unreadable", "pool", address, "error", err)
	}
	if words, err := e.chain.Call(ctx, address, "fee", nil); err == nil && len(words) > 0 {
		if fee, err := rpc.FeltToInt64(words[0]); err == nil {
			pool.FeeTier = fee
		}
	}

	if err := e.pools.Insert(ctx, pool); err != nil {
		return nil, fmt.Errorf("create pool %s: %w", address, err)
	}
	e.logger.Info("materialized pool", "pool", address, "token0", pool.Token0, "token1", pool.Token1)
	return pool, nil
}

// getOrCreateToken lazily materializes a token, fetching metadata via RPC
// with safe defaults on failure.
func (e *Engine) getOrCreateToken(ctx context.Context, address string, block int64) (*domain.Token, error) {
	token, err := e.tokens.GetLatest(ctx, address)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load token %s: %w", address, err)
	}

	token = &domain.Token{
		TokenAddress: address,
		Name:         "UNKNOWN",
		Symbol:       "UNKNOWN",
		Decimals:     domain.DefaultDecimals,
		ValidFrom:    block,
	}

	meta, err := e.chain.TokenMetadata(ctx, address)
	if err != nil {
		e.logger.Warn("token metadata unreadable, using defaults", "token", address, "error", err)
	} else {
		if meta.Name != "" {
			token.Name = meta.Name
		}
		if meta.Symbol != "" {
			token.Symbol = meta.Symbol
		}
		token.Decimals = meta.Decimals
	}

	if err := e.tokens.Insert(ctx, token); err != nil {
		return nil, fmt.Errorf("create token %s: %w", address, err)
	}
	e.logger.Info("materialized token", "token", address, "symbol", token.Symbol)
	return token, nil
}

// poolTokens loads (materializing if needed) both tokens of a pool.
func (e *Engine) poolTokens(ctx context.Context, pool *domain.Pool, block int64) (*domain.Token, *domain.Token, error) {
	token0, err := e.getOrCreateToken(ctx, pool.Token0, block)
	if err != nil {
		return nil, nil, err
	}
	token1, err := e.getOrCreateToken(ctx, pool.Token1, block)
	if err != nil {
		return nil, nil, err
	}
	return token0, token1, nil
}

// getOrCreateFactory lazily materializes the factory singleton.
func (e *Engine) getOrCreateFactory(ctx context.Context, block int64) (*domain.Factory, error) {
	factory, err := e.factories.GetLatest(ctx)
	if err == nil {
		return factory, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load factory: %w", err)
	}

	factory = &domain.Factory{
		Address:   domain.FactoryAddress,
		ValidFrom: block,
	}
	if err := e.factories.Insert(ctx, factory); err != nil {
		return nil, fmt.Errorf("create factory: %w", err)
	}
	return factory, nil
}

// refreshDerivedETH re-runs price discovery for both pool tokens and
// persists the result.
func (e *Engine) refreshDerivedETH(ctx context.Context, token0, token1 *domain.Token) error {
	d0, err := e.pricing.FindEthPerToken(ctx, token0.TokenAddress)
	if err != nil {
		return fmt.Errorf("derive price %s: %w", token0.TokenAddress, err)
	}
	d1, err := e.pricing.FindEthPerToken(ctx, token1.TokenAddress)
	if err != nil {
		return fmt.Errorf("derive price %s: %w", token1.TokenAddress, err)
	}

	token0.DerivedETH = d0
	if err := e.tokens.Update(ctx, token0); err != nil {
		return fmt.Errorf("update token %s: %w", token0.TokenAddress, err)
	}
	token1.DerivedETH = d1
	if err := e.tokens.Update(ctx, token1); err != nil {
		return fmt.Errorf("update token %s: %w", token1.TokenAddress, err)
	}
	return nil
}

// newSnapshotID mints a snapshot row id.
func newSnapshotID() string {
	return uuid.NewString()
}
