// Command indexer runs the full pipeline: block subscription, event replay,
// interval aggregation and contest scoring, backed by PostgreSQL and
// ClickHouse.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starkdex-indexer/internal/config"
	"starkdex-indexer/internal/intervals"
	"starkdex-indexer/internal/leaderboard"
	"starkdex-indexer/internal/observability"
	"starkdex-indexer/internal/pricing"
	"starkdex-indexer/internal/rpc"
	"starkdex-indexer/internal/scheduler"
	chstore "starkdex-indexer/internal/storage/clickhouse"
	"starkdex-indexer/internal/storage/migrations"
	pgstore "starkdex-indexer/internal/storage/postgres"
	"starkdex-indexer/internal/transform"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage.
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
	if err != nil {
		return fmt.Errorf("clickhouse migrations: %w", err)
	}
	defer chConn.Close()

	factories := pgstore.NewFactoryStore(pool)
	pools := pgstore.NewPoolStore(pool)
	tokens := pgstore.NewTokenStore(pool)
	positions := pgstore.NewPositionStore(pool)
	events := pgstore.NewRawEventStore(pool)
	posSnapshots := pgstore.NewPositionSnapshotStore(pool)
	volumeSnapshots := pgstore.NewVolumeSnapshotStore(pool)
	board := pgstore.NewLeaderboardStore(pool)
	blocks := pgstore.NewBlockStore(pool)

	poolBuckets := chstore.NewPoolBucketStore(chConn)
	tokenBuckets := chstore.NewTokenBucketStore(chConn)
	factoryBuckets := chstore.NewFactoryBucketStore(chConn)

	// Chain access.
	chain := rpc.NewHTTPClient(cfg.Chain.RPCURL,
		rpc.WithTimeout(cfg.Chain.Timeout),
		rpc.WithMaxRetries(cfg.Chain.MaxRetries),
	)

	subscriber, err := rpc.NewBlockSubscriber(ctx, cfg.Chain.WSURL, blocks, logger, nil)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer subscriber.Close()

	// Engines.
	aggregator := intervals.NewAggregator(poolBuckets, tokenBuckets, factoryBuckets)
	priceCtx := pricing.NewContext(pools, tokens)

	engine := transform.NewEngine(transform.Config{
		Factories:       factories,
		Pools:           pools,
		Tokens:          tokens,
		Positions:       positions,
		Events:          events,
		PosSnapshots:    posSnapshots,
		VolumeSnapshots: volumeSnapshots,
		Aggregator:      aggregator,
		Pricing:         priceCtx,
		Chain:           chain,
		Logger:          logger,
	})

	registry := leaderboard.NewRegistry()
	registry.Register(leaderboard.SourceNFT, leaderboard.NewNFTSource(positions, chain))

	contests := leaderboard.NewEngine(leaderboard.Config{
		Registry:        registry,
		Positions:       positions,
		Snapshots:       posSnapshots,
		VolumeSnapshots: volumeSnapshots,
		Blocks:          blocks,
		TokenBuckets:    tokenBuckets,
		Pools:           pools,
		Board:           board,
		Logger:          logger,
	})

	sched := scheduler.NewScheduler(engine, contests,
		cfg.Scheduler.PollInterval, cfg.Scheduler.CatchupInterval, logger)
	sched.Start(ctx)

	// Metrics endpoint.
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: newMetricsMux(cfg.Metrics.Path),
	}
	go func() {
		logger.Info("metrics server listening", "addr", metricsSrv.Addr, "path", cfg.Metrics.Path)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	logger.Info("indexer started",
		"rpc", cfg.Chain.RPCURL,
		"poll_interval", cfg.Scheduler.PollInterval,
		"catchup_interval", cfg.Scheduler.CatchupInterval,
	)

	// Block until a shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown", "error", err)
	}

	return nil
}

func newMetricsMux(path string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path, observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
