// Package app wires configuration into concrete collaborators shared by the
// binaries: stores, providers, the safety gate, the strategy engine, the
// discovery sources and the publisher.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"solana-signal-engine/internal/bus"
	"solana-signal-engine/internal/config"
	"solana-signal-engine/internal/guard"
	"solana-signal-engine/internal/ingestion"
	"solana-signal-engine/internal/logging"
	"solana-signal-engine/internal/provider"
	"solana-signal-engine/internal/provider/birdeye"
	"solana-signal-engine/internal/provider/jupiter"
	"solana-signal-engine/internal/solana"
	"solana-signal-engine/internal/storage"
	chstore "solana-signal-engine/internal/storage/clickhouse"
	"solana-signal-engine/internal/storage/memory"
	"solana-signal-engine/internal/storage/migrations"
	pgstore "solana-signal-engine/internal/storage/postgres"
	"solana-signal-engine/internal/strategy"
)

// Dependencies bundles the collaborators built from configuration.
type Dependencies struct {
	// Stores
	Positions storage.PositionStore
	Journal   storage.SignalStore
	Liquidity storage.LiquidityTimeseriesStore

	// Providers; MarketData serves liquidity history from Liquidity
	MarketData provider.MarketData
	Quotes     provider.QuoteProvider

	Publisher bus.Publisher
}

// Wire constructs the stores, providers and publisher. The returned cleanup
// releases connections in reverse order and must be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, func(), error) {
	logger = logging.Component(logger, "wire")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if cfg.Storage.UseMemory {
		deps.Positions = memory.NewPositionStore()
		deps.Journal = memory.NewSignalStore()
		deps.Liquidity = memory.NewLiquidityTimeseriesStore()
		logger.Info().Msg("using in-memory storage")
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
		deps.Positions = pgstore.NewPositionStore(pool)

		if cfg.Storage.ClickHouseDSN != "" {
			conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickHouseDSN)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: clickhouse: %w", err)
			}
			closers = append(closers, func() { _ = conn.Close() })
			deps.Journal = chstore.NewSignalStore(conn)
			deps.Liquidity = chstore.NewLiquidityTimeseriesStore(conn)
		} else {
			logger.Warn().Msg("clickhouse_dsn not set, journal and liquidity history kept in memory")
			deps.Journal = memory.NewSignalStore()
			deps.Liquidity = memory.NewLiquidityTimeseriesStore()
		}
	}

	md := birdeye.NewClient(cfg.Providers.MarketDataAPIKey,
		birdeye.WithBaseURL(cfg.Providers.MarketDataURL),
		birdeye.WithTimeout(cfg.Providers.Timeout),
		birdeye.WithMaxRetries(cfg.Providers.MaxRetries),
	)
	deps.MarketData = provider.WithLiquidityHistory(md, deps.Liquidity)
	deps.Quotes = jupiter.NewClient(
		jupiter.WithBaseURL(cfg.Providers.QuoteURL),
		jupiter.WithTimeout(cfg.Providers.Timeout),
		jupiter.WithMaxRetries(cfg.Providers.MaxRetries),
	)

	if cfg.Bus.Addr != "" {
		pub, err := bus.DialRedis(ctx, cfg.Bus)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		closers = append(closers, func() { _ = pub.Close() })
		deps.Publisher = pub
		logger.Info().Str("addr", cfg.Bus.Addr).Str("prefix", cfg.Bus.Prefix).Msg("publishing to redis")
	} else {
		deps.Publisher = bus.NewMemoryPublisher(0)
		logger.Warn().Msg("bus.addr not set, signals are only journaled and logged")
	}

	return deps, cleanup, nil
}

// NewEngine builds the safety gate and the strategy engine.
func NewEngine(cfg *config.Config, deps *Dependencies, logger zerolog.Logger) (*strategy.Engine, error) {
	gate, err := guard.New(deps.MarketData, deps.Quotes, cfg.Guard, guard.Options{
		Logger: logging.Component(logger, "guard"),
	})
	if err != nil {
		return nil, err
	}
	return strategy.NewEngine(cfg.StrategyConfig(), gate, deps.MarketData, deps.Positions, strategy.Options{
		Logger: logging.Component(logger, "strategy"),
	})
}

// NewSources builds the enabled discovery sources. The returned cleanup
// closes the Solana WebSocket connection, if one was opened.
func NewSources(ctx context.Context, cfg *config.Config, md provider.MarketData, logger zerolog.Logger) ([]ingestion.Source, func(), error) {
	var sources []ingestion.Source
	cleanup := func() {}

	if cfg.Sources.NewPool.Enabled {
		ws, err := solana.NewWSClient(ctx, cfg.Providers.SolanaWS, &solana.WSClientConfig{Logger: logger})
		if err != nil {
			return nil, nil, fmt.Errorf("wire: solana ws: %w", err)
		}
		cleanup = func() { _ = ws.Close() }

		rpc := solana.NewHTTPClient(cfg.Providers.SolanaRPC,
			solana.WithTimeout(cfg.Providers.Timeout),
			solana.WithMaxRetries(cfg.Providers.MaxRetries),
		)
		sources = append(sources, ingestion.NewNewPoolSource(ws, rpc, ingestion.NewPoolSourceOptions{
			FetchWorkers: cfg.Sources.NewPool.FetchWorkers,
			Logger:       logger,
		}))
	}

	if t := cfg.Sources.Trending; t.Enabled {
		sources = append(sources, ingestion.NewTrendingSource(md, ingestion.PollOptions{
			Interval: t.Interval,
			Limit:    t.Limit,
			Logger:   logger,
		}))
	}

	if f := cfg.Sources.Flow; f.Enabled {
		sources = append(sources, ingestion.NewFlowSource(md, ingestion.FlowOptions{
			PollOptions: ingestion.PollOptions{
				Interval: f.Interval,
				Limit:    f.Limit,
				Logger:   logger,
			},
			Window:          f.Window,
			MinNetInflowUSD: f.MinNetInflowUSD,
		}))
	}

	return sources, cleanup, nil
}

// NewSampler builds the liquidity sampler feeding deps.Liquidity.
func NewSampler(cfg *config.Config, deps *Dependencies, logger zerolog.Logger) *ingestion.LiquiditySampler {
	l := cfg.Sources.Liquidity
	return ingestion.NewLiquiditySampler(deps.MarketData, deps.Liquidity, ingestion.SamplerOptions{
		Interval:   l.Interval,
		TrackFor:   l.TrackFor,
		MaxTracked: l.MaxTracked,
		Logger:     logging.Component(logger, "liquidity_sampler"),
	})
}
