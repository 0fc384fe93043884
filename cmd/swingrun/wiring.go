package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	redisv8 "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/swingrun/internal/config"
	"github.com/sawpanic/swingrun/internal/data"
	"github.com/sawpanic/swingrun/internal/data/cache"
	"github.com/sawpanic/swingrun/internal/domain/market"
	"github.com/sawpanic/swingrun/internal/infrastructure/db"
	"github.com/sawpanic/swingrun/internal/persistence"
	"github.com/sawpanic/swingrun/internal/persistence/redisstore"
)

// stores bundles the persistence handles a command needs
type stores struct {
	profiles    persistence.ProfileStore
	integration *db.Integration
	closers     []func() error
}

// Backtests returns the run repository, or nil without a database
func (s *stores) Backtests() persistence.BacktestRepo {
	if s.integration == nil {
		return nil
	}
	return s.integration.Backtests()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// openStores selects the profile store named by calibration.store. The
// database integration is opened whenever it is enabled so backtest runs can
// be persisted regardless of where profiles live.
func openStores(ctx context.Context, cfg *config.AppConfig) (*stores, error) {
	s := &stores{}

	if cfg.Database.Enabled {
		integration, err := db.NewIntegration(cfg.Database, cfg.Calibration.ProfileDir)
		if err != nil {
			return nil, err
		}
		if err := integration.Manager().EnsureSchema(ctx); err != nil {
			integration.Close()
			return nil, err
		}
		s.integration = integration
		s.closers = append(s.closers, integration.Close)
	}

	switch cfg.Calibration.Store {
	case config.StorePostgres:
		if s.integration == nil {
			s.Close()
			return nil, fmt.Errorf("calibration.store %q requires database.enabled", config.StorePostgres)
		}
		s.profiles = s.integration.Profiles()
	case config.StoreRedis:
		client := redisv8.NewClient(&redisv8.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		store := redisstore.New(client, cfg.Cache.ProfilePrefix, cfg.Cache.ProfileTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			client.Close()
			s.Close()
			return nil, err
		}
		s.profiles = store
		s.closers = append(s.closers, client.Close)
	default:
		store, err := persistence.NewFileProfileStore(cfg.Calibration.ProfileDir)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.profiles = store
	}

	log.Debug().Str("store", cfg.Calibration.Store).Bool("db_enabled", s.integration != nil).Msg("Stores opened")
	return s, nil
}

// buildSource layers rate limiting and caching over the CSV or synthetic source
func buildSource(ctx context.Context, cfg *config.AppConfig, synthetic bool, symbols []string) (data.BarSource, func(), error) {
	cleanup := func() {}

	var src data.BarSource
	if synthetic {
		src = syntheticSource(symbols, cfg.WalkForward.MinBarsRequired+250)
	} else {
		src = data.NewCSVSource(cfg.Data.CSVDir)
		if cfg.Data.RPS > 0 {
			src = data.NewRateLimitedSource(src, cfg.Data.RPS, cfg.Data.Burst)
		}
	}

	if !cfg.Cache.Enabled {
		return src, cleanup, nil
	}

	if cfg.Cache.RedisAddr != "" {
		rdb, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return nil, cleanup, fmt.Errorf("bar cache: %w", err)
		}
		cleanup = func() { rdb.Close() }
		return data.NewCachedSource(src, cache.NewRedisBarCache(rdb, cfg.Cache.BarPrefix, cfg.Cache.BarTTL)), cleanup, nil
	}
	return data.NewCachedSource(src, cache.NewMemoryBarCache(cfg.Cache.MaxSymbols, cfg.Cache.BarTTL)), cleanup, nil
}

// syntheticSource generates a deterministic series per symbol, seeded from its name
func syntheticSource(symbols []string, bars int) *data.MemorySource {
	src := data.NewMemorySource()
	for _, sym := range symbols {
		sym = data.NormalizeSymbol(sym)
		if sym == "" {
			continue
		}
		h := fnv.New64a()
		h.Write([]byte(sym))

		sc := market.DefaultSyntheticConfig()
		sc.Bars = bars
		sc.Seed = int64(h.Sum64() & 0x7fffffffffffffff)
		src.Put(sym, market.Synthetic(sc))
	}
	return src
}
