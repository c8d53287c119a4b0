package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marketmill/rotor/internal/application"
	"github.com/marketmill/rotor/internal/catalyst"
	"github.com/marketmill/rotor/internal/domain/portfolio"
	"github.com/marketmill/rotor/internal/persistence"
	"github.com/marketmill/rotor/internal/persistence/postgres"
	"github.com/marketmill/rotor/internal/provider"
	"github.com/marketmill/rotor/internal/telemetry"
	"github.com/marketmill/rotor/internal/universe"
)

// app holds the assembled collaborators for one command invocation.
type app struct {
	cfg     application.Config
	data    *provider.YahooProvider
	cache   *provider.CandleCache
	store   *postgres.Store // nil when the database is disabled
	metrics *telemetry.Metrics
	cycle   *application.Cycle
	watch   *universe.Watchlist
	log     zerolog.Logger
}

// buildApp wires provider, cache, stores and the cycle runner from config.
func buildApp(cfg application.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, metrics: telemetry.NewMetrics(), log: logger}

	watch, err := universe.Load(cfg.WatchlistPath)
	if err != nil {
		return nil, err
	}
	a.watch = watch

	if cfg.Cache.Enabled {
		cache, err := provider.NewCandleCache(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.CacheTTL(), logger)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}
	a.data = provider.NewYahooProvider(cfg.ProviderConfig(), a.cache, logger)

	if cfg.Database.Enabled {
		store, err := postgres.Connect(cfg.Database.DSN)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = store
	}

	a.cycle = application.NewCycle(cfg, a.data, catalyst.NewWeightedScanner(logger), logger).
		WithMetrics(a.metrics)
	if a.store != nil {
		a.cycle.WithStores(a.store, a.store)
	}
	return a, nil
}

func (a *app) close() {
	if a.data != nil {
		a.data.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// loadPortfolio restores the saved ledger, or seeds a fresh one with the
// configured capital on first run.
func (a *app) loadPortfolio(ctx context.Context) (*portfolio.Portfolio, error) {
	if a.store == nil {
		return portfolio.New(a.cfg.Capital)
	}

	snap, err := a.store.Load(ctx)
	if errors.Is(err, persistence.ErrNotFound) {
		a.log.Info().Float64("capital", a.cfg.Capital).Msg("no saved state, starting fresh")
		return portfolio.New(a.cfg.Capital)
	}
	if err != nil {
		return nil, err
	}

	p, err := portfolio.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("saved state unusable: %w", err)
	}
	a.log.Info().
		Float64("total_value", p.TotalValue()).
		Int("positions", p.NumPositions()).
		Msg("restored saved portfolio")
	return p, nil
}
