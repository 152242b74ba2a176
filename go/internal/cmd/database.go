package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/puckdraft/go/internal/catalog"
	"github.com/mcdev12/puckdraft/go/internal/dbconfig"
	"github.com/mcdev12/puckdraft/go/internal/persistence"
)

func setupRepository(ctx context.Context, cfg StorageConfig) (persistence.Repository, error) {
	opts := persistence.Options{
		Driver:     cfg.Driver,
		SQLitePath: cfg.DBFile,
		MongoURI:   cfg.MongoURI,
		MongoDB:    cfg.MongoDB,
	}
	if cfg.Driver == persistence.DriverPostgres {
		opts.PostgresDSN = dbconfig.NewConfigFromEnv().DSN()
	}

	repo, err := persistence.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s repository: %w", cfg.Driver, err)
	}
	if err := repo.Ping(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to ping %s repository: %w", cfg.Driver, err)
	}

	log.Info().Str("driver", cfg.Driver).Msg("repository ready")
	return repo, nil
}

// setupCatalog loads players and applies eligible-position overrides. The
// returned updater keeps refreshing positions until stopped.
func setupCatalog(ctx context.Context, cfg CatalogConfig, clock clockwork.Clock) (*catalog.Store, *catalog.PositionsUpdater, error) {
	store := catalog.NewStore(clock)

	switch cfg.PlayersSource {
	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()
		pool, err := pgxpool.New(ctx, dbCfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		defer pool.Close()
		if _, err := store.LoadPlayersFromPostgres(ctx, pool); err != nil {
			return nil, nil, err
		}
	default:
		if _, err := store.LoadPlayersFromFile(cfg.PlayersFile); err != nil {
			return nil, nil, err
		}
	}

	provider := catalog.DefaultPositionsProvider(cfg.EligiblePositionsFile)
	updater := catalog.NewPositionsUpdater(store, provider, clock, 0)
	updater.Start(ctx)
	return store, updater, nil
}
