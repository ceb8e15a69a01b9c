package main

import (
	"context"

	"github.com/AntonStoeckl/process-projector-go/config"
	"github.com/AntonStoeckl/process-projector-go/projector"
	"github.com/AntonStoeckl/process-projector-go/projector/memengine"
	"github.com/AntonStoeckl/process-projector-go/projector/postgresengine"
)

// openDocumentStore returns the store for cfg.Engine and a func releasing its connections.
func openDocumentStore(ctx context.Context, cfg config.Config, obs observability) (projector.DocumentStore, func(), error) {
	if cfg.Engine == config.EngineMemory {
		return memengine.NewDocumentStore(), func() {}, nil
	}

	options := postgresOptions(cfg, obs)

	var (
		store   *postgresengine.DocumentStore
		release func()
		err     error
	)

	switch cfg.Engine {
	case config.EnginePGX:
		pool, openErr := config.OpenPGXPool(ctx, cfg.PostgresDSN)
		if openErr != nil {
			return nil, nil, openErr
		}
		release = pool.Close
		store, err = postgresengine.NewDocumentStoreFromPGXPool(pool, options...)

	case config.EngineSQLDB:
		db, openErr := config.OpenSQLDB(ctx, cfg.PostgresDSN)
		if openErr != nil {
			return nil, nil, openErr
		}
		release = func() { _ = db.Close() }
		store, err = postgresengine.NewDocumentStoreFromSQLDB(db, options...)

	default:
		db, openErr := config.OpenSQLX(ctx, cfg.PostgresDSN)
		if openErr != nil {
			return nil, nil, openErr
		}
		release = func() { _ = db.Close() }
		store, err = postgresengine.NewDocumentStoreFromSQLX(db, options...)
	}

	if err != nil {
		release()
		return nil, nil, err
	}

	if err := store.CreateSchema(ctx); err != nil {
		release()
		return nil, nil, err
	}

	return store, release, nil
}

func postgresOptions(cfg config.Config, obs observability) []postgresengine.Option {
	options := []postgresengine.Option{
		postgresengine.WithTableName(cfg.DocumentTable),
		postgresengine.WithLogger(obs.logger),
	}

	if obs.contextualLogger != nil {
		options = append(options, postgresengine.WithContextualLogger(obs.contextualLogger))
	}
	if obs.metrics != nil {
		options = append(options, postgresengine.WithMetrics(obs.metrics))
	}
	if obs.tracing != nil {
		options = append(options, postgresengine.WithTracing(obs.tracing))
	}

	return options
}
