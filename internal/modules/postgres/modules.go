package postgres

import (
	"context"
	"fmt"

	"sentiment_trader/internal/modules/config"
	"sentiment_trader/internal/repository/positions"
	"sentiment_trader/internal/runner"
	"sentiment_trader/pkg/db"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module — хранилище позиций: Postgres если задан db_dsn, иначе память.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			newStore,
		),
	)
}

func newStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (runner.Store, error) {
	if cfg.DB == "" {
		log.Warn("db_dsn is empty, positions are kept in memory only")
		return positions.NewMemory(), nil
	}

	ctx := context.Background()
	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN: cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	if err = poolMaster.Ping(ctx); err != nil {
		poolMaster.Close()
		return nil, err
	}

	tm := db.NewPgTxManager(poolMaster)
	store := positions.NewPG(tm)
	if err := store.Migrate(ctx); err != nil {
		tm.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			tm.Close()
			return nil
		},
	})
	return store, nil
}
