package postgres

import (
	"context"
	"fmt"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/postgres/pairs"
	"signal_bot/internal/modules/postgres/riskprofile"
	"signal_bot/internal/modules/postgres/signals"
	"signal_bot/pkg/db"

	"go.uber.org/fx"
)

// Пул, транзакционный менеджер и репозитории.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
			signals.New,     // *signals.Repo
			pairs.New,       // *pairs.Repo
			riskprofile.New, // *riskprofile.Repo
		),
	)
}
