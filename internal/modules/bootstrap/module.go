package bootstrap

import (
	"context"

	"go.uber.org/fx"

	bootstrap "signal_bot/internal/modules/bootstrap/service"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			bootstrap.NewWarmuper,
		),
		fx.Invoke(func(lc fx.Lifecycle, wu *bootstrap.Warmuper) {
			lc.Append(fx.Hook{
				// warmup синхронный: пока схема не готова, остальные модули
				// стартовать не должны
				OnStart: func(ctx context.Context) error {
					return wu.Warmup(ctx)
				},
			})
		}),
	)
}
