package telegram

import (
	"context"

	"go.uber.org/fx"

	lifecycle "signal_bot/internal/modules/lifecycle/service"
	"signal_bot/internal/modules/telegram_bot/service"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			service.NewTelegram,
		),
		fx.Invoke(func(lc fx.Lifecycle, t *service.Telegram, events <-chan lifecycle.Event, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go t.Start(ctx)
					go t.Notify(ctx, events)
					return nil
				},
			})
		}),
	)
}
