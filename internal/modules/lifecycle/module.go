package lifecycle

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/lifecycle/service"
	"signal_bot/internal/modules/postgres/pairs"
	"signal_bot/internal/modules/postgres/signals"
	"signal_bot/pkg/logger"
)

func newEventsChan() chan service.Event {
	return make(chan service.Event, 256)
}
func asSendOnlyEvents(ch chan service.Event) chan<- service.Event    { return ch }
func asReceiveOnlyEvents(ch chan service.Event) <-chan service.Event { return ch }

func newCommandsChan() chan models.Command {
	return make(chan models.Command, 64)
}
func asSendOnlyCommands(ch chan models.Command) chan<- models.Command { return ch }

func Module() fx.Option {
	return fx.Module("lifecycle",
		fx.Provide(
			newEventsChan,
			asSendOnlyEvents,
			asReceiveOnlyEvents,
			newCommandsChan,
			asSendOnlyCommands,

			// Стор и гейт — это pg-репозитории за узкими интерфейсами.
			func(r *signals.Repo) service.SignalStore { return r },
			func(r *pairs.Repo) service.PairGate { return r },

			func(cfg *config.Config, store service.SignalStore, gate service.PairGate, events chan<- service.Event) *service.Manager {
				return service.NewManager(store, gate, service.Config{
					CooldownPerPair: cfg.Risk.CooldownPerPair,
				}, events)
			},
		),

		// Цикл команд и прайс-тиков: единственная горутина, дёргающая менеджер
		// снаружи скан-цикла.
		fx.Invoke(func(
			lc fx.Lifecycle,
			m *service.Manager,
			cmds chan models.Command,
			ticks <-chan models.PriceTick,
			ctx context.Context,
		) {
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if err := m.Reload(startCtx); err != nil {
						return err
					}
					go func() {
						for {
							select {
							case <-ctx.Done():
								return
							case cmd := <-cmds:
								if err := m.Handle(ctx, cmd); err != nil {
									logger.Error("lifecycle command %s: %v", cmd.Kind, err)
								}
							case tick := <-ticks:
								if err := m.OnPrice(ctx, tick); err != nil {
									logger.Error("lifecycle price %s: %v", tick.Symbol, err)
								}
							}
						}
					}()
					return nil
				},
			})
		}),
	)
}
