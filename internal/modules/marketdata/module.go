package marketdata

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	"signal_bot/internal/modules/marketdata/service"
	"signal_bot/internal/modules/postgres/pairs"
)

func newTicksChan() chan models.PriceTick {
	return make(chan models.PriceTick, 1024)
}
func asReceiveOnlyTicks(ch chan models.PriceTick) <-chan models.PriceTick { return ch }

// Module поднимает REST-клиент свечей и miniTicker-стрим цен.
func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			newTicksChan,
			asReceiveOnlyTicks,

			func(cfg *config.Config) *service.Client {
				return service.NewClient(service.ClientConfig{
					BaseURL: cfg.Exchange.RESTBaseURL,
					RPS:     cfg.Exchange.RPS,
					Burst:   cfg.Exchange.Burst,
				})
			},
			func(cfg *config.Config, p *pairs.Repo, st *healthsvc.State) *service.Stream {
				return service.NewStream(service.StreamConfig{WSURL: cfg.Exchange.WSBaseURL}, p, st)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Stream, ticks chan models.PriceTick, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go s.Run(ctx, ticks)
					return nil
				},
			})
		}),
	)
}
