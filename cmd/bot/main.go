package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"signal_bot/internal/modules/bootstrap"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/lifecycle"
	"signal_bot/internal/modules/marketdata"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/scanner"
	telegram "signal_bot/internal/modules/telegram_bot"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

const serviceName = "signal_bot"

func main() {
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			func(cfg *config.Config) (closeTracer func(), err error) {
				_, closeTracer, err = tracing.InitTracer(tracing.Config{
					Host: cfg.Jaeger.Host,
					Port: cfg.Jaeger.Port,
				})
				return closeTracer, err
			},
		),
		config.Module(),
		postgres.Module(),
		bootstrap.Module(),
		lifecycle.Module(),
		marketdata.Module(),
		scanner.Module(),
		telegram.Module(),
		health.Module(),

		fx.Invoke(func(lc fx.Lifecycle, closeTracer func()) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
		}),
	)

	app.Run()
}
