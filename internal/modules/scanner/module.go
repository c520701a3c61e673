package scanner

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"

	"signal_bot/internal/detector"
	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	lifecycle "signal_bot/internal/modules/lifecycle/service"
	marketdata "signal_bot/internal/modules/marketdata/service"
	"signal_bot/internal/modules/postgres/pairs"
	"signal_bot/internal/modules/postgres/riskprofile"
	"signal_bot/internal/modules/scanner/service"
	"signal_bot/internal/risk"
	"signal_bot/pkg/logger"
)

// Module собирает сканер и вешает его на крон: цикл каждые cfg.Scanner.Interval,
// чистка истории раз в сутки.
func Module() fx.Option {
	return fx.Module("scanner",
		fx.Provide(
			func() *service.Metrics {
				m := service.NewMetrics()
				m.Register(prometheus.DefaultRegisterer)
				return m
			},

			func(
				cfg *config.Config,
				client *marketdata.Client,
				p *pairs.Repo,
				rp *riskprofile.Repo,
				m *lifecycle.Manager,
				policy detector.Policy,
				indCfg indicator.Config,
				riskCfg risk.Config,
				metrics *service.Metrics,
			) *service.Scanner {
				return service.NewScanner(service.Config{
					Workers:      cfg.Scanner.Workers,
					FetchTimeout: cfg.Scanner.FetchTimeout,
					CandleLimit:  cfg.Scanner.CandleLimit,
					TrendTF:      models.Timeframe(cfg.Timeframes.Trend),
					EntryTF:      models.Timeframe(cfg.Timeframes.Entry),
					ConfirmTF:    models.Timeframe(cfg.Timeframes.Confirm),
				}, client, p, rp, m, policy, indCfg, riskCfg, metrics)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *service.Scanner, ctx context.Context) error {
			c := cron.New()
			if _, err := c.AddFunc("@every "+cfg.Scanner.Interval.String(), func() {
				s.Scan(ctx)
			}); err != nil {
				return err
			}
			if _, err := c.AddFunc("0 4 * * *", func() {
				s.Archive(ctx, cfg.Risk.Retention)
			}); err != nil {
				return err
			}

			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					c.Start()
					// первый проход сразу, не ждём крона
					go s.Scan(ctx)
					logger.Info("scanner started, interval %s, %d workers", cfg.Scanner.Interval, cfg.Scanner.Workers)
					return nil
				},
				OnStop: func(context.Context) error {
					<-c.Stop().Done()
					return nil
				},
			})
			return nil
		}),
	)
}
