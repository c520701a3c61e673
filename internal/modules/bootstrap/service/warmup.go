package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/postgres/pairs"
	"signal_bot/internal/modules/postgres/riskprofile"
	"signal_bot/pkg/db"
	"signal_bot/pkg/logger"
)

// Warmuper готовит базу к работе: схема, дефолтный watchlist и строка
// риск-профиля. Все шаги идемпотентны, повторный старт ничего не ломает.
type Warmuper struct {
	tm       *db.PgTxManager
	pairs    *pairs.Repo
	profiles *riskprofile.Repo
	cfg      *config.Config
}

func NewWarmuper(tm *db.PgTxManager, p *pairs.Repo, rp *riskprofile.Repo, cfg *config.Config) *Warmuper {
	return &Warmuper{tm: tm, pairs: p, profiles: rp, cfg: cfg}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		id            uuid PRIMARY KEY,
		symbol        text NOT NULL,
		timeframe     text NOT NULL,
		entry_price   double precision NOT NULL,
		stop_loss     double precision NOT NULL,
		take_profit_1 double precision NOT NULL,
		take_profit_2 double precision NOT NULL,
		grade         text NOT NULL,
		risk_pct      double precision NOT NULL,
		position_size double precision NOT NULL,
		rationale     text NOT NULL DEFAULT '',
		triggers      jsonb,
		status        text NOT NULL,
		tp1_hit       boolean NOT NULL DEFAULT false,
		expires_at    timestamptz NOT NULL,
		triggered_at  timestamptz,
		created_at    timestamptz NOT NULL,
		updated_at    timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS signals_status_idx ON signals (status)`,
	`CREATE INDEX IF NOT EXISTS signals_symbol_idx ON signals (symbol)`,
	`CREATE INDEX IF NOT EXISTS signals_created_at_idx ON signals (created_at)`,
	`CREATE TABLE IF NOT EXISTS pairs (
		symbol   text PRIMARY KEY,
		enabled  boolean NOT NULL DEFAULT true,
		added_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS risk_profiles (
		id             int PRIMARY KEY,
		risk_pct       double precision NOT NULL,
		account_equity double precision NOT NULL,
		max_concurrent int NOT NULL,
		max_hold_sec   bigint NOT NULL,
		ttl_sec        bigint NOT NULL,
		updated_at     timestamptz NOT NULL
	)`,
}

func (w *Warmuper) Warmup(ctx context.Context) error {
	started := time.Now()

	err := w.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, errTx := tx.Exec(ctxTx, stmt); errTx != nil {
				return errTx
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := w.pairs.Ensure(ctx, w.cfg.DefaultPairs); err != nil {
		return err
	}

	if err := w.profiles.Ensure(ctx, models.RiskProfile{
		RiskPct:              w.cfg.Risk.RiskPct,
		AccountEquity:        w.cfg.Risk.AccountEquity,
		MaxConcurrentSignals: w.cfg.Risk.MaxConcurrentSignals,
		MaxHoldDuration:      w.cfg.Risk.MaxHoldDuration,
		SignalTTL:            w.cfg.Risk.SignalTTL,
	}); err != nil {
		return err
	}

	logger.Info("warmup done in %s: %d pairs seeded", time.Since(started).Round(time.Millisecond), len(w.cfg.DefaultPairs))
	return nil
}
