package riskprofile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"
)

// Repo — глобальный риск-профиль. Одна строка с id=1.
type Repo struct {
	tm *db.PgTxManager
}

func New(tm *db.PgTxManager) *Repo {
	return &Repo{tm: tm}
}

func (r *Repo) Get(ctx context.Context) (profile models.RiskProfile, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("RiskProfile.Get: %w", err)
		}
	}()

	var maxHoldSec, ttlSec int64
	err = r.tm.Conn().QueryRow(ctx,
		`SELECT risk_pct, account_equity, max_concurrent, max_hold_sec, ttl_sec, updated_at
		 FROM risk_profiles WHERE id=1`,
	).Scan(&profile.RiskPct, &profile.AccountEquity, &profile.MaxConcurrentSignals,
		&maxHoldSec, &ttlSec, &profile.UpdatedAt)
	if err != nil {
		return profile, err
	}
	profile.MaxHoldDuration = time.Duration(maxHoldSec) * time.Second
	profile.SignalTTL = time.Duration(ttlSec) * time.Second
	return profile, nil
}

func (r *Repo) SetRiskPct(ctx context.Context, pct float64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("RiskProfile.SetRiskPct: %w", err)
		}
	}()

	return r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, errTx := tx.Exec(ctxTx,
			`UPDATE risk_profiles SET risk_pct=$1, updated_at=now() WHERE id=1`, pct)
		return errTx
	})
}

// Ensure создаёт строку профиля при первом старте.
func (r *Repo) Ensure(ctx context.Context, def models.RiskProfile) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("RiskProfile.Ensure: %w", err)
		}
	}()

	return r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, errTx := tx.Exec(ctxTx,
			`INSERT INTO risk_profiles (id, risk_pct, account_equity, max_concurrent, max_hold_sec, ttl_sec, updated_at)
			 VALUES (1, $1, $2, $3, $4, $5, now())
			 ON CONFLICT (id) DO NOTHING`,
			def.RiskPct, def.AccountEquity, def.MaxConcurrentSignals,
			int64(def.MaxHoldDuration.Seconds()), int64(def.SignalTTL.Seconds()),
		)
		return errTx
	})
}
