package pairs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"
)

// Repo — watchlist инструментов.
type Repo struct {
	tm *db.PgTxManager
}

func New(tm *db.PgTxManager) *Repo {
	return &Repo{tm: tm}
}

func (r *Repo) List(ctx context.Context) (pairs []models.PairWatch, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Pairs.List: %w", err)
		}
	}()
	return r.list(ctx, `SELECT symbol, enabled, added_at FROM pairs ORDER BY symbol`)
}

func (r *Repo) ListEnabled(ctx context.Context) (pairs []models.PairWatch, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Pairs.ListEnabled: %w", err)
		}
	}()
	return r.list(ctx, `SELECT symbol, enabled, added_at FROM pairs WHERE enabled ORDER BY symbol`)
}

func (r *Repo) list(ctx context.Context, query string) ([]models.PairWatch, error) {
	rows, err := r.tm.Conn().Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []models.PairWatch
	for rows.Next() {
		var p models.PairWatch
		if err := rows.Scan(&p.Symbol, &p.Enabled, &p.AddedAt); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// IsEnabled — гейт admission control: неизвестная пара считается выключенной.
func (r *Repo) IsEnabled(ctx context.Context, symbol string) (enabled bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Pairs.IsEnabled: %w", err)
		}
	}()

	err = r.tm.Conn().QueryRow(ctx,
		`SELECT enabled FROM pairs WHERE symbol=$1`, symbol).Scan(&enabled)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	return enabled, err
}

func (r *Repo) SetEnabled(ctx context.Context, symbol string, enabled bool) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Pairs.SetEnabled: %w", err)
		}
	}()

	return r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, errTx := tx.Exec(ctxTx, `UPDATE pairs SET enabled=$1 WHERE symbol=$2`, enabled, symbol)
		return errTx
	})
}

// Ensure досоздаёт отсутствующие пары (bootstrap при первом старте).
func (r *Repo) Ensure(ctx context.Context, symbols []string) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Pairs.Ensure: %w", err)
		}
	}()

	return r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for _, s := range symbols {
			_, errTx := tx.Exec(ctxTx,
				`INSERT INTO pairs (symbol, enabled, added_at) VALUES ($1, true, now())
				 ON CONFLICT (symbol) DO NOTHING`, s)
			if errTx != nil {
				return errTx
			}
		}
		return nil
	})
}
