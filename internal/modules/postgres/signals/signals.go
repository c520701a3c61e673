package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"
)

// Repo — хранилище сигналов. Бизнес-логики тут нет: статусные переходы
// решает lifecycle-менеджер, репозиторий только читает и пишет.
type Repo struct {
	tm *db.PgTxManager
}

func New(tm *db.PgTxManager) *Repo {
	return &Repo{tm: tm}
}

const insertSQL = `
INSERT INTO signals (
	id, symbol, timeframe, entry_price, stop_loss, take_profit_1, take_profit_2,
	grade, risk_pct, position_size, rationale, triggers, status, tp1_hit,
	expires_at, triggered_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

func (r *Repo) Create(ctx context.Context, sig *models.Signal) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.Create: %w", err)
		}
	}()

	var triggers []byte
	triggers, err = sonic.Marshal(sig.Triggers)
	if err != nil {
		return err
	}

	return r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, errTx := tx.Exec(ctxTx, insertSQL,
			sig.ID, sig.Symbol, string(sig.Timeframe),
			sig.EntryPrice, sig.StopLoss, sig.TakeProfit1, sig.TakeProfit2,
			string(sig.Grade), sig.RiskPct, sig.PositionSize,
			sig.Rationale, triggers, string(sig.Status), sig.TP1Hit,
			sig.ExpiresAt, sig.TriggeredAt, sig.CreatedAt, sig.UpdatedAt,
		)
		return errTx
	})
}

const selectColumns = `
	id, symbol, timeframe, entry_price, stop_loss, take_profit_1, take_profit_2,
	grade, risk_pct, position_size, rationale, triggers, status, tp1_hit,
	expires_at, triggered_at, created_at, updated_at`

func (r *Repo) ListOpen(ctx context.Context) (sigs []*models.Signal, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.ListOpen: %w", err)
		}
	}()

	rows, err := r.tm.Conn().Query(ctx,
		`SELECT `+selectColumns+` FROM signals WHERE status IN ('pending','active') ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSignals(rows)
}

// UpdateStatus — CAS-переход: строка меняется только если статус всё ещё from
// и сам переход допустим по машине состояний. Возвращает false, если кто-то
// успел раньше (или статус уже терминальный).
func (r *Repo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.SignalStatus, at time.Time) (ok bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.UpdateStatus: %w", err)
		}
	}()

	if !from.CanTransition(to) {
		return false, nil
	}

	err = r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		var triggeredAt *time.Time
		if to == models.StatusTriggered {
			triggeredAt = &at
		}
		tag, errTx := tx.Exec(ctxTx,
			`UPDATE signals SET status=$1, triggered_at=COALESCE($2, triggered_at), updated_at=$3
			 WHERE id=$4 AND status=$5`,
			string(to), triggeredAt, at, id, string(from),
		)
		if errTx != nil {
			return errTx
		}
		ok = tag.RowsAffected() == 1
		return nil
	})
	return ok, err
}

func (r *Repo) MarkTP1Hit(ctx context.Context, id uuid.UUID, at time.Time) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.MarkTP1Hit: %w", err)
		}
	}()

	return r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, errTx := tx.Exec(ctxTx,
			`UPDATE signals SET tp1_hit=true, updated_at=$1 WHERE id=$2`, at, id)
		return errTx
	})
}

// ExpireDue переводит протухшие pending в expired одной транзакцией и
// возвращает затронутые сигналы. TTL ограничивает только ожидание входа:
// активные позиции закрывает цена или max-hold в менеджере. Повторный вызов
// без прошедшего времени — пустой результат (идемпотентность свипа).
func (r *Repo) ExpireDue(ctx context.Context, now time.Time) (expired []*models.Signal, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.ExpireDue: %w", err)
		}
	}()

	err = r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, errTx := tx.Query(ctxTx,
			`UPDATE signals SET status='expired', updated_at=$1
			 WHERE status='pending' AND expires_at <= $1
			 RETURNING `+selectColumns,
			now,
		)
		if errTx != nil {
			return errTx
		}
		defer rows.Close()
		expired, errTx = scanSignals(rows)
		return errTx
	})
	return expired, err
}

// ArchiveOlderThan — чистка терминальных сигналов по возрасту. Открытые
// не трогаем, даже если retention выставили меньше TTL.
func (r *Repo) ArchiveOlderThan(ctx context.Context, cutoff time.Time) (n int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Signals.ArchiveOlderThan: %w", err)
		}
	}()

	err = r.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		tag, errTx := tx.Exec(ctxTx, `DELETE FROM signals WHERE created_at < $1 AND status NOT IN ('pending','active')`, cutoff)
		if errTx != nil {
			return errTx
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}

func scanSignals(rows pgx.Rows) ([]*models.Signal, error) {
	var sigs []*models.Signal
	for rows.Next() {
		var (
			s        models.Signal
			tf       string
			grade    string
			status   string
			triggers []byte
		)
		if err := rows.Scan(
			&s.ID, &s.Symbol, &tf, &s.EntryPrice, &s.StopLoss, &s.TakeProfit1, &s.TakeProfit2,
			&grade, &s.RiskPct, &s.PositionSize, &s.Rationale, &triggers, &status, &s.TP1Hit,
			&s.ExpiresAt, &s.TriggeredAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		s.Timeframe = models.Timeframe(tf)
		s.Grade = models.Grade(grade)
		s.Status = models.SignalStatus(status)
		if len(triggers) > 0 {
			if err := sonic.Unmarshal(triggers, &s.Triggers); err != nil {
				return nil, err
			}
		}
		sigs = append(sigs, &s)
	}
	return sigs, rows.Err()
}
