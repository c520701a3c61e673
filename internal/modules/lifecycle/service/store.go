package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"signal_bot/internal/models"
)

// ErrAdmissionRejected — кандидат не прошёл admission control. Это не сбой:
// причина логируется, юзер ничего не видит.
var ErrAdmissionRejected = errors.New("admission rejected")

// SignalStore — граница персистентности. Запись в стор — commit point
// перехода: менеджер не меняет свой in-memory набор, пока стор не подтвердил.
// Сам стор бизнес-логики не содержит.
type SignalStore interface {
	Create(ctx context.Context, sig *models.Signal) error
	ListOpen(ctx context.Context) ([]*models.Signal, error)
	// UpdateStatus — CAS: false если статус уже не from или переход
	// запрещён машиной состояний (models.SignalStatus.CanTransition).
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.SignalStatus, at time.Time) (bool, error)
	MarkTP1Hit(ctx context.Context, id uuid.UUID, at time.Time) error
	// ExpireDue протухает только pending: TTL — окно ожидания входа.
	ExpireDue(ctx context.Context, now time.Time) ([]*models.Signal, error)
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PairGate — проверка, что пара включена в watchlist.
type PairGate interface {
	IsEnabled(ctx context.Context, symbol string) (bool, error)
}
