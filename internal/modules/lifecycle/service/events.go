package service

import "signal_bot/internal/models"

type EventKind string

const (
	EventCreated   EventKind = "created"   // сигнал прошёл admission
	EventActivated EventKind = "activated" // цена дошла до входа
	EventTP1       EventKind = "tp1"       // первый тейк тронут, сигнал живёт
	EventTP2       EventKind = "tp2"       // второй тейк, терминально
	EventStopped   EventKind = "stopped"   // стоп, терминально
	EventExpired   EventKind = "expired"   // TTL вышел
	EventCancelled EventKind = "cancelled"
)

// Event — уведомление о переходе. Публикуется после коммита в стор,
// доставка best-effort: потерянный эвент не откатывает переход.
type Event struct {
	Kind   EventKind
	Signal models.Signal
	Price  float64 // цена, вызвавшая переход (0 для sweep/команд)
}
