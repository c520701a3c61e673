package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

type Config struct {
	// Кулдаун на пару после терминального статуса: сразу пересоздавать
	// сигнал по той же паре смысла нет.
	CooldownPerPair time.Duration
}

// Manager — единственный владелец множества открытых сигналов и
// единственный писатель статусных переходов. Все мутации сериализованы
// мьютексом по дисциплине read-snapshot, decide, write-commit: под замком
// читается открытый набор, принимается решение и пишется стор. Коммит
// стора — commit point; упала запись — in-memory состояние не тронуто.
type Manager struct {
	store  SignalStore
	gate   PairGate
	cfg    Config
	events chan<- Event

	mu          sync.Mutex
	open        map[uuid.UUID]*models.Signal
	bySymbol    map[string]uuid.UUID // максимум один открытый сигнал на пару
	cooldownTil map[string]time.Time
	muted       bool

	// Подменяется в тестах.
	Now func() time.Time
}

func NewManager(store SignalStore, gate PairGate, cfg Config, events chan<- Event) *Manager {
	return &Manager{
		store:       store,
		gate:        gate,
		cfg:         cfg,
		events:      events,
		open:        make(map[uuid.UUID]*models.Signal),
		bySymbol:    make(map[string]uuid.UUID),
		cooldownTil: make(map[string]time.Time),
		Now:         time.Now,
	}
}

// Reload восстанавливает открытый набор из стора (рестарт процесса).
func (m *Manager) Reload(ctx context.Context) error {
	sigs, err := m.store.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle reload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = make(map[uuid.UUID]*models.Signal, len(sigs))
	m.bySymbol = make(map[string]uuid.UUID, len(sigs))
	for _, s := range sigs {
		m.open[s.ID] = s
		m.bySymbol[s.Symbol] = s.ID
	}
	return nil
}

// Admit — admission control. Кандидат принимается только если: пара без
// открытого сигнала, глобальный кап не выбран, пара включена, эмиссия не
// замьючена и кулдаун пары прошёл. Иначе кандидат дропается (не очередь).
func (m *Manager) Admit(ctx context.Context, cand models.Candidate, profile models.RiskProfile) (*models.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()

	if m.muted {
		return nil, fmt.Errorf("%w: emission muted", ErrAdmissionRejected)
	}
	if until, ok := m.cooldownTil[cand.Symbol]; ok && now.Before(until) {
		return nil, fmt.Errorf("%w: %s on cooldown until %s", ErrAdmissionRejected, cand.Symbol, until.Format(time.RFC3339))
	}
	if _, ok := m.bySymbol[cand.Symbol]; ok {
		return nil, fmt.Errorf("%w: %s already has an open signal", ErrAdmissionRejected, cand.Symbol)
	}
	if len(m.open) >= profile.MaxConcurrentSignals {
		return nil, fmt.Errorf("%w: global cap %d reached", ErrAdmissionRejected, profile.MaxConcurrentSignals)
	}
	enabled, err := m.gate.IsEnabled(ctx, cand.Symbol)
	if err != nil {
		return nil, fmt.Errorf("admit %s: %w", cand.Symbol, err)
	}
	if !enabled {
		return nil, fmt.Errorf("%w: %s disabled in watchlist", ErrAdmissionRejected, cand.Symbol)
	}

	sig := &models.Signal{
		ID:           uuid.New(),
		Symbol:       cand.Symbol,
		Timeframe:    cand.Timeframe,
		EntryPrice:   cand.EntryPrice,
		StopLoss:     cand.StopLoss,
		TakeProfit1:  cand.TakeProfit1,
		TakeProfit2:  cand.TakeProfit2,
		Grade:        cand.Grade,
		RiskPct:      cand.RiskPct,
		PositionSize: cand.PositionSize,
		Rationale:    cand.Rationale,
		Triggers:     cand.Triggers,
		Status:       models.StatusPending,
		ExpiresAt:    now.Add(profile.SignalTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.store.Create(ctx, sig); err != nil {
		return nil, err
	}
	m.open[sig.ID] = sig
	m.bySymbol[sig.Symbol] = sig.ID
	m.publish(Event{Kind: EventCreated, Signal: *sig})
	return sig, nil
}

// Sweep закрывает сигналы по временным дедлайнам. Pending, не дождавшийся
// входа за TTL, уходит в expired через стор; active держится не дольше
// maxHold от создания — иначе позиция без стопа/TP висела бы вечно.
// Идемпотентен: без прошедшего времени второй вызов ничего не трогает.
func (m *Manager) Sweep(ctx context.Context, maxHold time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	expired, err := m.store.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, s := range expired {
		m.forget(s.Symbol, s.ID, now)
		s.Status = models.StatusExpired
		m.publish(Event{Kind: EventExpired, Signal: *s})
	}
	n := len(expired)

	if maxHold <= 0 {
		return n, nil
	}
	var overdue []*models.Signal
	for _, s := range m.open {
		if s.Status == models.StatusActive && !s.CreatedAt.Add(maxHold).After(now) {
			overdue = append(overdue, s)
		}
	}
	for _, s := range overdue {
		if err := m.terminate(ctx, s, models.StatusExpired, EventExpired, 0, now); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Archive — чистка терминальной истории по возрасту. Открытый набор
// не трогает: TTL и max-hold заканчивают живой сигнал задолго до retention.
func (m *Manager) Archive(ctx context.Context, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.Now().Add(-retention)
	return m.store.ArchiveOlderThan(ctx, cutoff)
}

// OnPrice — супервизия открытого сигнала по живой цене:
// pending активируется при касании входа, active закрывается по стопу/TP2,
// касание TP1 помечается, но сигнал живёт до TP2 или стопа.
func (m *Manager) OnPrice(ctx context.Context, tick models.PriceTick) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.bySymbol[tick.Symbol]
	if !ok {
		return nil
	}
	sig := m.open[id]
	now := m.Now()

	if sig.Status == models.StatusPending && tick.Price <= sig.EntryPrice {
		ok, err := m.store.UpdateStatus(ctx, sig.ID, models.StatusPending, models.StatusActive, now)
		if err != nil {
			return err
		}
		if ok {
			sig.Status = models.StatusActive
			sig.UpdatedAt = now
			m.publish(Event{Kind: EventActivated, Signal: *sig, Price: tick.Price})
		}
	}

	if sig.Status != models.StatusActive {
		return nil
	}

	switch {
	case tick.Price <= sig.StopLoss:
		return m.terminate(ctx, sig, models.StatusTriggered, EventStopped, tick.Price, now)
	case tick.Price >= sig.TakeProfit2:
		return m.terminate(ctx, sig, models.StatusTriggered, EventTP2, tick.Price, now)
	case tick.Price >= sig.TakeProfit1 && !sig.TP1Hit:
		if err := m.store.MarkTP1Hit(ctx, sig.ID, now); err != nil {
			return err
		}
		sig.TP1Hit = true
		sig.UpdatedAt = now
		m.publish(Event{Kind: EventTP1, Signal: *sig, Price: tick.Price})
	}
	return nil
}

// Handle — внешние команды (telegram). Повторная команда по уже
// терминальному сигналу — no-op: состояние не передумывается.
func (m *Manager) Handle(ctx context.Context, cmd models.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	switch cmd.Kind {
	case models.CmdMarkActive:
		sig, ok := m.open[cmd.SignalID]
		if !ok || sig.Status != models.StatusPending {
			return nil
		}
		done, err := m.store.UpdateStatus(ctx, sig.ID, models.StatusPending, models.StatusActive, now)
		if err != nil {
			return err
		}
		if done {
			sig.Status = models.StatusActive
			sig.UpdatedAt = now
			m.publish(Event{Kind: EventActivated, Signal: *sig})
		}
		return nil

	case models.CmdCancel:
		sig, ok := m.open[cmd.SignalID]
		if !ok {
			return nil
		}
		return m.terminate(ctx, sig, models.StatusCancelled, EventCancelled, 0, now)

	case models.CmdMutePair:
		id, ok := m.bySymbol[cmd.Symbol]
		if !ok {
			return nil
		}
		return m.terminate(ctx, m.open[id], models.StatusCancelled, EventCancelled, 0, now)
	}
	return fmt.Errorf("unknown command %q", cmd.Kind)
}

func (m *Manager) SetMuted(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = v
}

func (m *Manager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// OpenSignals — копия открытого набора, по времени создания.
func (m *Manager) OpenSignals() []models.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Signal, 0, len(m.open))
	for _, s := range m.open {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// OpenSymbols — пары с открытым сигналом (для WS-подписки).
func (m *Manager) OpenSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.bySymbol))
	for s := range m.bySymbol {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// terminate — общий путь в терминальный статус. Вызывается под m.mu.
func (m *Manager) terminate(ctx context.Context, sig *models.Signal, to models.SignalStatus, kind EventKind, price float64, now time.Time) error {
	ok, err := m.store.UpdateStatus(ctx, sig.ID, sig.Status, to, now)
	if err != nil {
		return err
	}
	if !ok {
		// Менеджер — единственный писатель, так что CAS-промах означает
		// рассинхрон кеша со стором. Логируем и выкидываем из кеша.
		logger.Warn("lifecycle: stale status for %s (%s), dropping from cache", sig.Symbol, sig.ID)
		m.forget(sig.Symbol, sig.ID, now)
		return nil
	}
	sig.Status = to
	sig.UpdatedAt = now
	if to == models.StatusTriggered {
		t := now
		sig.TriggeredAt = &t
	}
	m.forget(sig.Symbol, sig.ID, now)
	m.publish(Event{Kind: kind, Signal: *sig, Price: price})
	return nil
}

// forget убирает сигнал из открытого набора и ставит кулдаун. Под m.mu.
func (m *Manager) forget(symbol string, id uuid.UUID, now time.Time) {
	delete(m.open, id)
	if cur, ok := m.bySymbol[symbol]; ok && cur == id {
		delete(m.bySymbol, symbol)
	}
	if m.cfg.CooldownPerPair > 0 {
		m.cooldownTil[symbol] = now.Add(m.cfg.CooldownPerPair)
	}
}

// publish — best-effort: переполненный канал эвентов не блокирует менеджер.
func (m *Manager) publish(ev Event) {
	if m.events == nil {
		return
	}
	select {
	case m.events <- ev:
	default:
		logger.Warn("lifecycle: event channel full, dropping %s for %s", ev.Kind, ev.Signal.Symbol)
	}
}
