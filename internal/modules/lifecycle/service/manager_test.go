package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/models"
)

type gateFunc func(ctx context.Context, symbol string) (bool, error)

func (f gateFunc) IsEnabled(ctx context.Context, symbol string) (bool, error) {
	return f(ctx, symbol)
}

func allowAll(context.Context, string) (bool, error) { return true, nil }

type fixture struct {
	m      *Manager
	store  *MemoryStore
	events chan Event
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  NewMemoryStore(),
		events: make(chan Event, 64),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.m = NewManager(f.store, gateFunc(allowAll), Config{CooldownPerPair: 30 * time.Minute}, f.events)
	f.m.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) drainEvents() []Event {
	var out []Event
	for {
		select {
		case ev := <-f.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func candidate(symbol string) models.Candidate {
	return models.Candidate{
		Symbol:       symbol,
		Timeframe:    models.TF15m,
		EntryPrice:   2650,
		StopLoss:     2610,
		TakeProfit1:  2690,
		TakeProfit2:  2730,
		Grade:        models.GradeA,
		RiskPct:      0.7,
		PositionSize: 1.75,
	}
}

func testProfile() models.RiskProfile {
	return models.RiskProfile{
		RiskPct:              0.7,
		AccountEquity:        10000,
		MaxConcurrentSignals: 3,
		SignalTTL:            8 * time.Hour,
		MaxHoldDuration:      24 * time.Hour,
	}
}

func TestAdmitCreatesPendingSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sig, err := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, sig.Status)
	assert.Equal(t, f.now.Add(8*time.Hour), sig.ExpiresAt)
	assert.Equal(t, 1, f.m.OpenCount())
	assert.Equal(t, []string{"ETHUSDC"}, f.m.OpenSymbols())

	stored, ok := f.store.Get(sig.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusPending, stored.Status)

	evs := f.drainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventCreated, evs[0].Kind)
}

func TestAdmitRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate pair", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
		require.NoError(t, err)

		_, err = f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
		assert.True(t, errors.Is(err, ErrAdmissionRejected))
		assert.Equal(t, 1, f.m.OpenCount())
	})

	t.Run("global cap", func(t *testing.T) {
		f := newFixture(t)
		for _, sym := range []string{"ETHUSDC", "BNBUSDC", "XRPUSDC"} {
			_, err := f.m.Admit(ctx, candidate(sym), testProfile())
			require.NoError(t, err)
		}
		_, err := f.m.Admit(ctx, candidate("SOLUSDC"), testProfile())
		assert.True(t, errors.Is(err, ErrAdmissionRejected))
		assert.Equal(t, 3, f.m.OpenCount())
	})

	t.Run("disabled pair", func(t *testing.T) {
		f := newFixture(t)
		f.m = NewManager(f.store, gateFunc(func(_ context.Context, s string) (bool, error) {
			return s != "ADAUSDC", nil
		}), Config{}, f.events)
		f.m.Now = func() time.Time { return f.now }

		_, err := f.m.Admit(ctx, candidate("ADAUSDC"), testProfile())
		assert.True(t, errors.Is(err, ErrAdmissionRejected))
	})

	t.Run("muted", func(t *testing.T) {
		f := newFixture(t)
		f.m.SetMuted(true)
		_, err := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
		assert.True(t, errors.Is(err, ErrAdmissionRejected))

		f.m.SetMuted(false)
		_, err = f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
		assert.NoError(t, err)
	})
}

func TestAdmitCooldownAfterTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sig, err := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	require.NoError(t, err)
	require.NoError(t, f.m.Handle(ctx, models.Command{Kind: models.CmdCancel, SignalID: sig.ID}))

	// в кулдауне пара не переоткрывается
	_, err = f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	assert.True(t, errors.Is(err, ErrAdmissionRejected))

	f.advance(31 * time.Minute)
	_, err = f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	assert.NoError(t, err)
}

func TestOnPriceFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sig, err := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	require.NoError(t, err)
	f.drainEvents()

	// цена выше входа — ничего не происходит
	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2700}))
	assert.Empty(t, f.drainEvents())

	// касание входа -> active
	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2650}))
	evs := f.drainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventActivated, evs[0].Kind)
	stored, _ := f.store.Get(sig.ID)
	assert.Equal(t, models.StatusActive, stored.Status)

	// касание TP1: помечается, сигнал живёт
	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2695}))
	evs = f.drainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventTP1, evs[0].Kind)
	assert.Equal(t, 1, f.m.OpenCount())
	stored, _ = f.store.Get(sig.ID)
	assert.True(t, stored.TP1Hit)

	// повторное касание TP1 эвент не дублирует
	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2696}))
	assert.Empty(t, f.drainEvents())

	// TP2 — терминал
	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2730}))
	evs = f.drainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventTP2, evs[0].Kind)
	assert.Equal(t, 0, f.m.OpenCount())

	stored, _ = f.store.Get(sig.ID)
	assert.Equal(t, models.StatusTriggered, stored.Status)
	require.NotNil(t, stored.TriggeredAt)
	assert.Equal(t, f.now, *stored.TriggeredAt)

	// терминальный статус не передумывается
	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2500}))
	assert.Empty(t, f.drainEvents())
	stored, _ = f.store.Get(sig.ID)
	assert.Equal(t, models.StatusTriggered, stored.Status)
}

func TestOnPriceStopLoss(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sig, err := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	require.NoError(t, err)
	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2650}))
	f.drainEvents()

	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2610}))
	evs := f.drainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventStopped, evs[0].Kind)

	stored, _ := f.store.Get(sig.ID)
	assert.Equal(t, models.StatusTriggered, stored.Status)
	assert.Equal(t, 0, f.m.OpenCount())
}

func TestOnPriceActivationAndStopInOneTick(t *testing.T) {
	// гэп сквозь вход прямо на стоп: активация и закрытие одним тиком
	f := newFixture(t)
	ctx := context.Background()

	f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	f.drainEvents()

	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2600}))
	evs := f.drainEvents()
	require.Len(t, evs, 2)
	assert.Equal(t, EventActivated, evs[0].Kind)
	assert.Equal(t, EventStopped, evs[1].Kind)
}

func TestOnPriceUnknownSymbol(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.m.OnPrice(context.Background(), models.PriceTick{Symbol: "DOGEUSDC", Price: 1}))
	assert.Empty(t, f.drainEvents())
}

func TestSweepExpiresByTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sig, err := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	require.NoError(t, err)
	f.drainEvents()

	// за секунду до дедлайна ничего не протухает
	f.advance(8*time.Hour - time.Second)
	n, err := f.m.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.advance(time.Second)
	n, err = f.m.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	evs := f.drainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventExpired, evs[0].Kind)
	assert.Equal(t, 0, f.m.OpenCount())
	stored, _ := f.store.Get(sig.ID)
	assert.Equal(t, models.StatusExpired, stored.Status)

	// идемпотентность: повторный свип без прошедшего времени пуст
	n, err = f.m.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.drainEvents())
}

func TestSweepClosesActiveByMaxHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sig, err := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	require.NoError(t, err)
	require.NoError(t, f.m.OnPrice(ctx, models.PriceTick{Symbol: "ETHUSDC", Price: 2650}))
	f.drainEvents()

	// TTL ограничивает только ожидание входа: активную позицию он не трогает
	f.advance(8*time.Hour + time.Second)
	n, err := f.m.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, f.m.OpenCount())

	// а вот max-hold от создания — трогает
	f.advance(16 * time.Hour)
	n, err = f.m.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, f.m.OpenCount())

	evs := f.drainEvents()
	require.Len(t, evs, 1)
	assert.Equal(t, EventExpired, evs[0].Kind)
	stored, _ := f.store.Get(sig.ID)
	assert.Equal(t, models.StatusExpired, stored.Status)
}

func TestHandleCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("mark active", func(t *testing.T) {
		f := newFixture(t)
		sig, _ := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
		f.drainEvents()

		require.NoError(t, f.m.Handle(ctx, models.Command{Kind: models.CmdMarkActive, SignalID: sig.ID}))
		stored, _ := f.store.Get(sig.ID)
		assert.Equal(t, models.StatusActive, stored.Status)

		// повтор — no-op
		require.NoError(t, f.m.Handle(ctx, models.Command{Kind: models.CmdMarkActive, SignalID: sig.ID}))
		assert.Len(t, f.drainEvents(), 1)
	})

	t.Run("cancel", func(t *testing.T) {
		f := newFixture(t)
		sig, _ := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
		f.drainEvents()

		require.NoError(t, f.m.Handle(ctx, models.Command{Kind: models.CmdCancel, SignalID: sig.ID}))
		stored, _ := f.store.Get(sig.ID)
		assert.Equal(t, models.StatusCancelled, stored.Status)
		assert.Equal(t, 0, f.m.OpenCount())

		// отмена уже закрытого — no-op
		require.NoError(t, f.m.Handle(ctx, models.Command{Kind: models.CmdCancel, SignalID: sig.ID}))
		assert.Len(t, f.drainEvents(), 1)
	})

	t.Run("mute pair cancels open signal", func(t *testing.T) {
		f := newFixture(t)
		sig, _ := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
		f.drainEvents()

		require.NoError(t, f.m.Handle(ctx, models.Command{Kind: models.CmdMutePair, Symbol: "ETHUSDC"}))
		stored, _ := f.store.Get(sig.ID)
		assert.Equal(t, models.StatusCancelled, stored.Status)
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := newFixture(t)
		assert.Error(t, f.m.Handle(ctx, models.Command{Kind: "selfdestruct"}))
	})
}

func TestReloadRestoresOpenSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	b, _ := f.m.Admit(ctx, candidate("BNBUSDC"), testProfile())
	require.NoError(t, f.m.Handle(ctx, models.Command{Kind: models.CmdCancel, SignalID: b.ID}))

	// свежий менеджер поверх того же стора — как после рестарта процесса
	m2 := NewManager(f.store, gateFunc(allowAll), Config{}, nil)
	require.NoError(t, m2.Reload(ctx))

	assert.Equal(t, 1, m2.OpenCount())
	assert.Equal(t, []string{"ETHUSDC"}, m2.OpenSymbols())
	sigs := m2.OpenSignals()
	require.Len(t, sigs, 1)
	assert.Equal(t, a.ID, sigs[0].ID)
}

func TestArchiveDropsOldSignals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sig, _ := f.m.Admit(ctx, candidate("ETHUSDC"), testProfile())
	require.NoError(t, f.m.Handle(ctx, models.Command{Kind: models.CmdCancel, SignalID: sig.ID}))

	f.advance(169 * time.Hour)
	n, err := f.m.Archive(ctx, 168*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, ok := f.store.Get(sig.ID)
	assert.False(t, ok)
}

func TestConcurrentAdmitRespectsCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := testProfile()
	profile.MaxConcurrentSignals = 10

	var wg sync.WaitGroup
	rejected := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.m.Admit(ctx, candidate(fmt.Sprintf("P%03dUSDC", i)), profile)
			if err != nil {
				rejected <- err
			}
		}(i)
	}
	wg.Wait()
	close(rejected)

	assert.Equal(t, 10, f.m.OpenCount())
	count := 0
	for err := range rejected {
		assert.True(t, errors.Is(err, ErrAdmissionRejected))
		count++
	}
	assert.Equal(t, 90, count)
}
