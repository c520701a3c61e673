package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/detector"
	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
	lifecycle "signal_bot/internal/modules/lifecycle/service"
	"signal_bot/internal/risk"
)

// --- фейки ------------------------------------------------------------------

type fakeProvider struct {
	series map[models.Timeframe][]models.Candle
	fail   map[string]error // symbol -> ошибка вместо данных
}

func (p *fakeProvider) GetCandles(_ context.Context, symbol string, tf models.Timeframe, _ int) ([]models.Candle, error) {
	if err, ok := p.fail[symbol]; ok {
		return nil, err
	}
	return p.series[tf], nil
}

type fakePairs struct{ symbols []string }

func (p *fakePairs) ListEnabled(context.Context) ([]models.PairWatch, error) {
	out := make([]models.PairWatch, 0, len(p.symbols))
	for _, s := range p.symbols {
		out = append(out, models.PairWatch{Symbol: s, Enabled: true})
	}
	return out, nil
}

type fakeProfile struct{ p models.RiskProfile }

func (f *fakeProfile) Get(context.Context) (models.RiskProfile, error) { return f.p, nil }

type allowGate struct{}

func (allowGate) IsEnabled(context.Context, string) (bool, error) { return true, nil }

// --- синтетические серии ----------------------------------------------------

func baseTime() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

// Восходящий ряд с откатами: чередование +1.4/-1.0 держит RSI около 58
// и закрытие далеко над EMA200.
func trendSeries(n int) []models.Candle {
	out := make([]models.Candle, n)
	price := 100.0
	for i := range out {
		if i%2 == 0 {
			price += 1.4
		} else {
			price -= 1.0
		}
		out[i] = models.Candle{
			Open: price - 0.2, High: price + 0.5, Low: price - 0.7, Close: price,
			Volume: 100, Ts: baseTime().Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

// Плоский ряд с финальным выбросом: сжатый Боллинджер, потом расширение
// с объёмом и закрытие над локальным сопротивлением.
func entrySeries(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Open: 100, High: 100.3, Low: 99.7, Close: 100,
			Volume: 100, Ts: baseTime().Add(time.Duration(i) * 15 * time.Minute),
		}
	}
	last := n - 1
	out[last] = models.Candle{
		Open: 100, High: 103.2, Low: 99.9, Close: 103,
		Volume: 250, Ts: out[last].Ts,
	}
	return out
}

// Плоский ряд, завершённый бычьим поглощением с объёмом.
func confirmSeries(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Open: 100, High: 100.5, Low: 99.6, Close: 100.1,
			Volume: 100, Ts: baseTime().Add(time.Duration(i) * 5 * time.Minute),
		}
	}
	out[n-2].Open, out[n-2].Close = 100.4, 99.8
	out[n-1] = models.Candle{
		Open: 99.6, High: 101, Low: 99.5, Close: 100.9,
		Volume: 220, Ts: out[n-1].Ts,
	}
	return out
}

func bullishProvider() *fakeProvider {
	return &fakeProvider{
		series: map[models.Timeframe][]models.Candle{
			models.TF1h:  trendSeries(260),
			models.TF15m: entrySeries(260),
			models.TF5m:  confirmSeries(260),
		},
		fail: map[string]error{},
	}
}

func newTestScanner(provider *fakeProvider, pairs []string, profile models.RiskProfile) (*Scanner, *lifecycle.Manager, *lifecycle.MemoryStore) {
	store := lifecycle.NewMemoryStore()
	manager := lifecycle.NewManager(store, allowGate{}, lifecycle.Config{}, nil)

	sc := NewScanner(Config{
		Workers:      2,
		FetchTimeout: 5 * time.Second,
		CandleLimit:  260,
		TrendTF:      models.TF1h,
		EntryTF:      models.TF15m,
		ConfirmTF:    models.TF5m,
	}, provider, &fakePairs{symbols: pairs}, &fakeProfile{p: profile},
		manager, detector.DefaultPolicy(), indicator.DefaultConfig(), risk.DefaultConfig(), NewMetrics())

	return sc, manager, store
}

func scanProfile() models.RiskProfile {
	return models.RiskProfile{
		RiskPct:              0.7,
		AccountEquity:        10000,
		MaxConcurrentSignals: 3,
		SignalTTL:            8 * time.Hour,
	}
}

func TestScanCreatesSignals(t *testing.T) {
	sc, manager, _ := newTestScanner(bullishProvider(), []string{"ETHUSDC", "BNBUSDC"}, scanProfile())

	sc.Scan(context.Background())

	st := sc.Status()
	assert.Equal(t, 2, st.LastCandidates)
	assert.Equal(t, 2, st.LastCreated)
	assert.Equal(t, 0, st.LastErrors)

	sigs := manager.OpenSignals()
	require.Len(t, sigs, 2)
	for _, sig := range sigs {
		assert.Equal(t, models.StatusPending, sig.Status)
		assert.Equal(t, models.GradeA, sig.Grade) // сильный тренд с запасом
		assert.InDelta(t, 103.0, sig.EntryPrice, 1e-9)
		assert.Less(t, sig.StopLoss, sig.EntryPrice)
		assert.Greater(t, sig.TakeProfit2, sig.TakeProfit1)
		assert.GreaterOrEqual(t, sig.Triggers.Count(), 2)
		assert.NotEmpty(t, sig.Rationale)
		assert.Greater(t, sig.PositionSize, 0.0)
	}
}

func TestScanSkipsPairsWithOpenSignal(t *testing.T) {
	sc, manager, _ := newTestScanner(bullishProvider(), []string{"ETHUSDC"}, scanProfile())

	sc.Scan(context.Background())
	require.Equal(t, 1, manager.OpenCount())

	// повторный цикл: пара с открытым сигналом вообще не сканируется
	sc.Scan(context.Background())
	st := sc.Status()
	assert.Equal(t, 0, st.LastCandidates)
	assert.Equal(t, 0, st.LastCreated)
	assert.Equal(t, 1, manager.OpenCount())
}

func TestScanRespectsGlobalCap(t *testing.T) {
	profile := scanProfile()
	profile.MaxConcurrentSignals = 1

	sc, manager, _ := newTestScanner(bullishProvider(), []string{"ETHUSDC", "BNBUSDC", "XRPUSDC"}, profile)
	sc.Scan(context.Background())

	st := sc.Status()
	assert.Equal(t, 3, st.LastCandidates)
	assert.Equal(t, 1, st.LastCreated)
	assert.Equal(t, 0, st.LastErrors) // отказ admission — не ошибка цикла
	assert.Equal(t, 1, manager.OpenCount())
}

func TestScanIsolatesPairFailures(t *testing.T) {
	provider := bullishProvider()
	provider.fail["BNBUSDC"] = fmt.Errorf("klines BNBUSDC 1h: %w", context.DeadlineExceeded)

	sc, manager, _ := newTestScanner(provider, []string{"ETHUSDC", "BNBUSDC"}, scanProfile())
	sc.Scan(context.Background())

	st := sc.Status()
	assert.Equal(t, 1, st.LastCreated)
	assert.Equal(t, 1, st.LastErrors)
	assert.Equal(t, []string{"ETHUSDC"}, manager.OpenSymbols())
}

func TestScanShortHistoryIsSkipNotError(t *testing.T) {
	provider := bullishProvider()
	provider.fail["XRPUSDC"] = fmt.Errorf("compute 1h XRPUSDC: %w", indicator.ErrInsufficientData)

	sc, manager, _ := newTestScanner(provider, []string{"ETHUSDC", "XRPUSDC"}, scanProfile())
	sc.Scan(context.Background())

	// пара без истории ждёт следующего цикла, ошибкой это не считается
	st := sc.Status()
	assert.Equal(t, 0, st.LastErrors)
	assert.Equal(t, 1, st.LastSkipped)
	assert.Equal(t, 1, st.LastCreated)
	assert.Equal(t, []string{"ETHUSDC"}, manager.OpenSymbols())
}

func TestScanSidewaysMarketProducesNothing(t *testing.T) {
	// плоский рынок на всех таймфреймах: фильтр тренда не проходит
	flat := &fakeProvider{
		series: map[models.Timeframe][]models.Candle{
			models.TF1h:  entrySeriesFlat(260),
			models.TF15m: entrySeriesFlat(260),
			models.TF5m:  entrySeriesFlat(260),
		},
		fail: map[string]error{},
	}
	sc, manager, _ := newTestScanner(flat, []string{"ETHUSDC"}, scanProfile())
	sc.Scan(context.Background())

	st := sc.Status()
	assert.Equal(t, 0, st.LastCandidates)
	assert.Equal(t, 0, st.LastErrors)
	assert.Equal(t, 0, manager.OpenCount())
}

func entrySeriesFlat(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Open: 100, High: 100.3, Low: 99.7, Close: 100,
			Volume: 100, Ts: baseTime().Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}
