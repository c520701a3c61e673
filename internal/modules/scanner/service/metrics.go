package service

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ScanCycles     prometheus.Counter
	ScanDuration   prometheus.Histogram
	PairErrors     *prometheus.CounterVec
	PairSkips      prometheus.Counter
	Candidates     prometheus.Counter
	SignalsCreated *prometheus.CounterVec
	OpenSignals    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		ScanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signal_bot_scan_cycles_total",
			Help: "Total number of completed scan cycles",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signal_bot_scan_duration_seconds",
			Help:    "Duration of a full scan cycle in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PairErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_bot_pair_scan_errors_total",
			Help: "Per-pair scan failures by reason",
		}, []string{"reason"}),
		PairSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signal_bot_pair_scans_skipped_total",
			Help: "Pairs skipped for a cycle due to insufficient history",
		}),
		Candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signal_bot_candidates_total",
			Help: "Candidates that passed trend filter and trigger threshold",
		}),
		SignalsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_bot_signals_created_total",
			Help: "Signals admitted by the lifecycle manager, by grade",
		}, []string{"grade"}),
		OpenSignals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signal_bot_open_signals",
			Help: "Current number of open (pending or active) signals",
		}),
	}
	return m
}

// Register вешает метрики на реестр. Отдельно от конструктора, чтобы
// параллельные инстансы (тесты) не дрались за глобальный registerer.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ScanCycles, m.ScanDuration, m.PairErrors, m.PairSkips,
		m.Candidates, m.SignalsCreated, m.OpenSignals,
	)
}
