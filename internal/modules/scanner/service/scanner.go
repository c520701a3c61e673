package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"signal_bot/internal/detector"
	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
	lifecycle "signal_bot/internal/modules/lifecycle/service"
	marketdata "signal_bot/internal/modules/marketdata/service"
	"signal_bot/internal/risk"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

type CandleProvider interface {
	GetCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error)
}

type PairSource interface {
	ListEnabled(ctx context.Context) ([]models.PairWatch, error)
}

type ProfileSource interface {
	Get(ctx context.Context) (models.RiskProfile, error)
}

type Config struct {
	Workers      int
	FetchTimeout time.Duration
	CandleLimit  int
	TrendTF      models.Timeframe
	EntryTF      models.Timeframe
	ConfirmTF    models.Timeframe
}

// Status — снимок последнего цикла для /status и readyz.
type Status struct {
	Running        bool
	LastRun        time.Time
	LastDuration   time.Duration
	LastCandidates int
	LastCreated    int
	LastErrors     int
	LastSkipped    int
}

// Scanner гоняет полный пайплайн по watchlist: свечи -> индикаторы ->
// трендовый фильтр -> триггеры -> грейд -> риск -> admission. Ошибки одной
// пары не валят цикл, пара просто ждёт следующего прохода.
type Scanner struct {
	cfg      Config
	provider CandleProvider
	pairs    PairSource
	profiles ProfileSource
	manager  *lifecycle.Manager

	filter  *detector.TrendFilter
	eval    *detector.Evaluator
	grader  *detector.Grader
	sizer   *risk.Sizer
	indCfg  indicator.Config
	policy  detector.Policy
	metrics *Metrics

	mu      sync.Mutex
	running bool
	status  Status
}

func NewScanner(
	cfg Config,
	provider CandleProvider,
	pairs PairSource,
	profiles ProfileSource,
	manager *lifecycle.Manager,
	policy detector.Policy,
	indCfg indicator.Config,
	riskCfg risk.Config,
	metrics *Metrics,
) *Scanner {
	filter := detector.NewTrendFilter(policy)
	return &Scanner{
		cfg:      cfg,
		provider: provider,
		pairs:    pairs,
		profiles: profiles,
		manager:  manager,
		filter:   filter,
		eval:     detector.NewEvaluator(policy),
		grader:   detector.NewGrader(policy, filter),
		sizer:    risk.NewSizer(riskCfg),
		indCfg:   indCfg,
		policy:   policy,
		metrics:  metrics,
	}
}

// Scan — один полный цикл. Повторный вызов во время работающего цикла
// возвращается сразу (ForceScan поверх крона не плодит параллельных проходов).
func (s *Scanner) Scan(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Info("scan already in progress, skip")
		return
	}
	s.running = true
	s.status.Running = true
	s.mu.Unlock()

	span, ctx := tracing.StartSpan(ctx, "scanner.cycle")
	defer span.Finish()

	started := time.Now()
	created, candidates, errs, skipped := s.cycle(ctx)

	dur := time.Since(started)
	s.metrics.ScanCycles.Inc()
	s.metrics.ScanDuration.Observe(dur.Seconds())
	s.metrics.OpenSignals.Set(float64(s.manager.OpenCount()))

	s.mu.Lock()
	s.running = false
	s.status = Status{
		LastRun:        started,
		LastDuration:   dur,
		LastCandidates: candidates,
		LastCreated:    created,
		LastErrors:     errs,
		LastSkipped:    skipped,
	}
	s.mu.Unlock()

	logger.Info("scan done in %s: %d candidates, %d created, %d errors, %d skipped", dur.Round(time.Millisecond), candidates, created, errs, skipped)
}

func (s *Scanner) cycle(ctx context.Context) (created, candidates, errs, skipped int) {
	profile, err := s.profiles.Get(ctx)
	if err != nil {
		logger.Error("scan: load risk profile: %v", err)
		s.metrics.PairErrors.WithLabelValues("profile").Inc()
		return 0, 0, 1, 0
	}

	watches, err := s.pairs.ListEnabled(ctx)
	if err != nil {
		logger.Error("scan: list pairs: %v", err)
		s.metrics.PairErrors.WithLabelValues("pairs").Inc()
		return 0, 0, 1, 0
	}

	open := make(map[string]struct{})
	for _, sym := range s.manager.OpenSymbols() {
		open[sym] = struct{}{}
	}

	type outcome struct {
		symbol string
		cand   *models.Candidate
		err    error
	}

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	results := make(chan outcome, len(watches))

	var scanned int
	for _, w := range watches {
		// пара с открытым сигналом не сканируется вообще
		if _, ok := open[w.Symbol]; ok {
			continue
		}
		scanned++
		sem <- struct{}{}
		go func(symbol string) {
			defer func() { <-sem }()
			cand, err := s.scanPair(ctx, symbol, profile)
			results <- outcome{symbol: symbol, cand: cand, err: err}
		}(w.Symbol)
	}

	for i := 0; i < scanned; i++ {
		out := <-results
		if out.err != nil {
			// короткая история — не сбой, пара просто ждёт данных
			if errors.Is(out.err, indicator.ErrInsufficientData) {
				skipped++
				s.metrics.PairSkips.Inc()
				logger.Info("%s skipped: %v", out.symbol, out.err)
				continue
			}
			errs++
			s.metrics.PairErrors.WithLabelValues(reasonLabel(out.err)).Inc()
			continue
		}
		if out.cand == nil {
			continue
		}
		candidates++
		s.metrics.Candidates.Inc()

		// admission сериализован менеджером, так что кап консистентен
		// даже при пачке кандидатов из одного цикла
		sig, err := s.manager.Admit(ctx, *out.cand, profile)
		if err != nil {
			if errors.Is(err, lifecycle.ErrAdmissionRejected) {
				logger.Info("candidate %s dropped: %v", out.cand.Symbol, err)
			} else {
				logger.Error("admit %s: %v", out.cand.Symbol, err)
				errs++
			}
			continue
		}
		created++
		s.metrics.SignalsCreated.WithLabelValues(string(sig.Grade)).Inc()
		logger.Info("signal %s %s grade=%s entry=%.4f sl=%.4f", sig.ID, sig.Symbol, sig.Grade, sig.EntryPrice, sig.StopLoss)
	}

	if _, err := s.manager.Sweep(ctx, profile.MaxHoldDuration); err != nil {
		logger.Error("scan: sweep: %v", err)
	}
	return created, candidates, errs, skipped
}

// scanPair считает пайплайн для одной пары. (nil, nil) — пара спокойно
// не прошла фильтр или набрала мало триггеров, это не ошибка.
func (s *Scanner) scanPair(ctx context.Context, symbol string, profile models.RiskProfile) (*models.Candidate, error) {
	span, ctx := tracing.StartSpan(ctx, "scanner.pair")
	span.SetTag("symbol", symbol)
	defer span.Finish()

	trendCandles, err := s.fetch(ctx, symbol, s.cfg.TrendTF)
	if err != nil {
		return nil, err
	}
	entryCandles, err := s.fetch(ctx, symbol, s.cfg.EntryTF)
	if err != nil {
		return nil, err
	}
	confirmCandles, err := s.fetch(ctx, symbol, s.cfg.ConfirmTF)
	if err != nil {
		return nil, err
	}

	trend, err := indicator.Compute(s.cfg.TrendTF, trendCandles, s.indCfg)
	if err != nil {
		return nil, err
	}
	entry, err := indicator.Compute(s.cfg.EntryTF, entryCandles, s.indCfg)
	if err != nil {
		return nil, err
	}
	confirm, err := indicator.Compute(s.cfg.ConfirmTF, confirmCandles, s.indCfg)
	if err != nil {
		return nil, err
	}

	if !s.filter.Passes(trend, entry) {
		return nil, nil
	}

	res := s.eval.Evaluate(detector.Input{
		Entry:          entry,
		EntryCandles:   entryCandles,
		Confirm:        confirm,
		ConfirmCandles: confirmCandles,
	})
	if res.Count() < s.policy.MinTriggers {
		return nil, nil
	}

	entryPrice := entry.Close
	params, err := s.sizer.Size(entryPrice, entry, profile)
	if err != nil {
		if errors.Is(err, risk.ErrDegenerateRisk) {
			logger.Info("%s: setup dropped, %v", symbol, err)
			return nil, nil
		}
		return nil, err
	}

	grade := s.grader.Grade(res, trend, entryPrice, params.StopLoss)

	return &models.Candidate{
		Symbol:       symbol,
		Timeframe:    s.cfg.EntryTF,
		EntryPrice:   entryPrice,
		StopLoss:     params.StopLoss,
		TakeProfit1:  params.TakeProfit1,
		TakeProfit2:  params.TakeProfit2,
		Grade:        grade,
		RiskPct:      profile.RiskPct,
		PositionSize: params.PositionSize,
		Rationale:    detector.Rationale(grade, res),
		Triggers:     res,
	}, nil
}

func (s *Scanner) fetch(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()
	return s.provider.GetCandles(fctx, symbol, tf, s.cfg.CandleLimit)
}

// Archive — ежедневная чистка терминальных сигналов старше retention.
func (s *Scanner) Archive(ctx context.Context, retention time.Duration) {
	n, err := s.manager.Archive(ctx, retention)
	if err != nil {
		logger.Error("archive: %v", err)
		return
	}
	if n > 0 {
		logger.Info("archive: dropped %d signals older than %s", n, retention)
	}
}

func (s *Scanner) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, marketdata.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, marketdata.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
