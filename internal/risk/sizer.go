package risk

import (
	"errors"
	"fmt"
	"math"

	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
)

// ErrDegenerateRisk — стоп получился нулевым/вырожденным или дистанция до
// стопа вне допустимого коридора. Кандидат молча режектится (только лог).
var ErrDegenerateRisk = errors.New("degenerate risk parameters")

// Config — риск-мультипликаторы. Политика, не эвристика: приезжает из конфига.
type Config struct {
	ATRMult float64 // стоп не ближе чем ATR * X от входа, 1.5
	TP1R    float64 // первый тейк в R, 1.0
	TP2R    float64 // второй тейк в R, 2.0

	// Коридор дистанции до стопа в процентах от входа, вне него — реject.
	MinStopPct float64 // 0.5
	MaxStopPct float64 // 10.0
}

func DefaultConfig() Config {
	return Config{
		ATRMult:    1.5,
		TP1R:       1.0,
		TP2R:       2.0,
		MinStopPct: 0.5,
		MaxStopPct: 10.0,
	}
}

// Params — посчитанные уровни и размер позиции.
type Params struct {
	StopLoss     float64
	TakeProfit1  float64
	TakeProfit2  float64
	RiskPerUnit  float64 // R: entry - stop
	PositionSize float64 // base-валюта
}

type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size считает SL/TP/размер для лонга.
//
// Стоп — дальняя из двух дистанций: до свинг-лоу entry-таймфрейма и 1.5*ATR.
// Тейки — 1R и 2R от входа. Размер подбирается так, чтобы
// (entry - stop) * size = equity * riskPct, и после создания сигнала
// больше не пересчитывается.
func (s *Sizer) Size(entry float64, snap *indicator.Snapshot, profile models.RiskProfile) (*Params, error) {
	if entry <= 0 {
		return nil, fmt.Errorf("%w: entry %.6g", ErrDegenerateRisk, entry)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot", ErrDegenerateRisk)
	}

	swingDist := entry - snap.SwingLow
	atrDist := s.cfg.ATRMult * snap.ATR
	stopDist := math.Max(swingDist, atrDist)
	if stopDist <= 0 || math.IsNaN(stopDist) {
		return nil, fmt.Errorf("%w: stop distance %.6g", ErrDegenerateRisk, stopDist)
	}

	stopDistPct := stopDist / entry * 100
	if stopDistPct < s.cfg.MinStopPct {
		return nil, fmt.Errorf("%w: stop too close (%.2f%% < %.2f%%)", ErrDegenerateRisk, stopDistPct, s.cfg.MinStopPct)
	}
	if stopDistPct > s.cfg.MaxStopPct {
		return nil, fmt.Errorf("%w: stop too far (%.2f%% > %.2f%%)", ErrDegenerateRisk, stopDistPct, s.cfg.MaxStopPct)
	}

	stop := entry - stopDist
	r := entry - stop
	if r <= 0 {
		return nil, fmt.Errorf("%w: risk per unit %.6g", ErrDegenerateRisk, r)
	}

	riskFraction := profile.RiskPct / 100.0
	if riskFraction <= 0 {
		return nil, fmt.Errorf("%w: riskPct %.4g", ErrDegenerateRisk, profile.RiskPct)
	}
	size := profile.AccountEquity * riskFraction / r

	return &Params{
		StopLoss:     stop,
		TakeProfit1:  entry + s.cfg.TP1R*r,
		TakeProfit2:  entry + s.cfg.TP2R*r,
		RiskPerUnit:  r,
		PositionSize: size,
	}, nil
}
