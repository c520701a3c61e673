package models

import (
	"time"

	"github.com/google/uuid"
)

type SignalStatus string

const (
	StatusPending   SignalStatus = "pending"
	StatusActive    SignalStatus = "active"
	StatusTriggered SignalStatus = "triggered"
	StatusExpired   SignalStatus = "expired"
	StatusCancelled SignalStatus = "cancelled"
)

// Terminal — из этих статусов выхода нет.
func (s SignalStatus) Terminal() bool {
	switch s {
	case StatusTriggered, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanTransition проверяет допустимость перехода: все переходы односторонние,
// pending -> active -> {triggered, expired, cancelled}, терминальные — никуда.
func (s SignalStatus) CanTransition(to SignalStatus) bool {
	if s.Terminal() || s == to {
		return false
	}
	if s == StatusPending {
		return to == StatusActive || to.Terminal()
	}
	// active
	return to.Terminal()
}

type Grade string

const (
	GradeA Grade = "A" // strong
	GradeB Grade = "B" // good
	GradeC Grade = "C" // high-risk
)

type TriggerName string

const (
	TriggerBreakoutRetest TriggerName = "breakout_retest"
	TriggerBBSqueeze      TriggerName = "bb_squeeze_expansion"
	TriggerEMACrossover   TriggerName = "ema_crossover"
	TriggerBullishCandle  TriggerName = "bullish_candle"
)

// TriggerResult — какие из четырёх триггеров сработали, с короткими
// пояснениями в фиксированном порядке (детерминизм rationale).
type TriggerResult struct {
	Fired   map[TriggerName]bool `json:"fired"`
	Reasons []string             `json:"reasons"`
}

func (t TriggerResult) Count() int {
	n := 0
	for _, ok := range t.Fired {
		if ok {
			n++
		}
	}
	return n
}

// Candidate — кандидат в сигнал, полностью посчитанный сканером.
// Становится Signal только после admission в lifecycle-менеджере.
type Candidate struct {
	Symbol       string
	Timeframe    Timeframe
	EntryPrice   float64
	StopLoss     float64
	TakeProfit1  float64
	TakeProfit2  float64
	Grade        Grade
	RiskPct      float64
	PositionSize float64
	Rationale    string
	Triggers     TriggerResult
}

// Signal — единственная durable-сущность ядра.
type Signal struct {
	ID           uuid.UUID
	Symbol       string
	Timeframe    Timeframe
	EntryPrice   float64
	StopLoss     float64
	TakeProfit1  float64
	TakeProfit2  float64
	Grade        Grade
	RiskPct      float64
	PositionSize float64
	Rationale    string
	Triggers     TriggerResult
	Status       SignalStatus
	TP1Hit       bool
	ExpiresAt    time.Time
	TriggeredAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
