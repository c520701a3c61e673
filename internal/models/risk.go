package models

import "time"

// RiskProfile — глобальные риск-настройки. Читается RiskSizer'ом и
// lifecycle-менеджером, пишется только командами юзера.
type RiskProfile struct {
	// Сколько от депозита мы готовы потерять по СТОПУ, в процентах (0.7 => 0.7%).
	RiskPct float64
	// Учётный размер депозита в quote-валюте. Бот advisory-only,
	// до биржевого счёта не дотягивается.
	AccountEquity float64

	MaxConcurrentSignals int
	MaxHoldDuration      time.Duration
	SignalTTL            time.Duration

	UpdatedAt time.Time
}
