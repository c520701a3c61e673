package detector

import (
	"signal_bot/internal/indicator"
)

// TrendFilter — гейт перед триггерами. Все условия обязательны:
// 1h close > EMA200, 15m close > EMA50, 1h RSI в нейтрально-бычьем диапазоне.
// Fail-closed: nil-снапшот или непрогретый индикатор (NaN) валит фильтр,
// пара просто пропускается на этом цикле.
type TrendFilter struct {
	policy Policy
}

func NewTrendFilter(policy Policy) *TrendFilter {
	return &TrendFilter{policy: policy}
}

func (f *TrendFilter) Passes(trend, entry *indicator.Snapshot) bool {
	if trend == nil || entry == nil {
		return false
	}
	// сравнения с NaN дают false, т.е. непосчитанный индикатор = фильтр не прошёл
	if !(trend.Close > trend.EMALong) {
		return false
	}
	if !(entry.Close > entry.EMASlow) {
		return false
	}
	if !(trend.RSI >= f.policy.RSIFloor && trend.RSI <= f.policy.RSICeil) {
		return false
	}
	return true
}

// StrongAlignment — тренд не просто прошёл фильтр, а с запасом:
// закрытие заметно выше EMA200 и RSI глубоко внутри диапазона.
func (f *TrendFilter) StrongAlignment(trend *indicator.Snapshot) bool {
	if trend == nil {
		return false
	}
	margin := trend.EMALong * (1 + f.policy.StrongTrendMarginPct/100)
	if !(trend.Close >= margin) {
		return false
	}
	return trend.RSI >= f.policy.RSIInnerFloor && trend.RSI <= f.policy.RSIInnerCeil
}
