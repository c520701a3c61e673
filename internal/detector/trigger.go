package detector

import (
	"fmt"
	"sort"

	"signal_bot/internal/indicator"
	"signal_bot/internal/models"
)

// Input — общий вход для всех триггеров: снапшоты и свечные окна
// entry- и confirmation-таймфреймов. Каждый триггер берёт то, что ему нужно.
type Input struct {
	Entry          *indicator.Snapshot
	EntryCandles   []models.Candle
	Confirm        *indicator.Snapshot
	ConfirmCandles []models.Candle
}

// Trigger — чистый предикат над снапшотом и свечным окном.
// Новый триггер добавляется новой реализацией, существующие не трогаем.
type Trigger interface {
	Name() models.TriggerName
	Eval(in Input) (bool, string)
}

// Evaluator гоняет фиксированный набор триггеров в стабильном порядке,
// поэтому rationale детерминирован для одинакового входа.
type Evaluator struct {
	triggers []Trigger
}

func NewEvaluator(policy Policy) *Evaluator {
	return &Evaluator{
		triggers: []Trigger{
			breakoutRetest{policy},
			bbSqueeze{policy},
			emaCrossover{},
			bullishCandle{policy},
		},
	}
}

func (e *Evaluator) Evaluate(in Input) models.TriggerResult {
	res := models.TriggerResult{Fired: make(map[models.TriggerName]bool, len(e.triggers))}
	for _, t := range e.triggers {
		ok, reason := t.Eval(in)
		res.Fired[t.Name()] = ok
		if ok {
			res.Reasons = append(res.Reasons, reason)
		}
	}
	return res
}

// --- 1. Пробой локального сопротивления с ретестом -------------------------

type breakoutRetest struct {
	policy Policy
}

func (t breakoutRetest) Name() models.TriggerName { return models.TriggerBreakoutRetest }

func (t breakoutRetest) Eval(in Input) (bool, string) {
	candles := in.EntryCandles
	lookback := t.policy.BreakoutLookback
	window := t.policy.RetestWindow
	if len(candles) < lookback+window+1 {
		return false, ""
	}

	n := len(candles)
	// сопротивление — максимум хаёв окна ДО зоны пробоя/ретеста
	base := candles[n-lookback-window : n-window]
	resistance := base[0].High
	for _, c := range base[1:] {
		if c.High > resistance {
			resistance = c.High
		}
	}

	// текущее закрытие должно быть над уровнем
	if candles[n-1].Close <= resistance {
		return false, ""
	}

	// ретест: в последних window свечах цена возвращалась к уровню
	// и удержалась (закрытие не ушло под уровень глубже допуска)
	tol := resistance * t.policy.RetestTolerancePct / 100
	retested := false
	for _, c := range candles[n-window : n-1] {
		if c.Low <= resistance+tol && c.Close >= resistance-tol {
			retested = true
			break
		}
	}
	if !retested {
		return false, ""
	}
	return true, fmt.Sprintf("breakout & retest of %.6g", resistance)
}

// --- 2. Сжатие Боллинджера с расширением и объёмом -------------------------

type bbSqueeze struct {
	policy Policy
}

func (t bbSqueeze) Name() models.TriggerName { return models.TriggerBBSqueeze }

func (t bbSqueeze) Eval(in Input) (bool, string) {
	s := in.Entry
	if s == nil {
		return false, ""
	}
	expanded := s.BBWidth > s.AvgBBWidth*t.policy.SqueezeExpansion
	volumeUp := s.Volume > s.AvgVolume*t.policy.SqueezeVolumeMult
	if !(expanded && volumeUp) {
		return false, ""
	}
	return true, fmt.Sprintf("BB squeeze expansion x%.2f + volume", s.BBWidth/s.AvgBBWidth)
}

// --- 3. Кроссовер EMA9/EMA21 над EMA50 -------------------------------------

type emaCrossover struct{}

func (t emaCrossover) Name() models.TriggerName { return models.TriggerEMACrossover }

func (t emaCrossover) Eval(in Input) (bool, string) {
	s := in.Entry
	if s == nil {
		return false, ""
	}
	crossed := s.PrevEMAFast <= s.PrevEMAMedium && s.EMAFast > s.EMAMedium
	aboveSlow := s.EMAFast > s.EMASlow && s.EMAMedium > s.EMASlow
	if !(crossed && aboveSlow) {
		return false, ""
	}
	return true, "EMA9 crossed above EMA21 above EMA50"
}

// --- 4. Бычья свеча с объёмом (confirmation TF) ----------------------------

type bullishCandle struct {
	policy Policy
}

func (t bullishCandle) Name() models.TriggerName { return models.TriggerBullishCandle }

func (t bullishCandle) Eval(in Input) (bool, string) {
	candles := in.ConfirmCandles
	if in.Confirm == nil || len(candles) < 2 {
		return false, ""
	}
	cur := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	engulfing := prev.Close < prev.Open &&
		cur.Close > cur.Open &&
		cur.Open < prev.Close &&
		cur.Close > prev.Open

	body := cur.Close - cur.Open
	hammer := false
	if body > 0 {
		lowerWick := cur.Open - cur.Low
		upperWick := cur.High - cur.Close
		hammer = lowerWick > body*t.policy.WickBodyRatio && upperWick < body
	}

	volumeUp := cur.Volume > in.Confirm.AvgVolume*t.policy.CandleVolumeMult
	if !((engulfing || hammer) && volumeUp) {
		return false, ""
	}
	if engulfing {
		return true, "bullish engulfing + volume"
	}
	return true, "long lower wick + volume"
}

// FiredNames — имена сработавших триггеров в стабильном порядке (для логов).
func FiredNames(res models.TriggerResult) []string {
	names := make([]string, 0, len(res.Fired))
	for name, ok := range res.Fired {
		if ok {
			names = append(names, string(name))
		}
	}
	sort.Strings(names)
	return names
}
