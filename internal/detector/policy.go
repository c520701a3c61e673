package detector

// Policy — все пороги детектора и грейдера. Это настраиваемая политика,
// а не зашитая эвристика: значения приезжают из configs/policy_local.yaml.
type Policy struct {
	// Трендовый фильтр: RSI(14) на 1h в закрытом диапазоне [floor, ceil].
	RSIFloor float64 `yaml:"rsi_floor"`
	RSICeil  float64 `yaml:"rsi_ceil"`

	// "Сильное" выравнивание тренда для грейда: закрытие не меньше чем на
	// StrongTrendMarginPct выше EMA200 и RSI во внутреннем диапазоне.
	RSIInnerFloor        float64 `yaml:"rsi_inner_floor"`
	RSIInnerCeil         float64 `yaml:"rsi_inner_ceil"`
	StrongTrendMarginPct float64 `yaml:"strong_trend_margin_pct"`

	// Триггер breakout-retest
	BreakoutLookback   int     `yaml:"breakout_lookback"`    // окно поиска сопротивления
	RetestWindow       int     `yaml:"retest_window"`        // сколько свечей после пробоя ждём ретест
	RetestTolerancePct float64 `yaml:"retest_tolerance_pct"` // допуск к уровню, % от уровня

	// Триггер bb-squeeze-expansion
	SqueezeExpansion  float64 `yaml:"squeeze_expansion"`   // width > avgWidth * X
	SqueezeVolumeMult float64 `yaml:"squeeze_volume_mult"` // volume > avgVolume * X

	// Триггер bullish-candle
	WickBodyRatio    float64 `yaml:"wick_body_ratio"`    // нижняя тень > тела * X
	CandleVolumeMult float64 `yaml:"candle_volume_mult"` // volume > avgVolume * X

	// Квалификация и грейд
	MinTriggers int     `yaml:"min_triggers"`  // кандидат только при >= N триггеров
	WideStopPct float64 `yaml:"wide_stop_pct"` // стоп дальше X% от входа понижает грейд
}

func DefaultPolicy() Policy {
	return Policy{
		RSIFloor:             45,
		RSICeil:              65,
		RSIInnerFloor:        50,
		RSIInnerCeil:         60,
		StrongTrendMarginPct: 1.0,

		BreakoutLookback:   20,
		RetestWindow:       10,
		RetestTolerancePct: 0.5,

		SqueezeExpansion:  1.1,
		SqueezeVolumeMult: 1.2,

		WickBodyRatio:    2.0,
		CandleVolumeMult: 1.1,

		MinTriggers: 2,
		WideStopPct: 5.0,
	}
}
