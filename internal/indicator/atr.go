package indicator

import (
	"math"

	"signal_bot/internal/models"
)

// atrSeries — ATR по Уайлдеру поверх true range.
// TR = max(high-low, |high-prevClose|, |low-prevClose|).
func atrSeries(candles []models.Candle, period int) []float64 {
	out := make([]float64, len(candles))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(candles) < period+1 {
		return out
	}

	tr := make([]float64, len(candles))
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)

	p := float64(period)
	for i := period + 1; i < len(candles); i++ {
		out[i] = (out[i-1]*(p-1) + tr[i]) / p
	}
	return out
}
