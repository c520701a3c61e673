package indicator

import (
	"github.com/pkg/errors"

	"signal_bot/internal/models"
)

// Compute строит снапшот по последней закрытой свече. Чистая функция:
// никакого состояния между вызовами, идентичный вход — идентичный выход.
func Compute(tf models.Timeframe, candles []models.Candle, cfg Config) (*Snapshot, error) {
	if len(candles) < cfg.MinHistory() {
		return nil, errors.Wrapf(ErrInsufficientData, "%s: have %d candles, need %d", tf, len(candles), cfg.MinHistory())
	}

	n := len(candles)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	emaFast := emaSeries(closes, cfg.EMAFast)
	emaMedium := emaSeries(closes, cfg.EMAMedium)
	emaSlow := emaSeries(closes, cfg.EMASlow)
	emaLong := emaSeries(closes, cfg.EMALong)
	rsi := rsiSeries(closes, cfg.RSIPeriod)
	atr := atrSeries(candles, cfg.ATRPeriod)
	bb := bollingerSeries(closes, cfg.BBPeriod, cfg.BBStdDev)
	volSMA := smaSeries(volumes, cfg.VolumePeriod)

	last := n - 1

	snap := &Snapshot{
		Timeframe: tf,

		Close:  closes[last],
		Volume: volumes[last],

		EMAFast:   emaFast[last],
		EMAMedium: emaMedium[last],
		EMASlow:   emaSlow[last],
		EMALong:   emaLong[last],

		PrevEMAFast:   emaFast[last-1],
		PrevEMAMedium: emaMedium[last-1],

		RSI: rsi[last],
		ATR: atr[last],

		BBUpper:  bb.upper[last],
		BBMiddle: bb.middle[last],
		BBLower:  bb.lower[last],
		BBWidth:  bb.width[last],

		AvgVolume: volSMA[last],
	}

	snap.AvgBBWidth = mean(bb.width[n-cfg.BBWidthLookback:])

	highs := make([]float64, 0, cfg.SwingLookback)
	lows := make([]float64, 0, cfg.SwingLookback)
	for _, c := range candles[n-cfg.SwingLookback:] {
		highs = append(highs, c.High)
		lows = append(lows, c.Low)
	}
	snap.SwingHigh = maxSlice(highs)
	snap.SwingLow = minSlice(lows)

	return snap, nil
}
