package indicator

import "math"

type bbands struct {
	upper  []float64
	middle []float64
	lower  []float64
	width  []float64 // (upper-lower)/middle
}

func bollingerSeries(closes []float64, period int, stdDev float64) bbands {
	n := len(closes)
	b := bbands{
		upper:  make([]float64, n),
		middle: smaSeries(closes, period),
		lower:  make([]float64, n),
		width:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		b.upper[i] = math.NaN()
		b.lower[i] = math.NaN()
		b.width[i] = math.NaN()
	}
	if n < period {
		return b
	}

	for i := period - 1; i < n; i++ {
		m := b.middle[i]
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - m
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		b.upper[i] = m + stdDev*sd
		b.lower[i] = m - stdDev*sd
		if m != 0 {
			b.width[i] = (b.upper[i] - b.lower[i]) / m
		}
	}
	return b
}
