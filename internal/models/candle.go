package models

import "time"

// Timeframe — таймфреймы, которые реально используются в пайплайне.
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
)

func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	default:
		d, err := time.ParseDuration(string(tf))
		if err != nil {
			return time.Minute
		}
		return d
	}
}

// Candle — закрытая свеча OHLCV. Последовательности всегда по возрастанию Ts.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Ts     time.Time
}

// PriceTick — последняя цена по инструменту из WS-стрима.
type PriceTick struct {
	Symbol string
	Price  float64
	Ts     time.Time
}
