package indicator

import (
	"errors"

	"signal_bot/internal/models"
)

// ErrInsufficientData — истории не хватает для самого длинного lookback'а.
// Для сканера это не ошибка, а skip пары на цикл.
var ErrInsufficientData = errors.New("insufficient candle history")

type Config struct {
	EMAFast   int // 9
	EMAMedium int // 21
	EMASlow   int // 50
	EMALong   int // 200

	RSIPeriod int     // 14
	ATRPeriod int     // 14
	BBPeriod  int     // 20
	BBStdDev  float64 // 2.0

	// Окна производных величин
	BBWidthLookback int // среднее ширины BB, 10
	VolumePeriod    int // SMA объёма, 20
	SwingLookback   int // локальные экстремумы, 20
}

func DefaultConfig() Config {
	return Config{
		EMAFast:         9,
		EMAMedium:       21,
		EMASlow:         50,
		EMALong:         200,
		RSIPeriod:       14,
		ATRPeriod:       14,
		BBPeriod:        20,
		BBStdDev:        2.0,
		BBWidthLookback: 10,
		VolumePeriod:    20,
		SwingLookback:   20,
	}
}

// MinHistory — минимум свечей для полного снапшота.
func (c Config) MinHistory() int {
	return c.EMALong
}

// Snapshot — производное read-only представление одного таймфрейма
// на момент последней закрытой свечи. Живёт один скан-цикл.
type Snapshot struct {
	Timeframe models.Timeframe

	Close  float64
	Volume float64

	EMAFast   float64
	EMAMedium float64
	EMASlow   float64
	EMALong   float64

	// Предыдущие значения быстрых EMA — для детекта кроссовера.
	PrevEMAFast   float64
	PrevEMAMedium float64

	RSI float64
	ATR float64

	BBUpper  float64
	BBMiddle float64
	BBLower  float64
	// Относительная ширина (upper-lower)/middle и её среднее за BBWidthLookback.
	BBWidth    float64
	AvgBBWidth float64

	AvgVolume float64

	SwingHigh float64
	SwingLow  float64
}
