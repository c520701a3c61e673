package models

import "time"

// PairWatch — наблюдаемый инструмент. Мутируется только командами юзера,
// для ядра это read-only вход.
type PairWatch struct {
	Symbol  string
	Enabled bool
	AddedAt time.Time
}
