package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"signal_bot/internal/models"
)

// Ошибки провайдера. Для сканера любая из них — skip пары до следующего цикла.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrNotFound    = errors.New("symbol not found")
)

type ClientConfig struct {
	BaseURL string
	RPS     float64
	Burst   int
}

// Client — REST-клиент свечей (Binance spot). Все запросы идут через
// локальный rate-limiter, чтобы не упираться в биржевые лимиты на пуле
// воркеров сканера.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
}

// GetCandles возвращает закрытые свечи по возрастанию времени.
// Текущая (незакрытая) свеча отбрасывается: пайплайн считает только по
// закрытым данным, иначе детерминизм цикла ломается.
func (c *Client) GetCandles(ctx context.Context, symbol string, tf models.Timeframe, limit int) ([]models.Candle, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", string(tf))
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		// 418 — бан за флуд, тот же класс
		return nil, fmt.Errorf("%w: %s %s", ErrRateLimited, symbol, tf)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	case resp.StatusCode/100 != 2:
		return nil, fmt.Errorf("klines %s %s: http %d: %s", symbol, tf, resp.StatusCode, string(body))
	}

	// Формат kline: [openTime, open, high, low, close, volume, closeTime, ...]
	var raw [][]any
	if err := sonic.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("klines %s %s: decode: %w", symbol, tf, err)
	}

	candles := make([]models.Candle, 0, len(raw))
	nowMs := time.Now().UnixMilli()
	for _, k := range raw {
		if len(k) < 7 {
			continue
		}
		closeTime, ok := k[6].(float64)
		if !ok {
			continue
		}
		if int64(closeTime) > nowMs {
			continue // незакрытая свеча
		}
		openTime, _ := k[0].(float64)
		candles = append(candles, models.Candle{
			Open:   parseF(k[1]),
			High:   parseF(k[2]),
			Low:    parseF(k[3]),
			Close:  parseF(k[4]),
			Volume: parseF(k[5]),
			Ts:     time.UnixMilli(int64(openTime)).UTC(),
		})
	}
	return candles, nil
}

func parseF(v any) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
