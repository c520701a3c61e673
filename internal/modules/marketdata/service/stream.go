package service

import (
	"context"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

// PairLister отдаёт актуальный список отслеживаемых символов.
type PairLister interface {
	ListEnabled(ctx context.Context) ([]models.PairWatch, error)
}

// HealthSink — куда стрим репортит состояние соединения и свежесть цен.
type HealthSink interface {
	SetWSConnected(bool)
	TouchTick(time.Time)
}

type StreamConfig struct {
	WSURL string
}

// Stream — один WebSocket с пачкой miniTicker-подписок на все включённые
// пары. Поток цен питает супервизию открытых сигналов (entry/TP/SL).
type Stream struct {
	wsURL  string
	dialer *websocket.Dialer
	pairs  PairLister
	health HealthSink
}

func NewStream(cfg StreamConfig, pairs PairLister, health HealthSink) *Stream {
	return &Stream{
		wsURL:  cfg.WSURL,
		dialer: websocket.DefaultDialer,
		pairs:  pairs,
		health: health,
	}
}

// Run пишет тики в ticks до отмены контекста. Реконнект с паузой на любой
// ошибке; раз в минуту сверяем watchlist и пересоединяемся, если состав
// пар поменялся (новых подписок на живом соединении не делаем).
func (s *Stream) Run(ctx context.Context, ticks chan<- models.PriceTick) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		symbols, err := s.listSymbols(ctx)
		if err != nil {
			logger.Error("[WS] list pairs: %v", err)
			sleepCtx(ctx, 5*time.Second)
			continue
		}
		if len(symbols) == 0 {
			sleepCtx(ctx, 30*time.Second)
			continue
		}

		logger.Info("[WS] connect miniTicker, %d symbols", len(symbols))
		conn, _, err := s.dialer.Dial(s.combinedURL(symbols), nil)
		if err != nil {
			logger.Error("[WS] dial: %v", err)
			sleepCtx(ctx, time.Second)
			continue
		}

		// watchdog: закрывает соединение при смене watchlist или отмене
		stop := make(chan struct{})
		go func() {
			defer conn.Close()
			t := time.NewTicker(time.Minute)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-stop:
					return
				case <-t.C:
					cur, err := s.listSymbols(ctx)
					if err == nil && !sameSet(symbols, cur) {
						logger.Info("[WS] watchlist changed, resubscribe")
						return
					}
				}
			}
		}()

		s.health.SetWSConnected(true)
		s.readLoop(ctx, conn, ticks)
		s.health.SetWSConnected(false)
		close(stop)

		select {
		case <-ctx.Done():
			return
		default:
			time.Sleep(time.Second)
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn, ticks chan<- models.PriceTick) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				logger.Error("[WS] read: %v", err)
			}
			_ = conn.Close()
			return
		}

		var frame struct {
			Stream string `json:"stream"`
			Data   struct {
				Symbol string `json:"s"`
				Close  string `json:"c"`
			} `json:"data"`
		}
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}
		if frame.Data.Symbol == "" {
			continue
		}
		price := parseF(frame.Data.Close)
		if price <= 0 {
			continue
		}

		now := time.Now().UTC()
		s.health.TouchTick(now)

		select {
		case ticks <- models.PriceTick{Symbol: frame.Data.Symbol, Price: price, Ts: now}:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

func (s *Stream) combinedURL(symbols []string) string {
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, strings.ToLower(sym)+"@miniTicker")
	}
	return s.wsURL + "/stream?streams=" + strings.Join(streams, "/")
}

func (s *Stream) listSymbols(ctx context.Context) ([]string, error) {
	watches, err := s.pairs.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(watches))
	for _, w := range watches {
		symbols = append(symbols, w.Symbol)
	}
	return symbols, nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
