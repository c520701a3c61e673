package service

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	lifecycle "signal_bot/internal/modules/lifecycle/service"
	"signal_bot/internal/modules/postgres/pairs"
	"signal_bot/internal/modules/postgres/riskprofile"
	scanner "signal_bot/internal/modules/scanner/service"
	"signal_bot/pkg/logger"
)

// Telegram — единственный внешний интерфейс бота: карточки сигналов,
// эвенты жизненного цикла и команды управления watchlist/риском.
type Telegram struct {
	bot      *tgbot.BotAPI
	cfg      *config.Config
	manager  *lifecycle.Manager
	scanner  *scanner.Scanner
	pairs    *pairs.Repo
	profiles *riskprofile.Repo
	cmds     chan<- models.Command
}

func NewTelegram(
	cfg *config.Config,
	manager *lifecycle.Manager,
	sc *scanner.Scanner,
	p *pairs.Repo,
	rp *riskprofile.Repo,
	cmds chan<- models.Command,
) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}

	return &Telegram{
		bot:      b,
		cfg:      cfg,
		manager:  manager,
		scanner:  sc,
		pairs:    p,
		profiles: rp,
		cmds:     cmds,
	}, nil
}

func (t *Telegram) Send(chatID int64, text string) {
	msg := tgbot.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.bot.Send(msg); err != nil {
		logger.Error("telegram send: %v", err)
	}
}

func (t *Telegram) SendF(chatID int64, format string, args ...any) {
	t.Send(chatID, fmt.Sprintf(format, args...))
}

// Start крутит long-polling до отмены контекста.
func (t *Telegram) Start(ctx context.Context) {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, update)
		}
	}
}

// Notify доставляет эвенты жизненного цикла в сконфигурированный чат.
// Доставка best-effort: упавший Send не ретраится, переход уже в сторе.
func (t *Telegram) Notify(ctx context.Context, events <-chan lifecycle.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Send(t.cfg.Telegram.ChatID, formatEvent(ev))
		}
	}
}
