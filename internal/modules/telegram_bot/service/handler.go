package service

import (
	"context"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
)

const helpText = "*Команды*\n\n" +
	"/signals — открытые сигналы\n" +
	"/cancel `<id>` — отменить сигнал\n" +
	"/mute — глобально выключить эмиссию\n" +
	"/mute `<pair>` — убрать пару из watchlist и снять её сигнал\n" +
	"/unmute — включить эмиссию\n" +
	"/unmute `<pair>` — вернуть пару\n" +
	"/pairs — watchlist\n" +
	"/add `<pair>` — добавить пару\n" +
	"/risk — текущий риск-профиль\n" +
	"/risk `<pct>` — риск на сигнал, %%\n" +
	"/scan — внеочередной проход\n" +
	"/status — состояние сканера"

func (t *Telegram) handleUpdate(ctx context.Context, update tgbot.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	// бот одночатовый: чужие чаты игнорируем молча
	if t.cfg.Telegram.ChatID != 0 && chatID != t.cfg.Telegram.ChatID {
		return
	}

	arg := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		t.Send(chatID, helpText)

	case "signals":
		t.Send(chatID, formatSignalList(t.manager.OpenSignals()))

	case "cancel":
		t.handleCancel(chatID, arg)

	case "mute":
		t.handleMute(ctx, chatID, arg)

	case "unmute":
		t.handleUnmute(ctx, chatID, arg)

	case "pairs":
		watches, err := t.pairs.List(ctx)
		if err != nil {
			t.SendF(chatID, "❗️ %v", err)
			return
		}
		t.Send(chatID, formatPairs(watches))

	case "add":
		if arg == "" {
			t.Send(chatID, "Укажи пару: /add ETHUSDC")
			return
		}
		symbol := strings.ToUpper(arg)
		if err := t.pairs.Ensure(ctx, []string{symbol}); err != nil {
			t.SendF(chatID, "❗️ %v", err)
			return
		}
		if err := t.pairs.SetEnabled(ctx, symbol, true); err != nil {
			t.SendF(chatID, "❗️ %v", err)
			return
		}
		t.SendF(chatID, "✅ %s в watchlist", symbol)

	case "risk":
		t.handleRisk(ctx, chatID, arg)

	case "scan":
		go t.scanner.Scan(ctx)
		t.Send(chatID, "🔄 Скан запущен")

	case "status":
		t.Send(chatID, formatStatus(t.scanner.Status(), t.manager.OpenCount(), t.manager.Muted()))

	default:
		t.Send(chatID, helpText)
	}
}

func (t *Telegram) handleCancel(chatID int64, arg string) {
	id, err := uuid.Parse(arg)
	if err != nil {
		t.Send(chatID, "Нужен id сигнала: /cancel <uuid>")
		return
	}
	t.enqueue(chatID, models.Command{Kind: models.CmdCancel, SignalID: id})
	t.SendF(chatID, "✖️ Отмена `%s` принята", id)
}

func (t *Telegram) handleMute(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		t.manager.SetMuted(true)
		t.Send(chatID, "🔕 Эмиссия сигналов выключена")
		return
	}
	symbol := strings.ToUpper(arg)
	if err := t.pairs.SetEnabled(ctx, symbol, false); err != nil {
		t.SendF(chatID, "❗️ %v", err)
		return
	}
	// открытый сигнал пары снимается тем же путём, что и ручная отмена
	t.enqueue(chatID, models.Command{Kind: models.CmdMutePair, Symbol: symbol})
	t.SendF(chatID, "🔕 %s выключена", symbol)
}

func (t *Telegram) handleUnmute(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		t.manager.SetMuted(false)
		t.Send(chatID, "🔔 Эмиссия сигналов включена")
		return
	}
	symbol := strings.ToUpper(arg)
	if err := t.pairs.SetEnabled(ctx, symbol, true); err != nil {
		t.SendF(chatID, "❗️ %v", err)
		return
	}
	t.SendF(chatID, "🔔 %s включена", symbol)
}

func (t *Telegram) handleRisk(ctx context.Context, chatID int64, arg string) {
	if arg == "" {
		profile, err := t.profiles.Get(ctx)
		if err != nil {
			t.SendF(chatID, "❗️ %v", err)
			return
		}
		t.SendF(chatID, "*📉 Риск*\n\nRisk: `%s%%` на сигнал\nEquity: `%s`\nКап: `%d` сигналов\nTTL: `%s`",
			f2(profile.RiskPct), f2(profile.AccountEquity), profile.MaxConcurrentSignals, profile.SignalTTL)
		return
	}

	pct, err := strconv.ParseFloat(arg, 64)
	if err != nil || pct <= 0 || pct > 5 {
		t.Send(chatID, "Риск задаётся в процентах, (0; 5]: /risk 0.7")
		return
	}
	if err := t.profiles.SetRiskPct(ctx, pct); err != nil {
		t.SendF(chatID, "❗️ %v", err)
		return
	}
	t.SendF(chatID, "📉 Риск на сигнал: `%s%%`", f2(pct))
}

// enqueue — неблокирующая отправка в канал команд; переполнение видно юзеру.
func (t *Telegram) enqueue(chatID int64, cmd models.Command) {
	select {
	case t.cmds <- cmd:
	default:
		logger.Warn("commands channel full, %s dropped", cmd.Kind)
		t.Send(chatID, "⚠️ Очередь команд переполнена, повтори позже")
	}
}
