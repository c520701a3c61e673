package service

import (
	"fmt"
	"strings"
	"time"

	"signal_bot/internal/detector"
	"signal_bot/internal/models"
	lifecycle "signal_bot/internal/modules/lifecycle/service"
	scanner "signal_bot/internal/modules/scanner/service"
)

func formatSignalCard(s models.Signal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*🟢 LONG %s* [%s] — grade *%s*\n\n", s.Symbol, s.Timeframe, s.Grade)
	fmt.Fprintf(&b, "Entry: `%s`\n", f4(s.EntryPrice))
	fmt.Fprintf(&b, "Stop:  `%s` (%s%%)\n", f4(s.StopLoss), f2(pct(s.EntryPrice, s.StopLoss)))
	fmt.Fprintf(&b, "TP1:   `%s`\n", f4(s.TakeProfit1))
	fmt.Fprintf(&b, "TP2:   `%s`\n\n", f4(s.TakeProfit2))
	fmt.Fprintf(&b, "Size: `%s` (risk %s%%)\n", f4(s.PositionSize), f2(s.RiskPct))
	fmt.Fprintf(&b, "Valid until: `%s`\n\n", s.ExpiresAt.UTC().Format("02.01 15:04 MST"))
	fmt.Fprintf(&b, "_%s_\n", s.Rationale)
	if names := detector.FiredNames(s.Triggers); len(names) > 0 {
		fmt.Fprintf(&b, "Triggers: `%s`\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "\n`%s`", s.ID)
	return b.String()
}

func formatEvent(ev lifecycle.Event) string {
	s := ev.Signal
	switch ev.Kind {
	case lifecycle.EventCreated:
		return formatSignalCard(s)
	case lifecycle.EventActivated:
		return fmt.Sprintf("▶️ *%s* вошёл в позицию @ `%s`\n`%s`", s.Symbol, f4(priceOr(ev.Price, s.EntryPrice)), s.ID)
	case lifecycle.EventTP1:
		return fmt.Sprintf("🎯 *%s* TP1 `%s` тронут, сигнал живёт до TP2/SL\n`%s`", s.Symbol, f4(s.TakeProfit1), s.ID)
	case lifecycle.EventTP2:
		return fmt.Sprintf("🏁 *%s* TP2 `%s` — сигнал закрыт в плюс\n`%s`", s.Symbol, f4(s.TakeProfit2), s.ID)
	case lifecycle.EventStopped:
		return fmt.Sprintf("🛑 *%s* стоп `%s` — сигнал закрыт\n`%s`", s.Symbol, f4(s.StopLoss), s.ID)
	case lifecycle.EventExpired:
		return fmt.Sprintf("⌛️ *%s* истёк без входа\n`%s`", s.Symbol, s.ID)
	case lifecycle.EventCancelled:
		return fmt.Sprintf("✖️ *%s* отменён вручную\n`%s`", s.Symbol, s.ID)
	}
	return fmt.Sprintf("%s %s -> %s", s.Symbol, ev.Kind, s.Status)
}

func formatSignalList(sigs []models.Signal) string {
	if len(sigs) == 0 {
		return "📭 Открытых сигналов нет"
	}
	var b strings.Builder
	b.WriteString("*📊 Открытые сигналы*\n\n")
	for _, s := range sigs {
		flag := ""
		if s.TP1Hit {
			flag = " +TP1"
		}
		fmt.Fprintf(&b, "• *%s* [%s/%s%s] entry `%s` sl `%s`\n  `%s`\n",
			s.Symbol, s.Grade, s.Status, flag, f4(s.EntryPrice), f4(s.StopLoss), s.ID)
	}
	return b.String()
}

func formatStatus(st scanner.Status, open int, muted bool) string {
	var b strings.Builder
	b.WriteString("*⚙️ Статус*\n\n")
	if st.LastRun.IsZero() {
		b.WriteString("Скан ещё не запускался\n")
	} else {
		fmt.Fprintf(&b, "Последний скан: `%s` (%s)\n", st.LastRun.UTC().Format("02.01 15:04:05"), st.LastDuration.Round(10*time.Millisecond))
		fmt.Fprintf(&b, "Кандидатов: `%d`, создано: `%d`, ошибок: `%d`, пропущено: `%d`\n", st.LastCandidates, st.LastCreated, st.LastErrors, st.LastSkipped)
	}
	fmt.Fprintf(&b, "Открытых сигналов: `%d`\n", open)
	fmt.Fprintf(&b, "Эмиссия: *%s*\n", onOff(!muted))
	return b.String()
}

func formatPairs(watches []models.PairWatch) string {
	if len(watches) == 0 {
		return "Watchlist пуст"
	}
	var b strings.Builder
	b.WriteString("*👀 Watchlist*\n\n")
	for _, w := range watches {
		mark := "🔕"
		if w.Enabled {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, w.Symbol)
	}
	return b.String()
}

func f2(v float64) string { return fmt.Sprintf("%.2f", v) }
func f4(v float64) string { return fmt.Sprintf("%.4f", v) }

func pct(entry, level float64) float64 {
	if entry == 0 {
		return 0
	}
	return (entry - level) / entry * 100
}

func priceOr(p, fallback float64) float64 {
	if p > 0 {
		return p
	}
	return fallback
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
