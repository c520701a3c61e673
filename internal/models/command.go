package models

import "github.com/google/uuid"

// CommandKind — внешние команды, меняющие состояние сигналов.
type CommandKind string

const (
	CmdMarkActive CommandKind = "mark_active"
	CmdCancel     CommandKind = "cancel"
	CmdMutePair   CommandKind = "mute_pair"
)

// Command приходит из telegram-бота и потребляется lifecycle-менеджером.
type Command struct {
	Kind     CommandKind
	SignalID uuid.UUID // mark_active / cancel
	Symbol   string    // mute_pair
}
