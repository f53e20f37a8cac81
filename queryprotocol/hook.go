package queryprotocol

import (
	"time"

	"github.com/google/uuid"
)

// Hook provides observability callpoints around command execution.
// Implementations must be safe for concurrent use.
type Hook interface {
	// CommandSent is called when a command is written to the transport.
	CommandSent(info CommandInfo) HookToken
	// CommandDone is called after a sent command has been resolved.
	CommandDone(token HookToken, info CommandInfo, c Completion)
	// NotificationReceived is called for every notification line.
	NotificationReceived(n Notification)
}

// HookToken is an opaque value returned by CommandSent and passed back to
// CommandDone. Only meaningful to the Hook that created it.
type HookToken interface{}

// CommandInfo carries command metadata passed to hooks.
type CommandInfo struct {
	ID       uuid.UUID
	Name     string
	Options  int // Number of options
	Params   int // Number of parameters
	QueuedAt time.Time
	SentAt   time.Time
}

func commandInfo(c *PendingCommand) CommandInfo {
	return CommandInfo{
		ID:       c.ID,
		Name:     c.Name,
		Options:  len(c.Options),
		Params:   len(c.Params),
		QueuedAt: c.QueuedAt,
		SentAt:   c.SentAt,
	}
}

// nopHook is installed when no hook is configured.
type nopHook struct{}

func (nopHook) CommandSent(CommandInfo) HookToken { return nil }
func (nopHook) CommandDone(HookToken, CommandInfo, Completion) {}
func (nopHook) NotificationReceived(Notification) {}
