package queryprotocol

import (
	"log/slog"
	"strings"
)

// malformedTerminatorID is reported when a terminator has no integer id.
const malformedTerminatorID = -1

// handleLine classifies and processes one incoming line. Lines are handled
// one at a time, to completion, in arrival order.
func (c *Client) handleLine(raw string) {
	line := strings.TrimSpace(raw)

	c.mu.Lock()
	if c.state.lifecycle < 0 {
		c.state.lifecycle++
		ready := c.state.ready()
		var err error
		if ready {
			err = c.advanceLocked()
		}
		c.mu.Unlock()

		c.logger.Debug("banner line", slog.String("line", line))
		if ready {
			c.connection.emit(topicAll, ConnectionEvent{Type: EventReady})
		}
		if err != nil {
			c.writeFailed(err)
		}
		return
	}
	c.mu.Unlock()

	switch {
	case isTerminator(line):
		c.handleTerminator(line)
	case strings.HasPrefix(line, NotifyPrefix):
		c.handleNotification(line)
	default:
		c.handleData(line)
	}
}

// isTerminator reports whether line is an "error id=..." terminator. The
// prefix must be followed by a space (or end the line) so that data rows
// whose first key merely starts with "error" are not taken as terminators.
func isTerminator(line string) bool {
	if !strings.HasPrefix(line, TerminatorPrefix) {
		return false
	}
	rest := line[len(TerminatorPrefix):]
	return rest == "" || rest[0] == ' '
}

func (c *Client) handleTerminator(line string) {
	c.mu.Lock()
	cmd := c.state.inFlight
	c.mu.Unlock()

	if cmd == nil {
		c.logger.Warn("terminator with no command in flight", slog.String("line", line))
		return
	}

	applyTerminator(cmd, line)

	completion := Completion{Err: cmd.err, Result: cmd.result, Request: cmd.Request()}
	c.hook.CommandDone(cmd.token, commandInfo(cmd), completion)

	if cmd.err != nil {
		c.logger.Debug("command failed",
			slog.String("id", cmd.ID.String()),
			slog.String("cmd", cmd.Name),
			slog.Any("error", cmd.err),
		)
	} else {
		c.logger.Debug("command done",
			slog.String("id", cmd.ID.String()),
			slog.String("cmd", cmd.Name),
		)
	}

	c.dispatch(cmd, completion)

	c.mu.Lock()
	if c.state.inFlight == cmd {
		c.state.inFlight = nil
	}
	err := c.advanceLocked()
	c.mu.Unlock()

	if err != nil {
		c.writeFailed(err)
	}
}

// applyTerminator records the outcome carried by a terminator line on cmd.
// Data accumulated before an error terminator is kept.
func applyTerminator(cmd *PendingCommand, line string) {
	rest := strings.TrimSpace(line[len(TerminatorPrefix):])
	status := ParseLine(rest).First()

	id, ok := status.Int("id")
	switch {
	case !ok:
		msg := status.Get("msg")
		if msg == "" {
			msg = "malformed terminator"
		}
		cmd.err = newErrorInfo(malformedTerminatorID, msg)
	case id == 0:
		cmd.err = nil
		if cmd.result == nil {
			cmd.result = &Result{Status: StatusOK, Raw: line}
		}
	default:
		cmd.err = newErrorInfo(id, status.Get("msg"))
	}
}

// dispatch hands the completion to the command's callback or, without one,
// to the subscribers of the command's name.
func (c *Client) dispatch(cmd *PendingCommand, completion Completion) {
	if cmd.Callback != nil {
		cmd.Callback(completion)
		return
	}
	if !c.commands.emit(cmd.Name, completion) {
		c.logger.Debug("unclaimed completion", slog.String("cmd", cmd.Name))
	}
}

func (c *Client) handleNotification(line string) {
	rest := line[len(NotifyPrefix):]
	event, body, _ := strings.Cut(rest, " ")

	n := Notification{
		Event: event,
		Data:  ParseLine(body),
		Raw:   line,
	}

	c.logger.Debug("notification", slog.String("event", event))
	c.hook.NotificationReceived(n)

	c.notify.emit(TopicNotify, n)
	c.notify.emit(NotifyTopic(event), n)
}

func (c *Client) handleData(line string) {
	c.mu.Lock()
	cmd := c.state.inFlight
	c.mu.Unlock()

	if cmd == nil || line == "" {
		c.logger.Debug("dropped line", slog.String("line", line))
		return
	}

	// Only the last data line before the terminator is kept.
	cmd.result = &Result{
		Status: StatusOK,
		Data:   ParseLine(line),
		Raw:    line,
	}
}
