package queryprotocol

import (
	"io"
	"log/slog"
	"time"
)

// connectionState is the per-client protocol state: the banner countdown,
// the FIFO of commands not yet written, and the single in-flight slot.
//
// The protocol has no request ids. Replies are matched to commands purely
// by arrival order, so at most one command may be unanswered on the wire.
type connectionState struct {
	// lifecycle starts at -BannerLines on attach and reaches zero once the
	// banner has been read. Nothing is written before that.
	lifecycle int

	queue    []*PendingCommand
	inFlight *PendingCommand
}

// ready reports whether the banner has been consumed.
func (s *connectionState) ready() bool {
	return s.lifecycle == 0
}

// submit appends cmd to the queue and, if the connection is ready and idle,
// writes it immediately.
func (c *Client) submit(cmd *PendingCommand) {
	c.mu.Lock()
	cmd.QueuedAt = time.Now()
	c.state.queue = append(c.state.queue, cmd)
	c.logger.Debug("command queued",
		slog.String("id", cmd.ID.String()),
		slog.String("cmd", cmd.Name),
		slog.Int("queued", len(c.state.queue)),
	)

	var err error
	if c.state.ready() {
		err = c.advanceLocked()
	}
	c.mu.Unlock()

	if err != nil {
		c.writeFailed(err)
	}
}

// advanceLocked promotes the head of the queue into the in-flight slot and
// writes it. It is a no-op when a command is already in flight, the queue
// is empty, or no transport is attached. c.mu must be held.
func (c *Client) advanceLocked() error {
	if c.state.inFlight != nil || len(c.state.queue) == 0 || c.writer == nil {
		return nil
	}

	cmd := c.state.queue[0]
	c.state.queue[0] = nil
	c.state.queue = c.state.queue[1:]
	c.state.inFlight = cmd

	cmd.SentAt = time.Now()
	cmd.token = c.hook.CommandSent(commandInfo(cmd))

	c.logger.Debug("command sent",
		slog.String("id", cmd.ID.String()),
		slog.String("line", cmd.Text),
	)

	if _, err := io.WriteString(c.writer, cmd.FormatLine()); err != nil {
		return NewConnectionError("failed to send command", err)
	}
	return nil
}

// advance is advanceLocked for callers not holding c.mu.
func (c *Client) advance() {
	c.mu.Lock()
	err := c.advanceLocked()
	c.mu.Unlock()

	if err != nil {
		c.writeFailed(err)
	}
}

// peekPending returns a copy of the queue.
func (c *Client) peekPending() []*PendingCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() []*PendingCommand {
	pending := make([]*PendingCommand, len(c.state.queue))
	copy(pending, c.state.queue)
	return pending
}

// drainPending returns the queue contents and clears it.
func (c *Client) drainPending() []*PendingCommand {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.state.queue
	c.state.queue = nil
	return pending
}

// writeFailed reports a transport write failure. The in-flight command stays
// in its slot; the reader notices the broken stream and emits close.
func (c *Client) writeFailed(err error) {
	c.logger.Warn("write failed", slog.Any("error", err))

	c.mu.Lock()
	event := ConnectionEvent{
		Type:     EventError,
		Err:      err,
		Pending:  c.snapshotLocked(),
		InFlight: c.state.inFlight,
	}
	c.mu.Unlock()

	c.connection.emit(topicAll, event)
}
