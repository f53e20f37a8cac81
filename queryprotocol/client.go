package queryprotocol

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Client is a ServerQuery client bound to one connection at a time.
//
// Commands are queued in submission order and written one at a time: the
// next command goes out only after the previous one's terminator line has
// been received. Notifications are delivered as they arrive, independent of
// the queue.
//
// Thread Safety:
// The client uses a mutex to protect its state and is safe for concurrent
// use from multiple goroutines. Callbacks and event handlers run on the
// reader goroutine without the mutex held; they may send further commands
// but must not block for the reply of one.
type Client struct {
	mu sync.Mutex

	state connectionState

	conn        io.ReadWriteCloser
	writer      io.Writer
	isConnected bool
	closing     bool
	readerDone  chan struct{}

	logger      *slog.Logger
	hook        Hook
	dialTimeout time.Duration
	bannerLines int

	notify     *registry[Notification]
	commands   *registry[Completion]
	connection *registry[ConnectionEvent]
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHook installs an observability hook.
func WithHook(hook Hook) ClientOption {
	return func(c *Client) {
		if hook != nil {
			c.hook = hook
		}
	}
}

// WithDialTimeout sets the timeout used by Connect. Defaults to
// ConnectionTimeout.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithBannerLines overrides the number of greeting lines expected after
// connect. Defaults to BannerLines.
func WithBannerLines(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.bannerLines = n
		}
	}
}

// NewClient creates a new ServerQuery client. It is not connected; commands
// sent before Connect or Attach are queued.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger:      slog.Default(),
		hook:        nopHook{},
		dialTimeout: ConnectionTimeout,
		bannerLines: BannerLines,
		notify:      newRegistry[Notification](),
		commands:    newRegistry[Completion](),
		connection:  newRegistry[ConnectionEvent](),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.lifecycle = -c.bannerLines
	return c
}

// IsConnected returns true if a transport is attached.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Ready returns true once the banner has been read and commands are being
// written.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected && c.state.ready()
}

// Connect dials a ServerQuery endpoint over TCP and attaches to it. The
// default host and port are filled in when missing.
func (c *Client) Connect(ctx context.Context, address string) error {
	if c.IsConnected() {
		return ErrAlreadyConnected
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	addr := Address(address)
	var d net.Dialer
	conn, err := d.DialContext(connectCtx, "tcp", addr)
	if err != nil {
		return NewConnectionError("failed to connect to "+addr, err)
	}

	c.logger.Debug("connected", slog.String("address", addr))
	if err := c.Attach(conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// Attach starts the protocol over an already established stream. The client
// reads lines from conn until it fails or Disconnect is called. A command
// left in flight by the previous connection is failed with ErrAbandoned;
// queued commands are written once the new banner has been read.
func (c *Client) Attach(conn io.ReadWriteCloser) error {
	c.mu.Lock()
	if c.isConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	// The reply of a command still in flight died with the previous
	// connection.
	stale := c.state.inFlight
	c.state.inFlight = nil

	c.conn = conn
	c.writer = conn
	c.isConnected = true
	c.closing = false
	c.state.lifecycle = -c.bannerLines
	done := make(chan struct{})
	c.readerDone = done
	c.mu.Unlock()

	if stale != nil {
		c.logger.Warn("failing unanswered command from previous connection",
			slog.String("id", stale.ID.String()),
			slog.String("cmd", stale.Name),
		)
		c.abandon(stale, ErrAbandoned)
	}

	// The reader has not started, so nothing can flush the queue before the
	// stale command is resolved.
	var err error
	c.mu.Lock()
	if c.state.ready() {
		err = c.advanceLocked()
	}
	c.mu.Unlock()

	c.connection.emit(topicAll, ConnectionEvent{Type: EventConnect})
	if c.bannerLines == 0 {
		c.connection.emit(topicAll, ConnectionEvent{Type: EventReady})
	}
	if err != nil {
		c.writeFailed(err)
	}

	go c.readerLoop(conn, done)
	return nil
}

// Disconnect closes the connection and waits for the reader to stop. Queued
// commands are kept; use ClearPending or FailPending to abandon them.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.isConnected {
		c.mu.Unlock()
		return
	}
	c.closing = true
	conn := c.conn
	done := c.readerDone
	c.mu.Unlock()

	conn.Close()
	<-done
}

// readerLoop reads lines from conn and routes them until the stream ends.
func (c *Client) readerLoop(conn io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineLength)
	for scanner.Scan() {
		c.handleLine(scanner.Text())
	}

	err := scanner.Err()
	if errors.Is(err, bufio.ErrTooLong) {
		err = ErrLineTooLong
	}
	c.handleDisconnect(err)
}

// handleDisconnect detaches the transport and emits the connection events.
// The queue and the in-flight command are left untouched.
func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	closing := c.closing
	if !closing {
		// The server closed or the stream failed; release our side.
		c.conn.Close()
	}
	c.conn = nil
	c.writer = nil
	c.isConnected = false
	c.closing = false
	pending := c.snapshotLocked()
	inFlight := c.state.inFlight
	c.mu.Unlock()

	event := ConnectionEvent{Pending: pending, InFlight: inFlight}

	switch {
	case closing:
		c.logger.Debug("disconnected")
	case err == nil:
		// bufio.Scanner reports io.EOF as a nil error.
		c.logger.Info("server closed the connection", slog.Int("pending", len(pending)))
		end := event
		end.Type = EventEnd
		c.connection.emit(topicAll, end)
	default:
		connErr := NewConnectionError("read failed", err)
		c.logger.Warn("connection lost", slog.Any("error", connErr))
		failure := event
		failure.Type = EventError
		failure.Err = connErr
		c.connection.emit(topicAll, failure)
	}

	event.Type = EventClose
	c.connection.emit(topicAll, event)
}

// Send queues cmd. It returns immediately; the outcome is delivered to the
// command's callback or, without one, to OnCommand subscribers.
func (c *Client) Send(cmd *PendingCommand) *PendingCommand {
	c.submit(cmd)
	return cmd
}

// Invoke builds and sends a command by name.
func (c *Client) Invoke(name string, opts ...CommandOption) *PendingCommand {
	return c.Send(NewCommand(name, opts...))
}

// SendWithContext sends cmd and waits for its completion. If ctx ends first
// it returns ctx.Err(); the command stays queued and its completion is
// discarded when it arrives.
func (c *Client) SendWithContext(ctx context.Context, cmd *PendingCommand) (Completion, error) {
	result := make(chan Completion, 1)
	next := cmd.Callback
	cmd.Callback = func(comp Completion) {
		if next != nil {
			next(comp)
		}
		result <- comp
	}

	c.submit(cmd)

	select {
	case comp := <-result:
		return comp, nil
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// Execute is SendWithContext for a command built by name.
func (c *Client) Execute(ctx context.Context, name string, opts ...CommandOption) (Completion, error) {
	return c.SendWithContext(ctx, NewCommand(name, opts...))
}

// Pending returns a snapshot of the queued commands that have not been
// written yet.
func (c *Client) Pending() []*PendingCommand {
	return c.peekPending()
}

// ClearPending removes and returns every queued command. Their callbacks
// are not called.
func (c *Client) ClearPending() []*PendingCommand {
	return c.drainPending()
}

// InFlight returns the command awaiting its terminator, if any.
func (c *Client) InFlight() *PendingCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.inFlight
}

// FailPending drains the queue and resolves every drained command with a
// ConnectionError wrapping cause (ErrAbandoned when nil). When no transport
// is attached the orphaned in-flight command is failed too. It returns the
// number of commands failed.
func (c *Client) FailPending(cause error) int {
	if cause == nil {
		cause = ErrAbandoned
	}

	c.mu.Lock()
	drained := c.state.queue
	c.state.queue = nil
	if !c.isConnected && c.state.inFlight != nil {
		drained = append([]*PendingCommand{c.state.inFlight}, drained...)
		c.state.inFlight = nil
	}
	c.mu.Unlock()

	for _, cmd := range drained {
		c.abandon(cmd, cause)
	}
	return len(drained)
}

// abandon resolves cmd with a ConnectionError wrapping cause. A command that
// was written also closes its hook token.
func (c *Client) abandon(cmd *PendingCommand, cause error) {
	completion := Completion{
		Err:     NewConnectionError("command "+cmd.Name+" not answered", cause),
		Result:  cmd.result,
		Request: cmd.Request(),
	}
	if !cmd.SentAt.IsZero() {
		c.hook.CommandDone(cmd.token, commandInfo(cmd), completion)
	}
	c.dispatch(cmd, completion)
}

// Subscribe registers for server notifications (servernotifyregister). The
// options typically carry event=<name> and, for channel events, id=<cid>.
func (c *Client) Subscribe(event string, opts ...CommandOption) *PendingCommand {
	opts = append([]CommandOption{WithParam("event", event)}, opts...)
	return c.Invoke("servernotifyregister", opts...)
}

// Unsubscribe removes every notification registration
// (servernotifyunregister).
func (c *Client) Unsubscribe(opts ...CommandOption) *PendingCommand {
	return c.Invoke("servernotifyunregister", opts...)
}

// OnNotify subscribes to every notification. The returned function removes
// the subscription.
func (c *Client) OnNotify(handler func(Notification)) func() {
	return c.notify.on(TopicNotify, handler)
}

// OnNotifyEvent subscribes to notifications named event (for example
// "cliententerview").
func (c *Client) OnNotifyEvent(event string, handler func(Notification)) func() {
	return c.notify.on(NotifyTopic(event), handler)
}

// OnCommand subscribes to completions of commands named name that were sent
// without a callback.
func (c *Client) OnCommand(name string, handler func(Completion)) func() {
	return c.commands.on(name, handler)
}

// OnConnection subscribes to connection events.
func (c *Client) OnConnection(handler func(ConnectionEvent)) func() {
	return c.connection.on(topicAll, handler)
}
