// =============================================================================
// session.go - Connected Client Session
// =============================================================================
//
// A session owns one queryprotocol.Client for the lifetime of a subcommand.
// Opening a session connects to the server, installs the printing handlers
// for notifications and connection events, and performs the optional login
// and virtual server selection. Closing it disconnects, fails whatever is
// still queued, and flushes the telemetry exporters.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tsquery/tsquery/queryprotocol"
)

// sessionConfig holds everything needed to open a session.
type sessionConfig struct {
	Address  string
	Timeout  time.Duration
	User     string
	Password string
	ServerID int
	JSON     bool
	Trace    bool
	Logger   *slog.Logger
	Out      io.Writer
	ErrOut   io.Writer
}

// session is a connected client plus its output streams.
type session struct {
	client  *queryprotocol.Client
	address string
	timeout time.Duration
	logger  *slog.Logger

	// mu serializes writes to out and errOut; notifications are printed
	// from the client's reader goroutine.
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	json   bool

	closed    chan struct{}
	closeOnce sync.Once
	cancels   []func()
	telemetry *telemetry
}

// openSession connects to cfg.Address and runs the login sequence.
func openSession(ctx context.Context, cfg sessionConfig) (*session, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	address := queryprotocol.Address(cfg.Address)
	opts := []queryprotocol.ClientOption{
		queryprotocol.WithLogger(cfg.Logger),
		queryprotocol.WithDialTimeout(cfg.Timeout),
	}

	var tel *telemetry
	if cfg.Trace {
		var err error
		tel, err = newTelemetry(cfg.ErrOut, address)
		if err != nil {
			return nil, err
		}
		opts = append(opts, queryprotocol.WithHook(tel.hook))
	}

	s := &session{
		client:    queryprotocol.NewClient(opts...),
		address:   address,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		out:       cfg.Out,
		errOut:    cfg.ErrOut,
		json:      cfg.JSON,
		closed:    make(chan struct{}),
		telemetry: tel,
	}
	s.cancels = append(s.cancels,
		s.client.OnNotify(s.printNotification),
		s.client.OnConnection(s.connectionEvent),
	)

	if err := s.client.Connect(ctx, address); err != nil {
		s.shutdownTelemetry()
		return nil, err
	}

	if err := s.login(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// login sends login and use when they are configured.
func (s *session) login(ctx context.Context, cfg sessionConfig) error {
	if cfg.User != "" {
		comp, err := s.execute(ctx, queryprotocol.NewCommand("login",
			queryprotocol.WithParam("client_login_name", cfg.User),
			queryprotocol.WithParam("client_login_password", cfg.Password),
		))
		if err == nil {
			err = comp.Err
		}
		if err != nil {
			return fmt.Errorf("login as %s: %w", cfg.User, err)
		}
	}
	if cfg.ServerID > 0 {
		comp, err := s.execute(ctx, queryprotocol.NewCommand("use",
			queryprotocol.WithParam("sid", cfg.ServerID),
		))
		if err == nil {
			err = comp.Err
		}
		if err != nil {
			return fmt.Errorf("select virtual server %d: %w", cfg.ServerID, err)
		}
	}
	return nil
}

// execute sends cmd and waits for its completion or the session timeout.
func (s *session) execute(ctx context.Context, cmd *queryprotocol.PendingCommand) (queryprotocol.Completion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	comp, err := s.client.SendWithContext(ctx, cmd)
	if errors.Is(err, context.DeadlineExceeded) {
		return comp, fmt.Errorf("%s: no reply within %s", cmd.Name, s.timeout)
	}
	return comp, err
}

// run translates an input line, executes it and prints the reply. Errors
// are returned for the caller to report; in JSON mode a protocol error is
// also printed as a JSON object.
func (s *session) run(ctx context.Context, line string) error {
	cmd, err := translateLine(line)
	if err != nil {
		return err
	}
	if cmd == nil {
		return nil
	}

	comp, err := s.execute(ctx, cmd)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if comp.Err != nil {
		if s.json {
			writeErrorJSON(s.out, comp)
		}
		return comp.Err
	}
	return writeCompletion(s.out, comp, s.json)
}

// subscribe registers for event notifications and waits for the server to
// confirm.
func (s *session) subscribe(ctx context.Context, event string, opts ...queryprotocol.CommandOption) error {
	done := make(chan queryprotocol.Completion, 1)
	opts = append(opts, queryprotocol.WithCallback(func(comp queryprotocol.Completion) {
		done <- comp
	}))
	s.client.Subscribe(event, opts...)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	select {
	case comp := <-done:
		if comp.Err != nil {
			return fmt.Errorf("watch %s: %w", event, comp.Err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("watch %s: %w", event, ctx.Err())
	}
}

// errorf writes to the error stream under the output lock.
func (s *session) errorf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.errOut, format, args...)
}

// setJSON switches the output format.
func (s *session) setJSON(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.json = on
}

// isJSON reports the current output format.
func (s *session) isJSON() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.json
}

// printf writes informational output under the output lock.
func (s *session) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *session) printNotification(n queryprotocol.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeNotification(s.out, n, s.json)
}

func (s *session) connectionEvent(ev queryprotocol.ConnectionEvent) {
	switch ev.Type {
	case queryprotocol.EventEnd:
		s.mu.Lock()
		fmt.Fprintf(s.errOut, "Connection closed by %s\n", s.address)
		s.mu.Unlock()
	case queryprotocol.EventError:
		s.mu.Lock()
		fmt.Fprintf(s.errOut, "Connection error: %v\n", ev.Err)
		s.mu.Unlock()
	case queryprotocol.EventClose:
		// Nothing will answer what is still queued.
		if n := s.client.FailPending(queryprotocol.ErrClosed); n > 0 {
			s.logger.Debug("failed queued commands", slog.Int("count", n))
		}
		s.closeOnce.Do(func() { close(s.closed) })
	}
}

// Done is closed once the connection has gone away.
func (s *session) Done() <-chan struct{} {
	return s.closed
}

// Close disconnects and releases the session. It is safe to call more than
// once.
func (s *session) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil

	s.client.Disconnect()
	s.client.FailPending(queryprotocol.ErrClosed)
	s.closeOnce.Do(func() { close(s.closed) })
	s.shutdownTelemetry()
}

func (s *session) shutdownTelemetry() {
	if s.telemetry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Warn("telemetry shutdown failed", slog.Any("error", err))
	}
	s.telemetry = nil
}
