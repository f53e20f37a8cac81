// =============================================================================
// commands.go - Non-Interactive Subcommands
// =============================================================================
//
//   - exec:    run each argument as one command and exit
//   - watch:   register for notification events and print them until Ctrl-C
//   - version: print the version
//
// The REPL subcommand lives in repl.go.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tsquery/tsquery/queryprotocol"
)

// ExecCmd is the 'tsquery exec' command.
type ExecCmd struct {
	Lines     []string `arg:"" help:"Commands to run, one per argument." placeholder:"COMMAND"`
	KeepGoing bool     `short:"k" help:"Continue with the next command after a failure."`
}

// Run executes the commands in order. It stops at the first failure unless
// KeepGoing is set.
func (c *ExecCmd) Run(ctx context.Context, cli *CLI, std *streams, logger *slog.Logger) error {
	sess, err := openSession(ctx, cli.sessionConfig(logger, std))
	if err != nil {
		return err
	}
	defer sess.Close()

	failed := 0
	for _, line := range c.Lines {
		if err := sess.run(ctx, line); err != nil {
			if !c.KeepGoing {
				return fmt.Errorf("%s: %w", line, err)
			}
			sess.errorf("Error: %s: %v\n", line, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d commands failed", failed, len(c.Lines))
	}
	return nil
}

// WatchCmd is the 'tsquery watch' command.
type WatchCmd struct {
	Events    []string      `arg:"" help:"Events to register for: server, channel, textserver, textchannel, textprivate." placeholder:"EVENT"`
	Channel   int           `help:"Channel id for channel events." default:"0"`
	Keepalive time.Duration `help:"Interval between keepalive commands; 0 disables them." default:"3m"`
}

// errConnectionLost is returned by watch when the server goes away.
var errConnectionLost = errors.New("connection lost")

// Run registers for every event and prints notifications until the context
// is cancelled or the connection closes.
func (c *WatchCmd) Run(ctx context.Context, cli *CLI, std *streams, logger *slog.Logger) error {
	sess, err := openSession(ctx, cli.sessionConfig(logger, std))
	if err != nil {
		return err
	}
	defer sess.Close()

	for _, event := range c.Events {
		var opts []queryprotocol.CommandOption
		if event == "channel" {
			opts = append(opts, queryprotocol.WithParam("id", c.Channel))
		}
		if err := sess.subscribe(ctx, event, opts...); err != nil {
			return err
		}
	}
	logger.Info("watching", slog.Any("events", c.Events), slog.String("address", sess.address))

	var tick <-chan time.Time
	if c.Keepalive > 0 {
		ticker := time.NewTicker(c.Keepalive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return errConnectionLost
		case <-tick:
			// The server drops idle query sessions.
			sess.client.Invoke("whoami", queryprotocol.WithCallback(func(comp queryprotocol.Completion) {
				if comp.Err != nil {
					logger.Warn("keepalive failed", slog.Any("error", comp.Err))
				}
			}))
		}
	}
}

// VersionCmd is the 'tsquery version' command.
type VersionCmd struct{}

// Run prints the version.
func (c *VersionCmd) Run(std *streams) error {
	fmt.Fprintln(std.out, fullTitle())
	return nil
}
