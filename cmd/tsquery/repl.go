// =============================================================================
// repl.go - Interactive Read-Eval-Print Loop
// =============================================================================
//
// The REPL reads one line at a time. Lines starting with "." are handled
// locally (help, queue inspection, output format, notification watches);
// everything else is translated into a ServerQuery command, sent, and its
// reply printed before the next prompt. Notifications that arrive in the
// meantime are printed by the session as they come in.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tsquery/tsquery/queryprotocol"
)

// prompt is shown before every input line.
const prompt = "tsquery> "

// repl holds the state of one interactive session.
type repl struct {
	sess *session
}

// runREPL runs the loop until .quit, end of input, context cancellation or
// the connection going away.
func runREPL(ctx context.Context, sess *session, editor *LineEditor) {
	r := &repl{sess: sess}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sess.Done():
			sess.errorf("Disconnected.\n")
			return
		default:
		}

		line, err := editor.GetLine(prompt)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				sess.errorf("Error: %v\n", err)
			}
			sess.printf("\n")
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := r.dotCommand(ctx, line); quit {
				return
			}
			continue
		}

		if err := sess.run(ctx, line); err != nil {
			r.reportError(err)
		}
	}
}

// reportError prints err unless it was already rendered as JSON.
func (r *repl) reportError(err error) {
	var info *queryprotocol.ErrorInfo
	if errors.As(err, &info) && r.sess.isJSON() {
		return
	}
	r.sess.errorf("Error: %v\n", err)
}

// GO CONCEPT: Returning Control-Flow Results
// -------------------------------------------
// dotCommand returns a single bool telling the loop whether to stop. Small
// control-flow results like this stay plain values; errors are reported
// where they happen rather than being threaded back up.
//
// Compare with Python: a command handler there might raise a custom
// QuitREPL exception caught by the loop; Go prefers the explicit return.

// dotCommand handles a local command. It returns true when the REPL should
// exit.
func (r *repl) dotCommand(ctx context.Context, line string) bool {
	name, args, _ := strings.Cut(line, " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(name) {
	case ".quit", ".exit":
		return true

	case ".help":
		var help strings.Builder
		if err := printHelp(&help, args); err != nil {
			r.sess.errorf("Error: %v\n", err)
			break
		}
		r.sess.printf("%s", help.String())

	case ".pending":
		r.printPending()

	case ".clear":
		dropped := r.sess.client.ClearPending()
		r.sess.printf("Dropped %d queued command(s).\n", len(dropped))

	case ".json":
		on := !r.sess.isJSON()
		r.sess.setJSON(on)
		if on {
			r.sess.printf("JSON output on.\n")
		} else {
			r.sess.printf("JSON output off.\n")
		}

	case ".watch":
		r.watch(ctx, args)

	default:
		r.sess.errorf("Error: unknown command '%s'. Type .help for available commands.\n", name)
	}
	return false
}

// printPending lists the in-flight command and the queue.
func (r *repl) printPending() {
	inFlight := r.sess.client.InFlight()
	pending := r.sess.client.Pending()
	if inFlight == nil && len(pending) == 0 {
		r.sess.printf("No commands pending.\n")
		return
	}
	if inFlight != nil {
		r.sess.printf("  [sent] %s\n", inFlight.Text)
	}
	for i, cmd := range pending {
		r.sess.printf("  %4d. %s\n", i+1, cmd.Text)
	}
}

// watch handles ".watch <event> [key=value...]".
func (r *repl) watch(ctx context.Context, args string) {
	event, rest, _ := strings.Cut(args, " ")
	if event == "" {
		r.sess.errorf("Error: usage: .watch <event> [id=<channel id>]\n")
		return
	}

	extra, err := translateLine("servernotifyregister " + rest)
	if err != nil {
		r.sess.errorf("Error: %v\n", err)
		return
	}

	if err := r.sess.subscribe(ctx, event, queryprotocol.WithParams(extra.Params...)); err != nil {
		r.sess.errorf("Error: %v\n", err)
		return
	}
	r.sess.printf("Watching %s events.\n", event)
}

// =============================================================================
// Subcommands
// =============================================================================

// ReplCmd is the 'tsquery repl' command.
type ReplCmd struct{}

// Run connects and starts the interactive loop.
func (c *ReplCmd) Run(ctx context.Context, cli *CLI, std *streams, logger *slog.Logger) error {
	sess, err := openSession(ctx, cli.sessionConfig(logger, std))
	if err != nil {
		return err
	}
	defer sess.Close()

	editor := NewLineEditor(std.in, std.out)
	defer editor.Close()

	if editor.IsInteractive() && !cli.Quiet {
		fmt.Fprint(std.out, welcomeBanner(sess.address))
	}

	runREPL(ctx, sess, editor)
	return nil
}
