// =============================================================================
// lineeditor.go - Line Editor with Dual-Mode Operation
// =============================================================================
//
// The REPL reads input through a LineEditor that detects whether stdin is an
// interactive terminal:
//
//   - Interactive mode: ergochat/readline with Emacs keybindings, persistent
//     history and Ctrl-R history search.
//   - Non-interactive mode: bufio.Scanner reading piped input line by line,
//     with the prompt printed manually (Emacs comint, scripts, tests).
//
// History is kept in the XDG state directory
// ($XDG_STATE_HOME/tsquery/history) with a 500-entry limit. Lines that look
// like a login carry a password and are never saved.
//
// =============================================================================

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/adrg/xdg"
	"github.com/ergochat/readline"
)

const (
	// historySize is the maximum number of history entries to retain.
	historySize = 500
)

// historyPath returns the history file location, creating its directory.
// It returns "" when no state directory is usable.
func historyPath() string {
	path, err := xdg.StateFile(appName + "/history")
	if err != nil {
		slog.Debug("history disabled", slog.Any("error", err))
		return ""
	}
	return path
}

// LineEditor wraps line editing with dual-mode operation.
type LineEditor struct {
	// interactive is true when stdin is a TTY and INSIDE_EMACS is unset.
	interactive bool

	// rl is the readline instance used in interactive mode, nil otherwise.
	rl *readline.Instance

	// scanner reads piped input in non-interactive mode, nil otherwise.
	scanner *bufio.Scanner

	// out receives the prompt in non-interactive mode.
	out io.Writer
}

// GO CONCEPT: Graceful Degradation
// --------------------------------
// Readline needs a real terminal. Rather than failing when it cannot set
// one up, NewLineEditor falls back to the plain scanner path, so the REPL
// still works over pipes and inside editors that do their own line editing.
//
// Compare with Python: the readline module is optional there too; programs
// commonly wrap `import readline` in try/except ImportError and carry on
// with plain input().

// NewLineEditor creates a LineEditor reading from in. The prompt for
// non-interactive input is written to out.
func NewLineEditor(in *os.File, out io.Writer) *LineEditor {
	interactive := isTerminal(in) && os.Getenv("INSIDE_EMACS") == ""
	if !interactive {
		return newScannerEditor(in, out)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyPath(),
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		slog.Warn("readline unavailable, using basic input", slog.Any("error", err))
		return newScannerEditor(in, out)
	}

	return &LineEditor{
		interactive: true,
		rl:          rl,
		out:         out,
	}
}

func newScannerEditor(in io.Reader, out io.Writer) *LineEditor {
	return &LineEditor{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// GetLine reads a line with the given prompt. It returns io.EOF on Ctrl-D,
// Ctrl-C or the end of piped input.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); shouldRemember(trimmed) {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	fmt.Fprint(le.out, prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// shouldRemember reports whether a line belongs in the history file.
func shouldRemember(line string) bool {
	if line == "" {
		return false
	}
	name, _, _ := strings.Cut(line, " ")
	return !strings.EqualFold(name, "login")
}

// Close releases the readline instance. It is safe to call more than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether full line editing is active.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
