// =============================================================================
// main.go - tsquery CLI Entry Point
// =============================================================================
//
// tsquery is a command-line client for the TeamSpeak ServerQuery interface.
// It connects over TCP, optionally logs in and selects a virtual server, and
// then either runs an interactive REPL, executes a list of commands, or
// watches server notifications.
//
// Usage:
//
//	tsquery                                   Start the REPL on localhost:10011
//	tsquery --host ts.example.com repl        Start the REPL on another host
//	tsquery exec "serverinfo" "clientlist -uid"
//	tsquery --user serveradmin --sid 1 watch server textchannel
//	tsquery version                           Show version
//
// Flags may also be supplied via TSQUERY_* environment variables or a JSON
// configuration file (default: $XDG_CONFIG_HOME/tsquery/config.json).
//
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/alecthomas/kong"
	"golang.org/x/term"
)

// =============================================================================
// Version Information
// =============================================================================

const (
	// version is the current version of the CLI.
	version = "0.3.0"

	// appName is the application name, also used for XDG paths.
	appName = "tsquery"
)

// fullTitle returns the application name with version.
func fullTitle() string {
	return fmt.Sprintf("%s v%s", appName, version)
}

// welcomeBanner returns the banner displayed when the REPL starts.
func welcomeBanner(address string) string {
	return fmt.Sprintf(`%s - TeamSpeak ServerQuery client
Connected to %s

Type '.help' for available commands.
Type '.quit' to exit.
`, fullTitle(), address)
}

// =============================================================================
// Command-Line Arguments
// =============================================================================

// GO CONCEPT: Struct Tags
// -----------------------
// The backtick strings after each field are "struct tags": metadata that
// libraries read through reflection. kong turns every exported field into
// a flag, using tags for the help text, default value, short name and the
// environment variable to fall back to. Fields tagged cmd:"" become
// subcommands, and their Run methods are called by kong.Context.Run.
//
// Compare with Python: argparse builds the same thing imperatively with
// parser.add_argument("--host", default="localhost", help="...").
// Libraries like typer derive flags from type hints, which is closer to
// what kong does with struct fields.

// CLI is the root command.
type CLI struct {
	Host     string        `help:"ServerQuery host." default:"localhost" env:"TSQUERY_HOST"`
	Port     int           `help:"ServerQuery port." default:"10011" env:"TSQUERY_PORT"`
	User     string        `short:"u" help:"Login name for the login command." env:"TSQUERY_USER"`
	Password string        `help:"Login password." env:"TSQUERY_PASSWORD"`
	ServerID int           `name:"sid" help:"Virtual server to select after connecting." env:"TSQUERY_SID"`
	Timeout  time.Duration `help:"Time to wait for each command reply." default:"10s" env:"TSQUERY_TIMEOUT"`
	JSON     bool          `help:"Print replies as JSON." env:"TSQUERY_JSON"`
	Quiet    bool          `short:"q" help:"Suppress informational output."`
	Verbose  bool          `short:"v" help:"Enable verbose output."`
	Debug    bool          `short:"d" help:"Enable debug output."`
	Trace    bool          `help:"Export traces and metrics to stderr." env:"TSQUERY_TRACE"`

	Config kong.ConfigFlag `help:"Load flag defaults from a JSON file." placeholder:"FILE"`

	Repl    ReplCmd    `cmd:"" default:"1" help:"Start an interactive session."`
	Exec    ExecCmd    `cmd:"" help:"Run commands and exit."`
	Watch   WatchCmd   `cmd:"" help:"Register for notifications and print them."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// address returns host:port for the configured endpoint.
func (c *CLI) address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// sessionConfig derives the session settings from the parsed flags.
func (c *CLI) sessionConfig(logger *slog.Logger, std *streams) sessionConfig {
	return sessionConfig{
		Address:  c.address(),
		Timeout:  c.Timeout,
		User:     c.User,
		Password: c.Password,
		ServerID: c.ServerID,
		JSON:     c.JSON,
		Trace:    c.Trace,
		Logger:   logger,
		Out:      std.out,
		ErrOut:   std.errOut,
	}
}

// streams are the process's standard streams, bound into subcommands so
// tests can substitute pipes and buffers.
type streams struct {
	in     *os.File
	out    io.Writer
	errOut io.Writer
}

// configPaths returns the configuration files searched for flag defaults,
// most specific first.
func configPaths() []string {
	paths := []string{filepath.Join(xdg.ConfigHome, appName, "config.json")}
	for _, dir := range xdg.ConfigDirs {
		paths = append(paths, filepath.Join(dir, appName, "config.json"))
	}
	return paths
}

// newParser builds the kong parser for cli. Missing configuration files are
// skipped.
func newParser(cli *CLI, paths []string, opts ...kong.Option) (*kong.Kong, error) {
	options := []kong.Option{
		kong.Name(appName),
		kong.Description("A TeamSpeak ServerQuery client.\n\nConnects over TCP and runs commands interactively or from the command line."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, paths...),
	}
	return kong.New(cli, append(options, opts...)...)
}

// =============================================================================
// Logging
// =============================================================================

// newLogger returns a text logger on w at the level selected by the flags.
func newLogger(cli *CLI, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case cli.Debug:
		level = slog.LevelDebug
	case cli.Quiet:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: cli.Verbose,
	}))
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// Main
// =============================================================================

// GO CONCEPT: Context Cancellation on Signals
// -------------------------------------------
// signal.NotifyContext returns a context that is cancelled when one of the
// listed signals arrives. Passing it down to every blocking call (dialing,
// waiting for a reply, watching notifications) lets Ctrl-C unwind the whole
// program through normal returns, so deferred cleanup still runs.
//
// Compare with Python: asyncio programs get the same effect by cancelling
// the main task from loop.add_signal_handler(signal.SIGINT, task.cancel).

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	parser, err := newParser(&cli, configPaths(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	std := &streams{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
	logger := newLogger(&cli, os.Stderr)
	slog.SetDefault(logger)

	if err := kctx.Run(&cli, std, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
