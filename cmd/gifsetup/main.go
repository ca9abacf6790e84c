package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := buildRoot(command{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitStatus(err, os.Stderr))
}

// Exit statuses beyond the ones produced by a setup run.
const exitConfig = 2

// exitError carries a process exit status through cobra.
// A nil err means the user has already been told what happened.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error { return &exitError{code: exitConfig, err: err} }

// exitStatus prints err (if any) to w and maps it to a process exit status.
func exitStatus(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			_, _ = fmt.Fprintln(w, "gifsetup:", ee.err)
		}
		return ee.code
	}
	_, _ = fmt.Fprintln(w, "gifsetup:", err)
	return 1
}

// buildRoot creates the root command; running it without a subcommand performs the setup.
func buildRoot(c command) *cobra.Command {
	flags := &SetupFlags{}
	root := &cobra.Command{
		Use:   "gifsetup",
		Short: "Install the GIF maker's Python dependencies",
		Long: `gifsetup checks that Python is available, installs the packages listed in
requirements.txt with pip and prints how to start the GIF maker.

Examples:
  gifsetup
  gifsetup --lang en --no-pause
  gifsetup --python py --pip "py -m pip" --requirements deps.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Setup(cmd.Context(), *flags, cmd.Flags())
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return configError(err) })
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional, default ./gifsetup.toml when present)")
	root.PersistentFlags().StringVar(&flags.HistoryDSN, "history-dsn", "", "history sink DSN (sqlite://, postgres://, clickhouse://, opensearch://)")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "info", "diagnostic log level (debug, info, warn, error)")

	f := root.Flags()
	f.StringVar(&flags.Python, "python", "python", "python interpreter command")
	f.StringVar(&flags.Pip, "pip", "pip", "package manager command")
	f.StringVar(&flags.Requirements, "requirements", "requirements.txt", "requirements file passed to pip install -r")
	f.StringVar(&flags.WorkDir, "workdir", "", "directory to run in (default current directory)")
	f.StringVar(&flags.Lang, "lang", "zh", "message language (zh, en)")
	f.BoolVar(&flags.NoPause, "no-pause", false, "do not wait for Enter before exiting")
	f.StringVar(&flags.LogDir, "log-dir", "", "directory for setup.log and pip output logs")
	f.BoolVar(&flags.History, "history", false, "record setup events to the history sink")

	root.AddCommand(
		createVersionCommand(c),
		createHistoryCommand(c, flags),
	)
	return root
}

func createVersionCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gifsetup version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(c.stdout, "gifsetup %s\n", Version)
			return err
		},
	}
}

func createHistoryCommand(c command, global *SetupFlags) *cobra.Command {
	flags := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent setup runs recorded in the history sink",
		Long: `Print the most recent preflight and install events.

Examples:
  gifsetup history
  gifsetup history --history-dsn sqlite://./gifsetup.db --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(cmd.Context(), global.ConfigPath, *flags, cmd.Flags())
		},
	}
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "number of events to show")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print events as JSON lines")
	return cmd
}
