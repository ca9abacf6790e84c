package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/loykin/gifsetup/internal/logger"
	"github.com/loykin/gifsetup/internal/process"
)

// ErrInstallFailed is matched by errors.Is on every *InstallError.
var ErrInstallFailed = errors.New("dependency installation failed")

// InstallError carries the package manager's exit status.
type InstallError struct {
	ExitCode int
	Cause    error
}

func (e *InstallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %v", ErrInstallFailed, e.Cause)
	}
	return fmt.Sprintf("%v: exit status %d", ErrInstallFailed, e.ExitCode)
}

func (e *InstallError) Is(target error) bool { return target == ErrInstallFailed }

func (e *InstallError) Unwrap() error { return e.Cause }

// Installer runs "<pip> install -r <requirements>" once.
// There is no retry and no timeout; only ctx cancellation stops it.
type Installer struct {
	Runner       process.Runner
	Command      process.Command // package manager, e.g. {Line: "pip"}
	Requirements string
	Log          logger.Config // optional tee of pip output into rotating files
	Stdout       io.Writer     // terminal streams; nil discards
	Stderr       io.Writer
	Logger       *slog.Logger
}

// Args returns the argument list passed to the package manager.
func (in Installer) Args() []string {
	return []string{"install", "-r", in.Requirements}
}

// Install blocks until the package manager exits. A non-zero status yields
// an *InstallError together with the Result.
func (in Installer) Install(ctx context.Context) (process.Result, error) {
	if in.Requirements == "" {
		return process.Result{}, errors.New("requirements file is required")
	}
	l := in.Logger
	if l == nil {
		l = slog.Default()
	}
	c := in.Command
	if _, err := os.Stat(in.requirementsPath()); err != nil {
		l.Warn("requirements file not accessible", "path", in.Requirements, "dir", c.Dir, "error", err)
	}

	if c.Name == "" {
		c.Name = "pip"
	}
	c.Args = append(append([]string(nil), c.Args...), in.Args()...)

	stdout, stderr, closeLogs, err := in.streams(c.Name)
	if err != nil {
		return process.Result{}, err
	}
	defer closeLogs()

	runner := in.Runner
	if runner == nil {
		runner = process.ExecRunner{}
	}
	l.Debug("running package manager", "cmd", c.String())
	res, err := runner.Run(ctx, c, stdout, stderr)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		return res, &InstallError{ExitCode: res.ExitCode, Cause: err}
	}
	l.Info("package manager finished", "exit_code", res.ExitCode, "duration", res.Duration)
	if !res.Success() {
		return res, &InstallError{ExitCode: res.ExitCode}
	}
	return res, nil
}

// requirementsPath resolves Requirements the way the package manager will,
// that is relative to Command.Dir when one is set.
func (in Installer) requirementsPath() string {
	if in.Command.Dir == "" || filepath.IsAbs(in.Requirements) {
		return in.Requirements
	}
	return filepath.Join(in.Command.Dir, in.Requirements)
}

// streams tees the terminal writers into log files when file logging is set.
func (in Installer) streams(name string) (io.Writer, io.Writer, func(), error) {
	if in.Log.File.Dir != "" {
		if err := os.MkdirAll(in.Log.File.Dir, 0o750); err != nil {
			return nil, nil, nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	outW, errW, err := in.Log.ProcessWriters(name)
	if err != nil {
		return nil, nil, nil, err
	}
	closeAll := func() {
		for _, c := range []io.Closer{outW, errW} {
			if c != nil {
				_ = c.Close()
			}
		}
	}
	return tee(in.Stdout, outW), tee(in.Stderr, errW), closeAll, nil
}

func tee(term io.Writer, file io.WriteCloser) io.Writer {
	switch {
	case file == nil && term == nil:
		return io.Discard
	case file == nil:
		return term
	case term == nil:
		return file
	}
	return io.MultiWriter(term, file)
}
