package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// ErrNotStarted is returned when the command could not be started at all,
// typically because the binary is not on the search path.
var ErrNotStarted = errors.New("command could not be started")

// Result is the outcome of a command that ran to completion.
type Result struct {
	ExitCode int
	Duration time.Duration
}

// Success reports whether the command exited with status 0.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Runner executes a Command and blocks until it exits.
// A non-zero exit status is reported through Result, not as an error.
type Runner interface {
	Run(ctx context.Context, c Command, stdout, stderr io.Writer) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command, stdout, stderr io.Writer) (Result, error) {
	cmd := c.Build(ctx)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	begin := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(begin)}
	if err == nil {
		return res, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s: %w", c.Name, ctxErr)
		}
		res.ExitCode = ee.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("%s: %w: %w", c.Name, ErrNotStarted, err)
}
