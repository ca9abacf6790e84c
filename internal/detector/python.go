package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loykin/gifsetup/internal/process"
)

var (
	// ErrInterpreterMissing means the interpreter could not be run or its version query failed.
	ErrInterpreterMissing = errors.New("python interpreter not found")
	// ErrInterpreterTooOld wraps ErrInterpreterMissing so callers handle both alike.
	ErrInterpreterTooOld = fmt.Errorf("%w: version below required minimum", ErrInterpreterMissing)
)

// PythonDetector runs "<command> --version" and reads the banner.
type PythonDetector struct {
	Runner  process.Runner
	Command process.Command
	// Minimum is only checked when EnforceMinimum is set.
	Minimum        Version
	EnforceMinimum bool
}

func (d PythonDetector) Detect(ctx context.Context) (Interpreter, error) {
	check := d.Command
	check.Args = append(append([]string(nil), check.Args...), "--version")
	if check.Name == "" {
		check.Name = "python"
	}
	runner := d.Runner
	if runner == nil {
		runner = process.ExecRunner{}
	}

	// Command is filled on every path so failed checks still name the command that was run.
	it := Interpreter{Command: d.Command.String()}
	var out, errOut bytes.Buffer
	res, err := runner.Run(ctx, check, &out, &errOut)
	if err != nil {
		if ctx.Err() != nil {
			return it, err
		}
		return it, fmt.Errorf("%w: %w", ErrInterpreterMissing, err)
	}
	if !res.Success() {
		return it, fmt.Errorf("%w: %s exited with status %d", ErrInterpreterMissing, check, res.ExitCode)
	}

	// Python 2 prints the banner on stderr.
	banner := strings.TrimSpace(out.String())
	if banner == "" {
		banner = strings.TrimSpace(errOut.String())
	}
	it.Banner = banner
	if v, perr := ParseVersion(banner); perr == nil {
		it.Version = v
	}
	if d.EnforceMinimum && !it.Satisfies(d.Minimum) {
		return it, fmt.Errorf("%w: found %q, need %s", ErrInterpreterTooOld, banner, d.Minimum)
	}
	return it, nil
}

func (d PythonDetector) Describe() string { return "version:" + d.Command.String() + " --version" }

// Satisfies reports whether the interpreter meets min. Unparseable versions never do.
func (it Interpreter) Satisfies(min Version) bool {
	if min.IsZero() {
		return true
	}
	return !it.Version.IsZero() && !it.Version.Less(min)
}
