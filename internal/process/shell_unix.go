//go:build !windows

package process

import (
	"context"
	"os/exec"
	"strings"
)

// getShellCommand returns a shell command for Unix systems
func getShellCommand(ctx context.Context, script string) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "/bin/sh", "-c", script)
}

// getTrueCommand returns a command that always succeeds on Unix systems
func getTrueCommand(ctx context.Context) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "/bin/sh", "-c", "exit 0")
}

// quoteArg wraps a in single quotes for /bin/sh.
func quoteArg(a string) string {
	return "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
}
