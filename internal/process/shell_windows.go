//go:build windows

package process

import (
	"context"
	"os/exec"
	"strings"
)

// getShellCommand returns a shell command for Windows systems
func getShellCommand(ctx context.Context, script string) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "cmd", "/c", script)
}

// getTrueCommand returns a command that always succeeds on Windows systems
func getTrueCommand(ctx context.Context) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "cmd", "/c", "rem")
}

// quoteArg wraps a in double quotes for cmd.exe when it holds spaces or quotes.
func quoteArg(a string) string {
	if a != "" && !strings.ContainsAny(a, " \t\"&|<>^") {
		return a
	}
	return `"` + strings.ReplaceAll(a, `"`, `""`) + `"`
}
