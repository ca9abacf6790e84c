package process

import (
	"context"
	"os/exec"
	"strings"
)

// shellMeta lists characters that require a shell to interpret the command line.
const shellMeta = "|&;<>*?`$\"'(){}[]~"

// Command describes one external invocation (interpreter check or pip install).
type Command struct {
	Name string   `json:"name"` // label used for logs and log file names
	Line string   `json:"line"` // command line, e.g. "python" or "python -m pip"
	Args []string `json:"args"` // arguments appended after Line
	Dir  string   `json:"dir"`  // optional working dir
	Env  []string `json:"env"`  // full environment; nil inherits the current one
}

// String renders the full command line as the user would type it.
func (c Command) String() string {
	parts := append([]string{strings.TrimSpace(c.Line)}, c.Args...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Build constructs the *exec.Cmd. It avoids invoking a shell unless the
// command line carries shell metacharacters, in which case the arguments are
// quoted and appended to the script text.
func (c Command) Build(ctx context.Context) *exec.Cmd {
	line := strings.TrimSpace(c.Line)
	var cmd *exec.Cmd
	switch {
	case line == "":
		cmd = getTrueCommand(ctx)
	case strings.ContainsAny(line, shellMeta):
		cmd = getShellCommand(ctx, c.script(line))
	default:
		parts := strings.Fields(line)
		// #nosec G204
		cmd = exec.CommandContext(ctx, parts[0], append(parts[1:], c.Args...)...)
	}
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if c.Env != nil {
		cmd.Env = c.Env
	}
	return cmd
}

// script appends Args to line, each quoted for the platform shell.
func (c Command) script(line string) string {
	var b strings.Builder
	b.WriteString(line)
	for _, a := range c.Args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(a))
	}
	return b.String()
}
