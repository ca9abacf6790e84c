package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires POSIX shell scripts")
	}
}

// writeScript writes an executable /bin/sh script into dir.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func run(t *testing.T, stdin string, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := buildRoot(command{stdin: strings.NewReader(stdin), stdout: &out, stderr: &errOut})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), exitStatus(err, &errOut)
}

func TestVersionCommand(t *testing.T) {
	out, _, code := run(t, "", "version")
	if code != 0 || !strings.Contains(out, "gifsetup "+Version) {
		t.Fatalf("unexpected version output: code=%d out=%q", code, out)
	}
}

func TestHelpMentionsFlags(t *testing.T) {
	out, _, code := run(t, "", "--help")
	if code != 0 {
		t.Fatalf("help should succeed, got %d", code)
	}
	for _, f := range []string{"--python", "--pip", "--requirements", "--lang", "--no-pause", "--log-level", "--config"} {
		if !strings.Contains(out, f) {
			t.Errorf("help is missing %s:\n%s", f, out)
		}
	}
}

func TestSetup_InterpreterMissing(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	marker := filepath.Join(dir, "pip-ran")
	pip := writeScript(t, dir, "pip", "touch "+marker)

	out, _, code := run(t, "\n",
		"--python", filepath.Join(dir, "no-python"),
		"--pip", pip,
		"--requirements", filepath.Join(dir, "requirements.txt"),
		"--lang", "en",
	)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d (out=%q)", code, out)
	}
	if _, err := os.Stat(marker); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pip must not run when python is missing")
	}
	if !strings.Contains(out, "Python not found") || !strings.Contains(out, "3.7") {
		t.Fatalf("missing message not printed: %q", out)
	}
	if !strings.HasSuffix(out, "Press Enter to continue . . .") {
		t.Fatalf("expected pause prompt at the end: %q", out)
	}
}

func TestSetup_Installed(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	python := writeScript(t, dir, "python", `echo "Python 3.11.4"`)
	args := filepath.Join(dir, "pip-args")
	pip := writeScript(t, dir, "pip", `echo "$@" > `+args+`; echo "Successfully installed Pillow psutil"`)
	req := filepath.Join(dir, "requirements.txt")
	if err := os.WriteFile(req, []byte("Pillow\npsutil\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, code := run(t, "",
		"--python", python, "--pip", pip, "--requirements", req,
		"--lang", "en", "--no-pause", "--log-dir", filepath.Join(dir, "logs"),
	)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (out=%q)", code, out)
	}
	for _, want := range []string{"Python 3.11.4", "Installing dependencies...", "Successfully installed", "Dependencies installed successfully!", "--help"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Press Enter") {
		t.Errorf("--no-pause should skip the prompt")
	}
	b, err := os.ReadFile(args)
	if err != nil || strings.TrimSpace(string(b)) != "install -r "+req {
		t.Fatalf("unexpected pip args %q (%v)", b, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "logs", "pip.stdout.log")); err != nil {
		t.Fatalf("pip output should be teed to the log dir: %v", err)
	}
}

func TestSetup_InstallFailedExitsZero(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	python := writeScript(t, dir, "python", `echo "Python 3.9.1"`)
	pip := writeScript(t, dir, "pip", `echo "network unreachable" >&2; exit 1`)

	out, errOut, code := run(t, "",
		"--python", python, "--pip", pip,
		"--requirements", filepath.Join(dir, "requirements.txt"),
		"--no-pause",
	)
	if code != 0 {
		t.Fatalf("install failure is informational, got exit %d", code)
	}
	if !strings.Contains(out, "pip install Pillow psutil") {
		t.Fatalf("fallback command not printed: %q", out)
	}
	if !strings.Contains(errOut, "network unreachable") {
		t.Fatalf("pip stderr should reach the terminal: %q", errOut)
	}
}

func TestSetup_HistoryRoundTrip(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	python := writeScript(t, dir, "python", `echo "Python 3.12.0"`)
	pip := writeScript(t, dir, "pip", `exit 0`)
	dsn := "sqlite://" + filepath.Join(dir, "history.db")

	_, _, code := run(t, "",
		"--python", python, "--pip", pip,
		"--requirements", filepath.Join(dir, "requirements.txt"),
		"--no-pause", "--history", "--history-dsn", dsn,
	)
	if code != 0 {
		t.Fatalf("setup failed with %d", code)
	}

	out, errOut, code := run(t, "", "history", "--history-dsn", dsn, "--limit", "5")
	if code != 0 {
		t.Fatalf("history failed with %d: %s", code, errOut)
	}
	if !strings.Contains(out, "preflight") || !strings.Contains(out, "install") || !strings.Contains(out, "Python 3.12.0") {
		t.Fatalf("unexpected history output:\n%s", out)
	}
}

func TestConfigErrorsExitTwo(t *testing.T) {
	cases := map[string][]string{
		"unknown language": {"--lang", "fr", "--no-pause"},
		"missing config":   {"--config", filepath.Join(t.TempDir(), "nope.toml")},
		"bad log level":    {"--log-level", "loud"},
		"unknown flag":     {"--frobnicate"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, errOut, code := run(t, "", args...)
			if code != exitConfig {
				t.Fatalf("expected exit %d, got %d (%s)", exitConfig, code, errOut)
			}
			if !strings.Contains(errOut, "gifsetup:") {
				t.Fatalf("error should be printed: %q", errOut)
			}
		})
	}
}

func TestHistoryWithoutDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gifsetup.toml")
	if err := os.WriteFile(path, []byte("[history]\ndsn = \"\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, code := run(t, "", "history", "--config", path)
	if code != exitConfig {
		t.Fatalf("expected exit %d, got %d", exitConfig, code)
	}
}

func TestExitStatus(t *testing.T) {
	var buf bytes.Buffer
	if got := exitStatus(nil, &buf); got != 0 || buf.Len() != 0 {
		t.Fatalf("nil error: %d %q", got, buf.String())
	}
	if got := exitStatus(&exitError{code: 1}, &buf); got != 1 || buf.Len() != 0 {
		t.Fatalf("silent exit error: %d %q", got, buf.String())
	}
	if got := exitStatus(errors.New("boom"), &buf); got != 1 || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("plain error: %d %q", got, buf.String())
	}
}

func TestSetup_FallbackHintIgnoresConfiguredPip(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	python := writeScript(t, dir, "python", `echo "Python 3.10.2"`)
	pip := writeScript(t, dir, "pip", `exit 1`)

	out, _, code := run(t, "",
		"--python", python, "--pip", pip,
		"--requirements", filepath.Join(dir, "requirements.txt"),
		"--lang", "en", "--no-pause",
	)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out, "pip install Pillow psutil") {
		t.Fatalf("fallback command not printed: %q", out)
	}
	if strings.Contains(out, pip+" install") {
		t.Fatalf("fallback command should not name the configured pip: %q", out)
	}
}

// workdirSetup prepares a project directory with a requirements file and
// a pip that fails unless it can open the file it was given.
func workdirSetup(t *testing.T) (root, python, pip, args string) {
	t.Helper()
	root = t.TempDir()
	bin := filepath.Join(root, "bin")
	proj := filepath.Join(root, "proj")
	for _, d := range []string{bin, proj} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(proj, "requirements.txt"), []byte("Pillow\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	args = filepath.Join(root, "pip-args")
	python = writeScript(t, bin, "python", `echo "Python 3.11.4"`)
	pip = writeScript(t, bin, "pip", `test -f "$3" || exit 3; echo "$3" > `+args)
	return root, python, pip, args
}

func assertPipSaw(t *testing.T, args, want string) {
	t.Helper()
	b, err := os.ReadFile(args)
	if err != nil {
		t.Fatalf("pip did not record its arguments: %v", err)
	}
	got := strings.TrimSpace(string(b))
	if !filepath.IsAbs(got) {
		t.Fatalf("pip should get an absolute path, got %q", got)
	}
	gotReal, err := filepath.EvalSymlinks(got)
	if err != nil {
		t.Fatal(err)
	}
	wantReal, err := filepath.EvalSymlinks(want)
	if err != nil {
		t.Fatal(err)
	}
	if gotReal != wantReal {
		t.Fatalf("pip got %q, want %q", got, want)
	}
}

func TestSetup_RelativeWorkdir(t *testing.T) {
	requireUnix(t)
	root, python, pip, args := workdirSetup(t)
	t.Chdir(root)

	out, _, code := run(t, "",
		"--python", python, "--pip", pip,
		"--workdir", "proj", "--requirements", "requirements.txt",
		"--lang", "en", "--no-pause", "--log-dir", filepath.Join(root, "logs"),
	)
	if code != 0 || !strings.Contains(out, "Dependencies installed successfully!") {
		t.Fatalf("install should succeed: code=%d out=%q", code, out)
	}
	assertPipSaw(t, args, filepath.Join(root, "proj", "requirements.txt"))
}

func TestSetup_AbsoluteWorkdir(t *testing.T) {
	requireUnix(t)
	root, python, pip, args := workdirSetup(t)

	out, _, code := run(t, "",
		"--python", python, "--pip", pip,
		"--workdir", filepath.Join(root, "proj"), "--requirements", "requirements.txt",
		"--lang", "en", "--no-pause", "--log-dir", filepath.Join(root, "logs"),
	)
	if code != 0 || !strings.Contains(out, "Dependencies installed successfully!") {
		t.Fatalf("install should succeed: code=%d out=%q", code, out)
	}
	assertPipSaw(t, args, filepath.Join(root, "proj", "requirements.txt"))
}
