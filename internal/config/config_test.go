package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "gifsetup.toml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	return p
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("python", "python", "")
	fs.String("pip", "pip", "")
	fs.String("requirements", "requirements.txt", "")
	fs.String("lang", "zh", "")
	fs.String("log-level", "info", "")
	fs.Bool("no-pause", false, "")
	fs.Bool("history", false, "")
	fs.String("history-dsn", "", "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	c, err := Load("", nil)
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if c.File != "" {
		t.Fatalf("no file should be read, got %q", c.File)
	}
	if c.Python != "python" || c.Pip != "pip" || c.Requirements != "requirements.txt" {
		t.Fatalf("unexpected commands: %+v", c)
	}
	if c.Lang != "zh" || !c.Pause || !c.UseOSEnv {
		t.Fatalf("unexpected flags: %+v", c)
	}
	if c.Preflight.MinVersion != "3.7" || c.Preflight.DownloadURL != "https://www.python.org/downloads/" {
		t.Fatalf("unexpected preflight: %+v", c.Preflight)
	}
	if c.Report.PackageManager != "pip" {
		t.Fatalf("fallback hint must default to plain pip, got %q", c.Report.PackageManager)
	}
	if !reflect.DeepEqual(c.Report.FallbackPackages, []string{"Pillow", "psutil"}) {
		t.Fatalf("unexpected fallback packages: %v", c.Report.FallbackPackages)
	}
	if c.History.DSNs() != nil {
		t.Fatalf("history must be off by default")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_PicksUpDefaultFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte(`lang = "en"`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	c, err := Load("", nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Lang != "en" || c.File != DefaultFile {
		t.Fatalf("default file not read: lang=%q file=%q", c.Lang, c.File)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeTOML(t, `
python = "py -3"
pause = false
env = ["PIP_DISABLE_PIP_VERSION_CHECK=1"]

[preflight]
min_version = "3.8"
enforce_min_version = true

[report]
fallback_packages = ["Pillow"]

[log]
level = "debug"
dir = "logs"

[history]
enabled = true
dsn = "sqlite://:memory:"
extra_dsns = ["opensearch://localhost:9200/setup"]
`)
	c, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Python != "py -3" || c.Pause || c.File != path {
		t.Fatalf("top-level not applied: %+v", c)
	}
	if c.Pip != "pip" {
		t.Fatalf("default should survive: %q", c.Pip)
	}
	if !c.Preflight.EnforceMinVersion || c.Preflight.MinVersion != "3.8" {
		t.Fatalf("preflight not applied: %+v", c.Preflight)
	}
	if c.Log.Level != "debug" || c.Log.Dir != "logs" || c.Log.MaxSizeMB != 10 {
		t.Fatalf("log not applied: %+v", c.Log)
	}
	if got := c.History.DSNs(); len(got) != 2 {
		t.Fatalf("expected two sinks, got %v", got)
	}
	if len(c.Env) != 1 || c.Env[0] != "PIP_DISABLE_PIP_VERSION_CHECK=1" {
		t.Fatalf("env not applied: %v", c.Env)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTOML(t, `
python = "python-from-file"
pip = "pip-from-file"
requirements = "req-file.txt"
`)
	t.Setenv("GIFSETUP_PIP", "pip-from-env")
	t.Setenv("GIFSETUP_REQUIREMENTS", "req-env.txt")
	t.Setenv("GIFSETUP_LOG_LEVEL", "warn")

	fs := testFlags()
	if err := fs.Parse([]string{"--requirements", "req-flag.txt", "--no-pause", "--lang", "en"}); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path, fs)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Python != "python-from-file" {
		t.Fatalf("file should beat default: %q", c.Python)
	}
	if c.Pip != "pip-from-env" {
		t.Fatalf("env should beat file: %q", c.Pip)
	}
	if c.Requirements != "req-flag.txt" {
		t.Fatalf("flag should beat env: %q", c.Requirements)
	}
	if c.Log.Level != "warn" {
		t.Fatalf("nested env key not applied: %q", c.Log.Level)
	}
	if c.Pause || c.Lang != "en" {
		t.Fatalf("flags not applied: pause=%v lang=%q", c.Pause, c.Lang)
	}
}

func TestLoad_UnchangedFlagsDoNotOverride(t *testing.T) {
	path := writeTOML(t, `python = "python3"`)
	c, err := Load(path, testFlags())
	if err != nil {
		t.Fatal(err)
	}
	if c.Python != "python3" || !c.Pause {
		t.Fatalf("flag defaults must not override file: %+v", c)
	}
}

func TestLoad_HistoryFlag(t *testing.T) {
	fs := testFlags()
	if err := fs.Parse([]string{"--history", "--history-dsn", "postgres://u:p@db/setup"}); err != nil {
		t.Fatal(err)
	}
	c, err := Load(writeTOML(t, ""), fs)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.History.DSNs(); len(got) != 1 || got[0] != "postgres://u:p@db/setup" {
		t.Fatalf("unexpected history dsns: %v", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml"), nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("missing file: expected ErrInvalid, got %v", err)
	}
	if _, err := Load(writeTOML(t, "python = [unterminated"), nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("bad toml: expected ErrInvalid, got %v", err)
	}
	if _, err := Load(writeTOML(t, "python = \"\"\n[log]\nformat = \"xml\"\n"), nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("validation: expected ErrInvalid, got %v", err)
	}
	if _, err := Load(writeTOML(t, "[history]\nenabled = true\ndsn = \"\"\n"), nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("history without dsn: expected ErrInvalid, got %v", err)
	}
}
