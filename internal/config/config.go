package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultFile is picked up from the working directory when no --config is given.
const DefaultFile = "gifsetup.toml"

// EnvPrefix prefixes environment overrides, e.g. GIFSETUP_PYTHON or GIFSETUP_LOG_LEVEL.
const EnvPrefix = "GIFSETUP"

// ErrInvalid wraps every configuration problem.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the top-level TOML structure.
type Config struct {
	Python       string   `toml:"python" mapstructure:"python"`
	Pip          string   `toml:"pip" mapstructure:"pip"`
	Requirements string   `toml:"requirements" mapstructure:"requirements"`
	WorkDir      string   `toml:"workdir" mapstructure:"workdir"`
	Lang         string   `toml:"lang" mapstructure:"lang"`
	Pause        bool     `toml:"pause" mapstructure:"pause"`
	Env          []string `toml:"env" mapstructure:"env"`
	EnvFiles     []string `toml:"env_files" mapstructure:"env_files"`
	UseOSEnv     bool     `toml:"use_os_env" mapstructure:"use_os_env"`

	Preflight PreflightConfig `toml:"preflight" mapstructure:"preflight"`
	Report    ReportConfig    `toml:"report" mapstructure:"report"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`

	// File is the config file actually read, empty when none was.
	File string `toml:"-" mapstructure:"-"`
}

type PreflightConfig struct {
	MinVersion        string `toml:"min_version" mapstructure:"min_version"`
	DownloadURL       string `toml:"download_url" mapstructure:"download_url"`
	EnforceMinVersion bool   `toml:"enforce_min_version" mapstructure:"enforce_min_version"`
}

type ReportConfig struct {
	// PackageManager is the command shown in the manual install hint. It is
	// independent of Pip, which may be an absolute path or "python -m pip".
	PackageManager   string   `toml:"package_manager" mapstructure:"package_manager"`
	FallbackPackages []string `toml:"fallback_packages" mapstructure:"fallback_packages"`
	GUIScript        string   `toml:"gui_script" mapstructure:"gui_script"`
	ToolScript       string   `toml:"tool_script" mapstructure:"tool_script"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	Timestamps bool   `toml:"timestamps" mapstructure:"timestamps"`
	Dir        string `toml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// HistoryConfig lists the sinks that receive one event per setup step.
type HistoryConfig struct {
	Enabled bool     `toml:"enabled" mapstructure:"enabled"`
	DSN     string   `toml:"dsn" mapstructure:"dsn"`
	Extra   []string `toml:"extra_dsns" mapstructure:"extra_dsns"`
}

// DSNs returns every configured sink DSN, or nil when history is disabled.
func (h HistoryConfig) DSNs() []string {
	if !h.Enabled {
		return nil
	}
	var out []string
	for _, d := range append([]string{h.DSN}, h.Extra...) {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

type MetricsConfig struct {
	Textfile string `toml:"textfile" mapstructure:"textfile"`
}

var defaults = map[string]any{
	"python":       "python",
	"pip":          "pip",
	"requirements": "requirements.txt",
	"workdir":      "",
	"lang":         "zh",
	"pause":        true,
	"env":          []string{},
	"env_files":    []string{},
	"use_os_env":   true,

	"preflight.min_version":         "3.7",
	"preflight.download_url":        "https://www.python.org/downloads/",
	"preflight.enforce_min_version": false,

	"report.package_manager":   "pip",
	"report.fallback_packages": []string{"Pillow", "psutil"},
	"report.gui_script":        "start_gui.bat",
	"report.tool_script":       "gif_maker.py",

	"log.level":        "info",
	"log.format":       "text",
	"log.color":        true,
	"log.timestamps":   false,
	"log.dir":          "",
	"log.max_size_mb":  10,
	"log.max_backups":  3,
	"log.max_age_days": 7,
	"log.compress":     false,

	"history.enabled":    false,
	"history.dsn":        "sqlite://gifsetup.db",
	"history.extra_dsns": []string{},

	"metrics.textfile": "",
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"python":       "python",
	"pip":          "pip",
	"requirements": "requirements",
	"workdir":      "workdir",
	"lang":         "lang",
	"log-level":    "log.level",
	"log-dir":      "log.dir",
	"history-dsn":  "history.dsn",
}

// Load reads the TOML file at path (or DefaultFile when path is empty and the
// file exists), applies GIFSETUP_* environment variables and then changed
// flags from fs. Precedence: flags > env > file > defaults.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %w", ErrInvalid, file, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("%w: bind --%s: %w", ErrInvalid, name, err)
				}
			}
		}
		if f := fs.Lookup("no-pause"); f != nil && f.Changed && f.Value.String() == "true" {
			v.Set("pause", false)
		}
		if f := fs.Lookup("history"); f != nil && f.Changed {
			v.Set("history.enabled", f.Value.String() == "true")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	c.File = file
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the fields the setup cannot run without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Python) == "" {
		errs = append(errs, errors.New("python must not be empty"))
	}
	if strings.TrimSpace(c.Pip) == "" {
		errs = append(errs, errors.New("pip must not be empty"))
	}
	if strings.TrimSpace(c.Requirements) == "" {
		errs = append(errs, errors.New("requirements must not be empty"))
	}
	if strings.TrimSpace(c.Report.PackageManager) == "" {
		errs = append(errs, errors.New("report.package_manager must not be empty"))
	}
	if len(c.Report.FallbackPackages) == 0 {
		errs = append(errs, errors.New("report.fallback_packages must list at least one package"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.History.Enabled && len(c.History.DSNs()) == 0 {
		errs = append(errs, errors.New("history is enabled but no dsn is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
