package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/loykin/gifsetup/internal/config"
	"github.com/loykin/gifsetup/internal/detector"
	"github.com/loykin/gifsetup/internal/env"
	"github.com/loykin/gifsetup/internal/history"
	"github.com/loykin/gifsetup/internal/history/factory"
	"github.com/loykin/gifsetup/internal/installer"
	"github.com/loykin/gifsetup/internal/logger"
	"github.com/loykin/gifsetup/internal/metrics"
	"github.com/loykin/gifsetup/internal/process"
	"github.com/loykin/gifsetup/internal/report"
	"github.com/loykin/gifsetup/internal/setup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

type command struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Setup loads the configuration and performs one installation run.
func (c command) Setup(ctx context.Context, f SetupFlags, fs *pflag.FlagSet) error {
	cfg, err := config.Load(f.ConfigPath, fs)
	if err != nil {
		return configError(err)
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return configError(err)
	}
	lc := logConfig(cfg.Log)
	l, closer := lc.NewSlogger(c.stderr)
	defer func() { _ = closer.Close() }()

	minVer, err := detector.ParseVersion(cfg.Preflight.MinVersion)
	if err != nil {
		return configError(fmt.Errorf("preflight.min_version: %w", err))
	}
	environ, err := buildEnv(cfg)
	if err != nil {
		return configError(err)
	}
	rep, err := report.New(c.stdout, cfg.Lang, report.Params{
		MinVersion:       cfg.Preflight.MinVersion,
		DownloadURL:      cfg.Preflight.DownloadURL,
		PackageManager:   cfg.Report.PackageManager,
		FallbackPackages: cfg.Report.FallbackPackages,
		Interpreter:      cfg.Python,
		GUIScript:        cfg.Report.GUIScript,
		ToolScript:       cfg.Report.ToolScript,
	})
	if err != nil {
		return configError(err)
	}

	// pip runs inside the workdir, so hand it a path that does not depend on it.
	requirements := cfg.Requirements
	if cfg.WorkDir != "" && !filepath.IsAbs(requirements) {
		if requirements, err = filepath.Abs(filepath.Join(cfg.WorkDir, requirements)); err != nil {
			return configError(fmt.Errorf("requirements: %w", err))
		}
	}

	s := &setup.Setup{
		Detector: detector.PythonDetector{
			Command:        process.Command{Name: "python", Line: cfg.Python, Dir: cfg.WorkDir, Env: environ},
			Minimum:        minVer,
			EnforceMinimum: cfg.Preflight.EnforceMinVersion,
		},
		Installer: installer.Installer{
			Command:      process.Command{Name: "pip", Line: cfg.Pip, Dir: cfg.WorkDir, Env: environ},
			Requirements: requirements,
			Log:          lc,
			Stdout:       c.stdout,
			Stderr:       c.stderr,
			Logger:       l,
		},
		Reporter:        rep,
		MinVersion:      minVer,
		Pause:           cfg.Pause,
		Stdin:           c.stdin,
		Requirements:    requirements,
		MetricsTextfile: cfg.Metrics.Textfile,
		Logger:          l,
	}

	if dsns := cfg.History.DSNs(); len(dsns) > 0 {
		sinks, err := factory.NewSinks(dsns)
		if err != nil {
			l.Warn("history disabled", "error", err)
		} else {
			defer func() { _ = sinks.Close() }()
			s.Sink = sinks
		}
	}
	if cfg.Metrics.Textfile != "" {
		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			l.Warn("metrics disabled", "error", err)
		} else {
			s.Gatherer = reg
		}
	}

	l.Debug("starting setup", "config", cfg.File, "lang", rep.Lang(), "python", cfg.Python, "pip", cfg.Pip, "requirements", requirements)
	res, err := s.Run(ctx)
	if err != nil {
		return err
	}
	l.Debug("setup finished", "outcome", string(res.Outcome), "duration", res.Duration)
	if res.ExitCode != setup.ExitOK {
		return &exitError{code: res.ExitCode}
	}
	return nil
}

// History prints the most recent events from the first sink that can list them.
func (c command) History(ctx context.Context, path string, f HistoryFlags, fs *pflag.FlagSet) error {
	cfg, err := config.Load(path, fs)
	if err != nil {
		return configError(err)
	}
	cfg.History.Enabled = true
	dsns := cfg.History.DSNs()
	if len(dsns) == 0 {
		return configError(errors.New("no history dsn configured"))
	}
	sinks, err := factory.NewSinks(dsns)
	if err != nil {
		return configError(err)
	}
	defer func() { _ = sinks.Close() }()

	var lister history.Lister
	for _, s := range sinks {
		if ls, ok := s.(history.Lister); ok {
			lister = ls
			break
		}
	}
	if lister == nil {
		return configError(errors.New("none of the configured history sinks can be read back"))
	}
	events, err := lister.Recent(ctx, f.Limit)
	if err != nil {
		return err
	}
	if f.JSON {
		enc := json.NewEncoder(c.stdout)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tHOST\tEVENT\tVERSION\tEXIT\tERROR")
	for _, e := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.OccurredAt.Local().Format(time.DateTime), e.Record.Host, e.Type,
			e.Record.Version, e.Record.ExitCode, e.Record.Error)
	}
	return tw.Flush()
}

func logConfig(c config.LogConfig) logger.Config {
	return logger.Config{
		Slog: logger.SlogConfig{
			Level:      logger.Level(c.Level),
			Format:     logger.Format(c.Format),
			Color:      c.Color,
			TimeStamps: c.Timestamps,
		},
		File: logger.FileConfig{
			Dir:        c.Dir,
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAgeDays: c.MaxAgeDays,
			Compress:   c.Compress,
		},
	}
}

// buildEnv composes the environment handed to python and pip.
// The result is nil when the OS environment is used unchanged.
func buildEnv(cfg config.Config) ([]string, error) {
	if cfg.UseOSEnv && len(cfg.Env) == 0 && len(cfg.EnvFiles) == 0 {
		return nil, nil
	}
	e := env.New()
	if cfg.UseOSEnv {
		e = e.FromOS()
	}
	for _, p := range cfg.EnvFiles {
		if err := e.LoadFile(p); err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
	}
	return e.SetPairs(cfg.Env).Environ(), nil
}
