package setup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/loykin/gifsetup/internal/detector"
	"github.com/loykin/gifsetup/internal/history"
	"github.com/loykin/gifsetup/internal/installer"
	"github.com/loykin/gifsetup/internal/metrics"
	"github.com/loykin/gifsetup/internal/process"
	"github.com/loykin/gifsetup/internal/report"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome is the branch a run ended on.
type Outcome string

const (
	OutcomeInterpreterMissing Outcome = "interpreter_missing"
	OutcomeInstallFailed      Outcome = "install_failed"
	OutcomeInstalled          Outcome = "installed"
)

// Process exit statuses.
const (
	ExitOK                 = 0
	ExitInterpreterMissing = 1
)

// Installer is satisfied by installer.Installer.
type Installer interface {
	Install(ctx context.Context) (process.Result, error)
}

// Result summarises one run.
type Result struct {
	Outcome         Outcome
	ExitCode        int
	Interpreter     detector.Interpreter
	InstallExitCode int
	Duration        time.Duration
}

// Setup wires the preflight check, the installer and the reporter together.
type Setup struct {
	Detector  detector.Detector
	Installer Installer
	Reporter  *report.Reporter

	// Pause waits for one line on Stdin before Run returns.
	Pause bool
	Stdin io.Reader

	// MinVersion is the recommended interpreter version. Older ones are
	// accepted with a warning; refusing them is the detector's job.
	MinVersion detector.Version

	// Optional.
	Sink            history.Sink
	Gatherer        prometheus.Gatherer
	MetricsTextfile string
	Requirements    string
	Host            string
	Logger          *slog.Logger
	Now             func() time.Time
}

// Run checks for the interpreter, installs the requirements and reports.
// The installer is never invoked when the check fails. An install failure
// is reported to the user but does not change the exit code.
func (s *Setup) Run(ctx context.Context) (Result, error) {
	if s.Detector == nil || s.Installer == nil || s.Reporter == nil {
		return Result{}, errors.New("setup: detector, installer and reporter are required")
	}
	l := s.logger()
	start := s.now()
	defer func() {
		metrics.SetLastRun(float64(s.now().Unix()))
		s.writeMetrics(l)
	}()

	if err := s.Reporter.Checking(); err != nil {
		return Result{}, err
	}
	it, err := s.Detector.Detect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, err
		}
		l.Warn("interpreter check failed", "detector", s.Detector.Describe(), "error", err)
		metrics.IncPreflight(metrics.ResultMissing)
		s.record(ctx, history.EventPreflight, it, 0, err)
		if err := s.Reporter.InterpreterMissing(); err != nil {
			return Result{}, err
		}
		res := Result{Outcome: OutcomeInterpreterMissing, ExitCode: ExitInterpreterMissing, Interpreter: it}
		return s.finish(ctx, res, start)
	}
	l.Info("interpreter found", "banner", it.Banner, "version", it.Version.String())
	if !it.Satisfies(s.MinVersion) {
		l.Warn("interpreter is older than the recommended version", "banner", it.Banner, "recommended", s.MinVersion.String())
	}
	metrics.IncPreflight(metrics.ResultFound)
	metrics.SetInterpreter(it.Version.String())
	s.record(ctx, history.EventPreflight, it, 0, nil)

	if err := s.Reporter.Version(it.Banner); err != nil {
		return Result{}, err
	}
	if err := s.Reporter.Installing(); err != nil {
		return Result{}, err
	}
	ir, err := s.Installer.Install(ctx)
	metrics.ObserveInstallDuration(ir.Duration.Seconds())
	res := Result{ExitCode: ExitOK, Interpreter: it, InstallExitCode: ir.ExitCode}
	switch {
	case err == nil:
		metrics.IncInstall(metrics.ResultSucceeded)
		s.record(ctx, history.EventInstall, it, ir.ExitCode, nil)
		res.Outcome = OutcomeInstalled
		err = s.Reporter.Installed()
	case errors.Is(err, installer.ErrInstallFailed):
		l.Warn("dependency installation failed", "exit_code", ir.ExitCode, "error", err)
		metrics.IncInstall(metrics.ResultFailed)
		s.record(ctx, history.EventInstall, it, ir.ExitCode, err)
		res.Outcome = OutcomeInstallFailed
		err = s.Reporter.InstallFailed()
	default:
		return Result{}, err
	}
	if err != nil {
		return Result{}, err
	}
	return s.finish(ctx, res, start)
}

func (s *Setup) finish(ctx context.Context, res Result, start time.Time) (Result, error) {
	res.Duration = s.now().Sub(start)
	if !s.Pause {
		return res, nil
	}
	// An interrupt while waiting ends the wait but keeps the run's result.
	done := make(chan error, 1)
	go func() { done <- s.Reporter.Pause(s.Stdin) }()
	select {
	case err := <-done:
		return res, err
	case <-ctx.Done():
		return res, nil
	}
}

// record sends a history event. Sink failures are logged only.
func (s *Setup) record(ctx context.Context, t history.EventType, it detector.Interpreter, code int, cause error) {
	if s.Sink == nil {
		return
	}
	rec := history.Record{
		Host:        s.host(),
		Interpreter: it.Command,
		Version:     it.Banner,
		ExitCode:    code,
	}
	if t == history.EventInstall {
		rec.Requirements = s.Requirements
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	e := history.Event{Type: t, OccurredAt: s.now().UTC(), Record: rec}
	if err := s.Sink.Send(ctx, e); err != nil {
		s.logger().Warn("history send failed", "event", string(t), "error", err)
	}
}

func (s *Setup) writeMetrics(l *slog.Logger) {
	if s.MetricsTextfile == "" || s.Gatherer == nil {
		return
	}
	if err := metrics.WriteTextfile(s.MetricsTextfile, s.Gatherer); err != nil {
		l.Warn("metrics textfile write failed", "path", s.MetricsTextfile, "error", err)
	}
}

func (s *Setup) host() string {
	if s.Host != "" {
		return s.Host
	}
	h, _ := os.Hostname()
	return h
}

func (s *Setup) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Setup) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
