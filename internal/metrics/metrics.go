package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Results used as label values.
const (
	ResultFound     = "found"
	ResultMissing   = "missing"
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	preflightTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gifsetup",
			Subsystem: "preflight",
			Name:      "total",
			Help:      "Interpreter checks by result.",
		}, []string{"result"},
	)
	installTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gifsetup",
			Subsystem: "install",
			Name:      "total",
			Help:      "Dependency installs by result.",
		}, []string{"result"},
	)
	installDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gifsetup",
			Subsystem: "install",
			Name:      "duration_seconds",
			Help:      "Wall time of the package manager run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	interpreterInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gifsetup",
			Subsystem: "interpreter",
			Name:      "info",
			Help:      "Detected interpreter version (always 1).",
		}, []string{"version"},
	)
	lastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gifsetup",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last setup run finished.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{preflightTotal, installTotal, installDuration, interpreterInfo, lastRunTimestamp}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile writes g in the node_exporter textfile collector format.
// The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncPreflight(result string) {
	if regOK.Load() {
		preflightTotal.WithLabelValues(result).Inc()
	}
}

func IncInstall(result string) {
	if regOK.Load() {
		installTotal.WithLabelValues(result).Inc()
	}
}

func ObserveInstallDuration(seconds float64) {
	if regOK.Load() {
		installDuration.Observe(seconds)
	}
}

func SetInterpreter(version string) {
	if regOK.Load() {
		interpreterInfo.Reset()
		interpreterInfo.WithLabelValues(version).Set(1)
	}
}

func SetLastRun(unix float64) {
	if regOK.Load() {
		lastRunTimestamp.Set(unix)
	}
}
