package history

import (
	"context"
	"errors"
	"io"
	"time"
)

// EventType defines the kind of setup step being recorded.
type EventType string

const (
	EventPreflight EventType = "preflight"
	EventInstall   EventType = "install"
)

// Record is the outcome of one setup step.
type Record struct {
	Host         string `json:"host"`
	Interpreter  string `json:"interpreter"`            // command used, e.g. "python"
	Version      string `json:"version,omitempty"`      // banner, e.g. "Python 3.11.4"
	Requirements string `json:"requirements,omitempty"` // requirements file for install events
	ExitCode     int    `json:"exit_code"`
	Error        string `json:"error,omitempty"`
}

// Event represents a setup step exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Table is the relational table written by the SQL sinks.
const Table = "setup_history"

// Multi fans an event out to several sinks and joins their errors.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that implements io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Lister is implemented by sinks that can read their history back.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]Event, error)
}
