package detector

import "context"

// Detector is a strategy that locates a runtime required by the setup.
// Implementations must be safe for concurrent use.
type Detector interface {
	// Detect checks the runtime and returns what was found.
	Detect(ctx context.Context) (Interpreter, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// Interpreter is a detected runtime.
type Interpreter struct {
	Command string  // command used to reach it
	Banner  string  // raw version output, e.g. "Python 3.11.4"
	Version Version // parsed from Banner; zero when unparseable
}
