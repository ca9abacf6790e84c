package main

// SetupFlags Flag structs to decouple cobra from logic for testing.
type SetupFlags struct {
	ConfigPath   string
	Python       string
	Pip          string
	Requirements string
	WorkDir      string
	Lang         string
	NoPause      bool
	LogLevel     string
	LogDir       string
	History      bool
	HistoryDSN   string
}

type HistoryFlags struct {
	Limit int
	JSON  bool
}
