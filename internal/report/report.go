package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Params are the values substituted into messages.
type Params struct {
	MinVersion       string
	DownloadURL      string
	PackageManager   string
	FallbackPackages []string
	Interpreter      string
	GUIScript        string
	ToolScript       string
}

// DefaultParams mirrors the stock GIF-maker setup.
func DefaultParams() Params {
	return Params{
		MinVersion:       "3.7",
		DownloadURL:      "https://www.python.org/downloads/",
		PackageManager:   "pip",
		FallbackPackages: []string{"Pillow", "psutil"},
		Interpreter:      "python",
		GUIScript:        "start_gui.bat",
		ToolScript:       "gif_maker.py",
	}
}

// FallbackCommand is the manual install command suggested after a failure.
func (p Params) FallbackCommand() string {
	return strings.Join(append([]string{p.PackageManager, "install"}, p.FallbackPackages...), " ")
}

// Reporter prints the user-facing messages of one setup run.
type Reporter struct {
	out io.Writer
	cat Catalog
	p   Params
}

func New(out io.Writer, lang string, p Params) (*Reporter, error) {
	cat, err := LoadCatalog(lang)
	if err != nil {
		return nil, err
	}
	return &Reporter{out: out, cat: cat, p: p}, nil
}

// Lang returns the resolved catalogue language.
func (r *Reporter) Lang() string { return r.cat.Lang }

func (r *Reporter) Checking() error { return r.say(KeyChecking) }

// InterpreterMissing names the minimum version and the download URL.
func (r *Reporter) InterpreterMissing() error { return r.say(KeyMissing) }

// Version prints the check-passed line followed by the interpreter banner.
func (r *Reporter) Version(banner string) error {
	if err := r.say(KeyCheckPassed); err != nil {
		return err
	}
	return r.line(banner + "\n")
}

func (r *Reporter) Installing() error { return r.say(KeyInstalling) }

// InstallFailed suggests the manual fallback command.
func (r *Reporter) InstallFailed() error { return r.say(KeyInstallFailed) }

// Installed prints the success message and the three usage hints.
func (r *Reporter) Installed() error { return r.say(KeyInstalled) }

// Pause prints the prompt and blocks until a line or EOF arrives on in.
func (r *Reporter) Pause(in io.Reader) error {
	msg, err := r.cat.Render(KeyPause, r.p)
	if err != nil {
		return err
	}
	if err := r.line(msg); err != nil {
		return err
	}
	if in == nil {
		return r.line("\n")
	}
	_, err = bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("wait for acknowledgment: %w", err)
	}
	return nil
}

func (r *Reporter) say(k Key) error {
	msg, err := r.cat.Render(k, r.p)
	if err != nil {
		return err
	}
	return r.line(msg + "\n")
}

func (r *Reporter) line(s string) error {
	_, err := io.WriteString(r.out, s)
	return err
}
