// Package clip copies text (a task id, a log line) out of the viewer.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method is the mechanism that made the text available.
type Method string

const (
	MethodNative Method = "native" // OS clipboard via github.com/atotto/clipboard
	MethodOSC52  Method = "osc52"  // Terminal clipboard escape sequence
	MethodFile   Method = "file"   // Temp file; no clipboard was reachable
)

// Result describes a successful copy.
type Result struct {
	Method   Method
	FilePath string // only set for MethodFile
}

// String renders the result as a short status-bar message.
func (r Result) String() string {
	switch r.Method {
	case MethodNative:
		return "copied to clipboard"
	case MethodOSC52:
		return "copied via terminal"
	case MethodFile:
		return "saved to " + r.FilePath
	default:
		return "copied"
	}
}

// Terminals often drop larger OSC52 payloads.
const osc52LimitBytes = 100_000

// Clipboard tries the native clipboard, then OSC52, then a temp file.
type Clipboard struct {
	native   func(string) error
	terminal io.Writer
	isTTY    func() bool
	tempDir  string
	env      func(string) string
}

// New returns a Clipboard wired to the real system. OSC52 goes to stderr
// so it does not interleave with the UI renderer on stdout.
func New() *Clipboard {
	return &Clipboard{
		native:   atotto.WriteAll,
		terminal: os.Stderr,
		isTTY:    func() bool { return term.IsTerminal(int(os.Stderr.Fd())) },
		env:      os.Getenv,
	}
}

var std = New()

// WriteAll copies text with the default Clipboard.
func WriteAll(text string) (Result, error) {
	return std.Copy(text)
}

// Copy makes text available through the first mechanism that works.
func (c *Clipboard) Copy(text string) (Result, error) {
	if text == "" {
		return Result{}, errors.New("nothing to copy")
	}
	if c.native != nil && c.native(text) == nil {
		return Result{Method: MethodNative}, nil
	}
	if err := c.writeOSC52(text); err == nil {
		return Result{Method: MethodOSC52}, nil
	}

	path, err := c.writeTempFile(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

func (c *Clipboard) writeOSC52(text string) error {
	if c.terminal == nil || c.isTTY == nil || !c.isTTY() {
		return errors.New("no terminal for OSC52")
	}
	if len(text) > osc52LimitBytes {
		return fmt.Errorf("text too large for OSC52 (%d bytes > %d)", len(text), osc52LimitBytes)
	}

	seq := osc52.New(text).Limit(osc52LimitBytes)
	switch {
	case c.env("TMUX") != "":
		seq = seq.Tmux()
	case strings.HasPrefix(c.env("TERM"), "screen") || c.env("STY") != "":
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(c.terminal)
	return err
}

func (c *Clipboard) writeTempFile(text string) (path string, err error) {
	f, err := os.CreateTemp(c.tempDir, "rocotoviewer-clip-*.txt")
	if err != nil {
		return "", err
	}
	path = f.Name()
	defer func() {
		_ = f.Close()
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.WriteString(text); err != nil {
		return "", err
	}
	return path, f.Close()
}
