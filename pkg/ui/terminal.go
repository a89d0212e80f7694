// Package ui prints operator-facing status lines for the CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stdout
	quiet  bool
	colors = term.IsTerminal(int(os.Stdout.Fd()))
)

// SetQuietMode suppresses everything except errors
func SetQuietMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = enabled
}

// SetColor turns ANSI colors on or off
func SetColor(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	colors = enabled
}

// SetOutput redirects status lines, mostly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func paint(c text.Colors, s string) string {
	if !colors {
		return s
	}
	return c.Sprint(s)
}

func emit(always bool, line string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintln(out, line)
}

func withDetail(msg string, args []interface{}) string {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		return msg + ": " + fmt.Sprint(args[0])
	}
	return msg
}

// PrintError prints an error message in red. It is shown even in quiet mode.
func PrintError(msg string, args ...interface{}) {
	emit(true, paint(text.Colors{text.FgRed}, withDetail(msg, args)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	emit(false, paint(text.Colors{text.FgYellow}, withDetail(msg, args)))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	emit(false, paint(text.Colors{text.FgGreen}, msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	emit(false, fmt.Sprintf("%s: %s", paint(text.Colors{text.FgCyan}, label), paint(text.Colors{text.FgYellow}, value)))
}

// PrintHighlight prints a bold magenta line
func PrintHighlight(msg string) {
	emit(false, paint(text.Colors{text.FgMagenta, text.Bold}, msg))
}

// Writer returns the status writer, or io.Discard in quiet mode
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return io.Discard
	}
	return out
}
