// Package term decides whether output is colored and holds the escape
// sequences the logger, the banner and the analyze table paint with.
package term

import (
	"os"
	"strings"

	"github.com/backmassage/planemux/internal/config"
)

// Escape sequences in use; all empty while colors are off.
var (
	Red     = ""
	Green   = ""
	Yellow  = ""
	Blue    = ""
	Cyan    = ""
	Magenta = ""
	NC      = "" // Reset.
)

var palette = []struct {
	v    *string
	code string
}{
	{&Red, "\033[1;91m"},
	{&Green, "\033[1;92m"},
	{&Yellow, "\033[1;93m"},
	{&Blue, "\033[1;94m"},
	{&Cyan, "\033[1;96m"},
	{&Magenta, "\033[1;95m"},
	{&NC, "\033[0m"},
}

// Configure switches the palette on or off for mode, judged against stdout.
// logging.NewLogger calls it before anything is printed.
func Configure(mode config.ColorMode) {
	on := resolve(mode, os.Stdout)
	for _, p := range palette {
		*p.v = ""
		if on {
			*p.v = p.code
		}
	}
}

// Enabled reports whether the palette is on.
func Enabled() bool { return NC != "" }

// Paint returns s between color and a reset. With colors off, or an empty
// color, s comes back as is.
func Paint(color, s string) string {
	if color == "" || !Enabled() {
		return s
	}
	return color + s + NC
}

// resolve applies mode. Auto colors only a terminal, and NO_COLOR or
// TERM=dumb turn it off.
func resolve(mode config.ColorMode, f *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb") {
		return false
	}
	return IsTerminal(f)
}

// IsTerminal reports whether f is a character device.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
