// Package runmode classifies an invocation as attended (real terminal) or
// headless (desktop icon / GUI trigger). The classification happens once at
// startup and is passed explicitly to every component that branches on it.
package runmode

import (
	"os"

	"github.com/mattn/go-isatty"
)

// Mode is the attendance classification for the current invocation.
type Mode int

const (
	// Interactive means a human is sitting at a real terminal.
	Interactive Mode = iota
	// Headless means no usable terminal: launched from a desktop icon or
	// another GUI trigger. Output must be duplicated to a log file and
	// elevation must go through graphical helpers.
	Headless
)

func (m Mode) String() string {
	if m == Headless {
		return "headless"
	}
	return "interactive"
}

// Classify determines the mode from the terminal-type indicator and TTY
// state. TERM absent or the "dumb" sentinel means no real terminal.
func Classify(term string, stdoutIsTTY bool) Mode {
	if term == "" || term == "dumb" {
		return Headless
	}
	if !stdoutIsTTY {
		return Headless
	}
	return Interactive
}

// Detect classifies the current process.
func Detect() Mode {
	fd := os.Stdout.Fd()
	isTTY := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return Classify(os.Getenv("TERM"), isTTY)
}
