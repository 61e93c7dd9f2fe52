package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor decides whether stdout gets ANSI colors. MODELBASE_COLOR
// ("always", "never", "auto") takes precedence, then NO_COLOR, CLICOLOR_FORCE
// and CLICOLOR, then TERM=dumb and TTY detection.
func ShouldUseColor() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("MODELBASE_COLOR"))) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
