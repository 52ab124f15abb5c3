// Package render draws engine frames to a terminal. A Frame is composed
// into lines of fixed width: a header, the tiled pane boxes and a footer
// with preset tabs and key hints. Renderers differ only in how a composed
// frame reaches the screen.
package render

import (
	"fmt"
	"strings"
)

// Mode selects a renderer.
type Mode string

const (
	ModeStatic      Mode = "static"
	ModeLive        Mode = "live"
	ModeInteractive Mode = "interactive"
	ModeAuto        Mode = "auto"
)

// Modes lists the accepted mode names.
var Modes = []Mode{ModeStatic, ModeLive, ModeInteractive, ModeAuto}

// ParseMode parses a mode name. The empty string is auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeStatic, ModeLive, ModeInteractive, ModeAuto:
		return m, nil
	}
	return "", fmt.Errorf("render: unknown mode %q", s)
}

// ResolveMode replaces auto with interactive on a terminal and static
// otherwise.
func ResolveMode(m Mode, tty bool) Mode {
	if m != ModeAuto {
		return m
	}
	if tty {
		return ModeInteractive
	}
	return ModeStatic
}
