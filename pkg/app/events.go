// Package app hosts the engine in a bubbletea program: it turns terminal
// messages into engine calls and draws the engine's frame as the view.
// Mouse clicks focus panes and switch presets from the footer tabs.
package app

import (
	"time"

	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
)

// TickEvent is sent periodically by the render ticker to redraw pane
// state that changed in the background.
type TickEvent struct {
	Time time.Time
}

// PaneEvent carries a pane state transition into the update loop.
type PaneEvent struct {
	Transition pane.Transition
}

// QuitEvent is sent when the engine asks the host to exit.
type QuitEvent struct {
	Force bool
}
