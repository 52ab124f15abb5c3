package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickCmd returns a bubbletea Cmd that sends a TickEvent after the given
// duration.
func TickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickEvent{Time: t}
	})
}

// WaitQuitCmd returns a Cmd that blocks until the engine requests a quit
// and delivers it as a QuitEvent.
func WaitQuitCmd(quit <-chan bool) tea.Cmd {
	return func() tea.Msg {
		force, ok := <-quit
		if !ok {
			return nil
		}
		return QuitEvent{Force: force}
	}
}
