package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/flowdeck/pkg/render"
)

// handleMouse switches presets from the footer tabs and focuses the pane
// under a left click.
func (m Model) handleMouse(msg tea.MouseMsg) error {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return nil
	}
	if n := m.presetAt(msg); n > 0 {
		return m.engine.Navigator().SwitchPreset(n)
	}
	m.FocusAt(msg.X, msg.Y)
	return nil
}

// presetAt returns the 1-based preset tab under msg, or 0.
func (m Model) presetAt(msg tea.MouseMsg) int {
	for n := 1; n <= m.engine.Layout().Presets().Len(); n++ {
		if z := m.zones.Get(render.ZoneID(n)); z != nil && z.InBounds(msg) {
			return n
		}
	}
	return 0
}

// FocusAt focuses the pane containing cell (x, y). It reports whether
// focus moved.
func (m Model) FocusAt(x, y int) bool {
	pr, ok := m.engine.Layout().Geometry().At(x, y)
	if !ok {
		return false
	}
	return m.engine.Navigator().FocusPane(pr.ID)
}

// CycleFocusForward moves focus to the next pane, wrapping around.
func (m Model) CycleFocusForward() bool {
	return m.engine.Navigator().FocusNext()
}

// CycleFocusBackward moves focus to the previous pane, wrapping around.
func (m Model) CycleFocusBackward() bool {
	return m.engine.Navigator().FocusPrevious()
}
