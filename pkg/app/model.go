package app

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/flowdeck/pkg/engine"
	"gitlab.com/tinyland/lab/flowdeck/pkg/keys"
	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
	"gitlab.com/tinyland/lab/flowdeck/pkg/render"
)

// DefaultTickInterval is how often the view is redrawn without input.
const DefaultTickInterval = 250 * time.Millisecond

// Model is the bubbletea model wrapping an engine.
type Model struct {
	engine   *engine.Engine
	view     *render.Interactive
	zones    *zone.Manager
	interval time.Duration

	width    int
	height   int
	quitting bool
	err      error
}

// NewModel creates a model drawing e through view. A zero interval uses
// DefaultTickInterval.
func NewModel(e *engine.Engine, view *render.Interactive, interval time.Duration) Model {
	if view == nil {
		view = render.NewInteractive(nil)
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	w, h := e.Layout().Size()
	return Model{
		engine:   e,
		view:     view,
		zones:    zone.New(),
		interval: interval,
		width:    w,
		height:   h,
	}
}

// Init starts the ticker and the quit listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(TickCmd(m.interval), WaitQuitCmd(m.engine.Quit()))
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.err = m.engine.Resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		combo, mods := keys.FromTeaKey(msg)
		m.err = nil
		m.engine.HandleKey(combo, mods)
		return m, nil

	case tea.MouseMsg:
		m.err = m.handleMouse(msg)
		return m, nil

	case TickEvent:
		return m, TickCmd(m.interval)

	case PaneEvent:
		return m, nil

	case QuitEvent:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View draws the engine's current frame.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	f := m.engine.Frame()
	f.Zones = m.zones
	if m.err != nil {
		f.Status = m.err.Error()
	}
	if err := m.engine.Draw(m.view, f); err != nil {
		return err.Error()
	}
	return m.zones.Scan(m.view.View())
}

// Width returns the last known terminal width.
func (m Model) Width() int { return m.width }

// Height returns the last known terminal height.
func (m Model) Height() int { return m.height }

// Quitting reports whether a quit was requested.
func (m Model) Quitting() bool { return m.quitting }

// Run starts the engine in a full-screen bubbletea program and blocks
// until the user quits or ctx is done.
func Run(ctx context.Context, e *engine.Engine, interval time.Duration, opts ...render.Option) error {
	m := NewModel(e, render.NewInteractive(nil, opts...), interval)
	defer m.zones.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	unsubscribe := e.Panes().Subscribe(func(tr pane.Transition) {
		p.Send(PaneEvent{Transition: tr})
	})
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
