package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
)

// ErrUnknownPane is returned when focusing a pane the layout does not hold.
var ErrUnknownPane = errors.New("unknown pane")

// Manager tracks the requested preset, terminal size and focused pane and
// serves cached geometry. It is safe for concurrent use.
type Manager struct {
	presets *preset.Set
	cache   *GeometryCache
	logger  *slog.Logger
	bus     *events.Bus

	mu        sync.RWMutex
	requested string
	width     int
	height    int
	current   Geometry
	focused   string

	hookMu sync.Mutex
	hooks  []func(Geometry)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithBus publishes preset changes to bus.
func WithBus(bus *events.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// NewManager creates a manager showing name in a terminal of the given size.
func NewManager(presets *preset.Set, name string, width, height int, opts ...Option) (*Manager, error) {
	if presets == nil {
		presets = preset.DefaultSet()
	}
	m := &Manager{
		presets: presets,
		cache:   NewGeometryCache(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	g, err := m.CalculateLayout(name, width, height)
	if err != nil {
		return nil, err
	}
	m.requested, m.width, m.height = name, width, height
	m.current, m.focused = g, g.Focused()
	return m, nil
}

// CalculateLayout returns the geometry for preset name at the given size,
// substituting a fitting preset when the terminal is below its minimums.
// Only an unknown name is an error. The result has the preset's default
// focus and is cached.
func (m *Manager) CalculateLayout(name string, width, height int) (Geometry, error) {
	if g, ok := m.cache.Get(name, width, height); ok {
		return g, nil
	}
	p, substituted, err := m.presets.Resolve(name, width, height)
	if err != nil {
		return Geometry{}, err
	}
	g, err := Calculate(p, width, height)
	if err != nil {
		return Geometry{}, fmt.Errorf("layout %s: %w", p.Name, err)
	}
	g.Requested, g.Substituted = name, substituted
	if substituted {
		m.logger.Info("preset substituted",
			"requested", name, "using", p.Name, "width", width, "height", height)
	}
	m.cache.Put(name, width, height, g)
	return g, nil
}

// SetPreset switches to preset name at the current size. Focus returns to
// the new layout's default pane.
func (m *Manager) SetPreset(name string) (Geometry, error) {
	m.mu.RLock()
	w, h := m.width, m.height
	m.mu.RUnlock()

	m.cache.Invalidate()
	g, err := m.CalculateLayout(name, w, h)
	if err != nil {
		return Geometry{}, err
	}

	m.mu.Lock()
	prev := m.current.Preset
	m.requested = name
	m.current, m.focused = g, g.Focused()
	m.mu.Unlock()

	m.bus.Emit(events.New(events.PresetChanged, g.Preset).
		WithAttr("requested", name).
		WithAttr("previous", prev).
		WithAttr("substituted", g.Substituted))
	m.invalidated(g)
	return g.Clone(), nil
}

// Resize recomputes the layout for the requested preset at a new size. A
// preset substituted at a small size is restored once it fits again. Focus
// is kept when the focused pane survives.
func (m *Manager) Resize(width, height int) (Geometry, error) {
	m.mu.RLock()
	name, prevPreset := m.requested, m.current.Preset
	m.mu.RUnlock()

	m.cache.Invalidate()
	g, err := m.CalculateLayout(name, width, height)
	if err != nil {
		return Geometry{}, err
	}

	m.mu.Lock()
	m.width, m.height = width, height
	if g.Has(m.focused) {
		g = g.withFocus(m.focused)
	}
	m.current, m.focused = g, g.Focused()
	m.mu.Unlock()

	if g.Preset != prevPreset {
		m.bus.Emit(events.New(events.PresetChanged, g.Preset).
			WithAttr("requested", name).
			WithAttr("previous", prevPreset).
			WithAttr("substituted", g.Substituted))
	}
	m.invalidated(g)
	return g.Clone(), nil
}

// Geometry returns the current layout with the current focus applied.
func (m *Manager) Geometry() Geometry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// NextPane returns the pane after the focused one, wrapping around. It does
// not move focus.
func (m *Manager) NextPane() string { return m.step(1) }

// PreviousPane returns the pane before the focused one, wrapping around.
func (m *Manager) PreviousPane() string { return m.step(-1) }

func (m *Manager) step(delta int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.current.Panes)
	if n == 0 {
		return ""
	}
	idx := 0
	for i, p := range m.current.Panes {
		if p.ID == m.focused {
			idx = i
			break
		}
	}
	return m.current.Panes[((idx+delta)%n+n)%n].ID
}

// SetFocusedPane focuses id. Unknown ids are rejected and focus is kept.
func (m *Manager) SetFocusedPane(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.Has(id) {
		return fmt.Errorf("layout: %w %q in preset %s", ErrUnknownPane, id, m.current.Preset)
	}
	m.focused = id
	m.current = m.current.withFocus(id)
	return nil
}

// FocusedPane returns the focused pane id.
func (m *Manager) FocusedPane() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focused
}

// CurrentPreset returns the preset being displayed, which differs from
// RequestedPreset after substitution.
func (m *Manager) CurrentPreset() preset.Preset {
	m.mu.RLock()
	name := m.current.Preset
	m.mu.RUnlock()
	p, _ := m.presets.Get(name)
	return p
}

// RequestedPreset returns the name last passed to SetPreset.
func (m *Manager) RequestedPreset() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requested
}

// Presets returns the preset table.
func (m *Manager) Presets() *preset.Set { return m.presets }

// Size returns the terminal size last applied.
func (m *Manager) Size() (width, height int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.width, m.height
}

// Cache exposes the geometry cache.
func (m *Manager) Cache() *GeometryCache { return m.cache }

// OnInvalidate registers fn to run after every resize or preset change with
// the new geometry. Hooks run outside the manager's lock.
func (m *Manager) OnInvalidate(fn func(Geometry)) {
	if fn == nil {
		return
	}
	m.hookMu.Lock()
	m.hooks = append(m.hooks, fn)
	m.hookMu.Unlock()
}

func (m *Manager) invalidated(g Geometry) {
	m.hookMu.Lock()
	hooks := slices.Clone(m.hooks)
	m.hookMu.Unlock()
	for _, fn := range hooks {
		fn(g.Clone())
	}
}
