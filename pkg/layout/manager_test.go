package layout

import (
	"errors"
	"testing"

	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
)

func newTestManager(t *testing.T, name string, w, h int, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(preset.DefaultSet(), name, w, h, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

// --- Substitution ---

func TestCalculateLayoutSubstitutes(t *testing.T) {
	m := newTestManager(t, "quick", 200, 50)
	g, err := m.CalculateLayout("full", 130, 35)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Substituted || g.Preset != "quick" || g.Requested != "full" {
		t.Errorf("got preset %q requested %q substituted %v, want quick for full", g.Preset, g.Requested, g.Substituted)
	}
}

func TestCalculateLayoutBelowEveryMinimum(t *testing.T) {
	m := newTestManager(t, "quick", 200, 50)
	g, err := m.CalculateLayout("monitoring", 20, 5)
	if err != nil {
		t.Fatalf("got %v, want fallback without error", err)
	}
	if g.Preset != preset.Smallest().Name {
		t.Errorf("got %q, want %q", g.Preset, preset.Smallest().Name)
	}
	if err := g.Validate(); err != nil {
		t.Error(err)
	}
}

func TestCalculateLayoutUnknown(t *testing.T) {
	m := newTestManager(t, "quick", 80, 24)
	if _, err := m.CalculateLayout("nope", 80, 24); !errors.Is(err, preset.ErrUnknown) {
		t.Errorf("got %v, want ErrUnknown", err)
	}
	if _, err := NewManager(nil, "nope", 80, 24); !errors.Is(err, preset.ErrUnknown) {
		t.Errorf("NewManager: got %v, want ErrUnknown", err)
	}
}

func TestCalculateLayoutCached(t *testing.T) {
	m := newTestManager(t, "quick", 80, 24)
	m.Cache().Invalidate()
	if _, err := m.CalculateLayout("development", 120, 30); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CalculateLayout("development", 120, 30); err != nil {
		t.Fatal(err)
	}
	hits, _ := m.Cache().Stats()
	if hits == 0 {
		t.Error("second call should hit the cache")
	}
	if m.Cache().Len() != 1 {
		t.Errorf("got %d entries, want 1", m.Cache().Len())
	}
}

// --- Preset and size changes ---

func TestSetPresetInvalidatesAndNotifies(t *testing.T) {
	bus := events.NewBus(8, nil)
	var got []events.Event
	bus.Subscribe(func(ev events.Event) { got = append(got, ev) })
	bus.Start()

	m := newTestManager(t, "quick", 200, 50, WithBus(bus))
	var hooked []Geometry
	m.OnInvalidate(func(g Geometry) { hooked = append(hooked, g) })
	m.CalculateLayout("full", 100, 30)

	g, err := m.SetPreset("full")
	if err != nil {
		t.Fatal(err)
	}
	bus.Close()

	if g.Preset != "full" || m.CurrentPreset().Name != "full" {
		t.Errorf("got %q, want full", g.Preset)
	}
	if len(hooked) != 1 || len(hooked[0].Panes) != 5 {
		t.Errorf("got %d hook calls, want 1 with 5 panes", len(hooked))
	}
	if m.Cache().Len() != 1 {
		t.Errorf("cache should hold only the new layout, got %d entries", m.Cache().Len())
	}
	if len(got) != 1 || got[0].Kind != events.PresetChanged || got[0].Attr("previous") != "quick" {
		t.Errorf("got events %+v, want one preset change from quick", got)
	}
}

func TestResizeRestoresRequestedPreset(t *testing.T) {
	m := newTestManager(t, "monitoring", 130, 35)
	if g, _ := m.Resize(90, 20); g.Preset != "quick" || !g.Substituted {
		t.Fatalf("got %q, want quick substitute", g.Preset)
	}
	if m.RequestedPreset() != "monitoring" {
		t.Errorf("got requested %q, want monitoring", m.RequestedPreset())
	}
	g, err := m.Resize(130, 35)
	if err != nil {
		t.Fatal(err)
	}
	if g.Preset != "monitoring" || g.Substituted {
		t.Errorf("got %q substituted %v, want monitoring", g.Preset, g.Substituted)
	}
	if w, h := m.Size(); w != 130 || h != 35 {
		t.Errorf("got size %dx%d, want 130x35", w, h)
	}
}

func TestResizeKeepsFocus(t *testing.T) {
	m := newTestManager(t, "development", 120, 30)
	if err := m.SetFocusedPane(preset.PaneCapabilities); err != nil {
		t.Fatal(err)
	}
	g, _ := m.Resize(140, 40)
	if g.Focused() != preset.PaneCapabilities || m.FocusedPane() != preset.PaneCapabilities {
		t.Errorf("got focus %q, want capabilities", g.Focused())
	}
	g, _ = m.Resize(60, 12)
	if g.Focused() != preset.PaneProgress {
		t.Errorf("got focus %q after shrink, want progress", g.Focused())
	}
}

// --- Focus ---

func TestFocusCycleReturnsToStart(t *testing.T) {
	m := newTestManager(t, "full", 160, 40)
	start := m.FocusedPane()
	n := len(m.Geometry().Panes)
	for i := 0; i < n; i++ {
		if err := m.SetFocusedPane(m.NextPane()); err != nil {
			t.Fatal(err)
		}
		focused := 0
		for _, p := range m.Geometry().Panes {
			if p.Focused {
				focused++
			}
		}
		if focused != 1 {
			t.Fatalf("step %d: %d panes focused, want 1", i, focused)
		}
	}
	if m.FocusedPane() != start {
		t.Errorf("got %q, want %q", m.FocusedPane(), start)
	}
}

func TestNextPreviousDoNotMoveFocus(t *testing.T) {
	m := newTestManager(t, "development", 120, 30)
	if got := m.NextPane(); got != preset.PaneTasks {
		t.Errorf("next: got %q, want tasks", got)
	}
	if got := m.PreviousPane(); got != preset.PaneCapabilities {
		t.Errorf("previous: got %q, want capabilities", got)
	}
	if m.FocusedPane() != preset.PaneProgress {
		t.Errorf("focus moved to %q", m.FocusedPane())
	}
}

func TestSetFocusedPaneUnknown(t *testing.T) {
	m := newTestManager(t, "quick", 80, 24)
	if err := m.SetFocusedPane(preset.PaneLogs); !errors.Is(err, ErrUnknownPane) {
		t.Errorf("got %v, want ErrUnknownPane", err)
	}
	if m.FocusedPane() != preset.PaneProgress {
		t.Errorf("focus changed to %q", m.FocusedPane())
	}
}

func TestGeometryIsACopy(t *testing.T) {
	m := newTestManager(t, "development", 120, 30)
	g := m.Geometry()
	g.Panes[0].Width = 1
	if m.Geometry().Panes[0].Width == 1 {
		t.Error("mutating a returned geometry changed the manager")
	}
}
