package keys

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
	"gitlab.com/tinyland/lab/flowdeck/pkg/fault"
	"gitlab.com/tinyland/lab/flowdeck/pkg/layout"
	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
)

type fixture struct {
	nav    *Navigator
	layout *layout.Manager
	panes  *pane.Manager
	faults *fault.Handler
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	lm, err := layout.NewManager(preset.DefaultSet(), "development", 120, 30)
	if err != nil {
		t.Fatal(err)
	}
	pm := pane.NewManager(pane.ManagerConfig{DebounceWindow: time.Hour})
	t.Cleanup(pm.Close)
	for _, id := range lm.Geometry().IDs() {
		cfg := pane.Config{Collapsible: id == preset.PaneCapabilities}
		if err := pm.Register(context.Background(), id, nil, cfg); err != nil {
			t.Fatal(err)
		}
	}
	pm.WaitIdle()
	faults := fault.New(fault.Config{})
	nav := NewNavigator(lm, pm, append([]Option{WithFaults(faults)}, opts...)...)
	nav.SyncFocus()
	return fixture{nav: nav, layout: lm, panes: pm, faults: faults}
}

func (f fixture) press(raw string) bool {
	return f.nav.HandleKeyPress(raw, Modifiers{})
}

func focusedPanes(pm *pane.Manager) []string {
	var out []string
	for _, s := range pm.Snapshots() {
		if s.Focused {
			out = append(out, s.ID)
		}
	}
	return out
}

// --- normalisation ---

func TestNormalize(t *testing.T) {
	cases := []struct {
		raw  string
		mods Modifiers
		want string
	}{
		{"a", Modifiers{}, "a"},
		{"A", Modifiers{}, "shift+a"},
		{"r", Modifiers{Shift: true, Ctrl: true}, "ctrl+shift+r"},
		{"x", Modifiers{Meta: true, Alt: true}, "alt+meta+x"},
		{"alt+ctrl+K", Modifiers{}, "ctrl+shift+alt+k"},
		{"Tab", Modifiers{}, "tab"},
		{" ", Modifiers{}, "space"},
		{"Escape", Modifiers{}, "esc"},
		{"return", Modifiers{Ctrl: true}, "ctrl+enter"},
		{"+", Modifiers{}, "+"},
		{"ctrl++", Modifiers{}, "ctrl++"},
		{"", Modifiers{}, ""},
	}
	for _, c := range cases {
		if got := Normalize(c.raw, c.mods); got != c.want {
			t.Errorf("Normalize(%q, %+v) = %q, want %q", c.raw, c.mods, got, c.want)
		}
	}
}

func TestFromTeaKey(t *testing.T) {
	cases := []struct {
		msg  tea.KeyMsg
		want string
	}{
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")}, "shift+r"},
		{tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t"), Alt: true}, "alt+t"},
		{tea.KeyMsg{Type: tea.KeyTab}, "tab"},
		{tea.KeyMsg{Type: tea.KeyShiftTab}, "shift+tab"},
		{tea.KeyMsg{Type: tea.KeyCtrlC}, "ctrl+c"},
		{tea.KeyMsg{Type: tea.KeySpace}, "space"},
		{tea.KeyMsg{Type: tea.KeyLeft}, "left"},
	}
	for _, c := range cases {
		raw, mods := FromTeaKey(c.msg)
		if got := Normalize(raw, mods); got != c.want {
			t.Errorf("%v: got %q, want %q", c.msg, got, c.want)
		}
	}
}

func TestBindingsCoverGlobalTable(t *testing.T) {
	bs := Bindings()
	if len(bs) != len(globalBindings) {
		t.Fatalf("got %d bindings, want %d", len(bs), len(globalBindings))
	}
	if got := bs[0].Help().Desc; got != "next pane" {
		t.Errorf("got %q, want next pane", got)
	}
	var km KeyMap
	if len(km.FullHelp()) != 4 || len(km.ShortHelp()) == 0 {
		t.Error("help groups empty")
	}
}

// --- focus ---

func TestFocusCycleReturnsToStart(t *testing.T) {
	f := newFixture(t)
	start := f.layout.FocusedPane()
	n := len(f.layout.Geometry().Panes)
	for i := 0; i < n; i++ {
		if !f.press("tab") {
			t.Fatalf("tab %d not handled", i)
		}
		if got := focusedPanes(f.panes); len(got) != 1 || got[0] != f.layout.FocusedPane() {
			t.Fatalf("step %d: focused panes %v, layout focus %q", i, got, f.layout.FocusedPane())
		}
	}
	if f.layout.FocusedPane() != start {
		t.Errorf("got %q, want %q", f.layout.FocusedPane(), start)
	}
}

func TestFocusPrevious(t *testing.T) {
	f := newFixture(t)
	f.press("left")
	if got := f.layout.FocusedPane(); got != preset.PaneCapabilities {
		t.Errorf("got %q, want capabilities", got)
	}
	f.nav.HandleKeyPress("tab", Modifiers{Shift: true})
	if got := f.layout.FocusedPane(); got != preset.PaneTasks {
		t.Errorf("got %q, want tasks", got)
	}
}

func TestJumpShortcut(t *testing.T) {
	bus := events.NewBus(16, nil)
	var mu sync.Mutex
	var focus []string
	bus.Subscribe(func(ev events.Event) {
		if ev.Kind == events.FocusChanged {
			mu.Lock()
			focus = append(focus, ev.PaneID)
			mu.Unlock()
		}
	})
	f := newFixture(t, WithBus(bus))
	if !f.nav.HandleKeyPress("t", Modifiers{Alt: true}) {
		t.Fatal("alt+t not handled")
	}
	bus.Close()
	if got := f.layout.FocusedPane(); got != preset.PaneTasks {
		t.Errorf("got %q, want tasks", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(focus) != 1 || focus[0] != preset.PaneTasks {
		t.Errorf("got focus events %v, want [tasks]", focus)
	}
}

// --- presets ---

func TestSwitchPreset(t *testing.T) {
	f := newFixture(t)
	if !f.press("3") {
		t.Fatal("3 not handled")
	}
	if got := f.layout.CurrentPreset().Name; got != "monitoring" {
		t.Errorf("got %q, want monitoring", got)
	}
	f.press("4")
	if got := f.layout.CurrentPreset().Name; got != "quick" {
		t.Errorf("got %q, want quick substituted for full at 120x30", got)
	}
	if f.layout.RequestedPreset() != "full" {
		t.Errorf("got requested %q, want full", f.layout.RequestedPreset())
	}
	if err := f.nav.SwitchPreset(9); err == nil {
		t.Error("want error for preset 9")
	}
}

// --- other actions ---

func TestUnknownKey(t *testing.T) {
	bus := events.NewBus(16, nil)
	var mu sync.Mutex
	var got []string
	bus.Subscribe(func(ev events.Event) {
		if ev.Kind == events.UnknownKey {
			mu.Lock()
			got = append(got, ev.Message)
			mu.Unlock()
		}
	})
	f := newFixture(t, WithBus(bus))
	if f.nav.HandleKeyPress("z", Modifiers{Ctrl: true}) {
		t.Error("ctrl+z should not be handled")
	}
	bus.Close()
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "ctrl+z" {
		t.Errorf("got %v, want [ctrl+z]", got)
	}
}

func TestHelpToggle(t *testing.T) {
	f := newFixture(t)
	f.press("?")
	if !f.nav.HelpVisible() {
		t.Error("help should be visible")
	}
	f.press("?")
	if f.nav.HelpVisible() {
		t.Error("help should be hidden")
	}
}

func TestQuitCallbacks(t *testing.T) {
	f := newFixture(t)
	var got []bool
	f.nav.OnQuit(func(force bool) {
		got = append(got, force)
		_ = f.nav.HelpVisible()
	})
	f.press("q")
	f.nav.HandleKeyPress("c", Modifiers{Ctrl: true})
	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("got %v, want [false true]", got)
	}
}

func TestRefreshDefaultQueues(t *testing.T) {
	f := newFixture(t)
	f.press("r")
	if f.panes.Pending() != 1 {
		t.Errorf("got %d pending, want 1", f.panes.Pending())
	}
	f.press("R")
	if f.panes.Pending() != 4 {
		t.Errorf("got %d pending, want 4", f.panes.Pending())
	}

	var hard []bool
	f.nav.OnRefresh(func(h bool) { hard = append(hard, h) })
	f.nav.HandleKeyPress("r", Modifiers{Ctrl: true})
	if len(hard) != 1 || !hard[0] {
		t.Errorf("got %v, want [true]", hard)
	}
}

func TestCollapseFocusedPane(t *testing.T) {
	f := newFixture(t)
	f.press("left")
	f.press("space")
	s, _ := f.panes.Snapshot(preset.PaneCapabilities)
	if !s.Collapsed {
		t.Error("focused capabilities pane should be collapsed")
	}
}

func TestPaneScopedBinding(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.nav.BindPane(preset.PaneTasks, "x", func() { calls++ })

	if f.press("x") {
		t.Error("x bound to tasks should not fire while progress is focused")
	}
	f.press("tab")
	if !f.press("x") || calls != 1 {
		t.Errorf("got handled with %d calls, want 1", calls)
	}
}

func TestPanicInBindingIsContained(t *testing.T) {
	f := newFixture(t)
	f.nav.BindPane(preset.PaneProgress, "p", func() { panic("bad binding") })
	if f.press("p") {
		t.Error("panicking binding should report unhandled")
	}
	if f.faults.Stats().Total != 1 {
		t.Errorf("got %d faults, want 1", f.faults.Stats().Total)
	}
	if !f.press("tab") {
		t.Error("navigator unusable after panic")
	}
}

// --- history and timing ---

type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func (c *stepClock) setStep(d time.Duration) {
	c.mu.Lock()
	c.step = d
	c.mu.Unlock()
}

func TestHistoryBounded(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 15; i++ {
		f.press("?")
	}
	f.press("z")
	h := f.nav.History()
	if len(h) != HistorySize {
		t.Fatalf("got %d entries, want %d", len(h), HistorySize)
	}
	last := h[len(h)-1]
	if last.Combo != "z" || last.Handled || last.Action != ActionNone {
		t.Errorf("got %+v, want unhandled z", last)
	}
	if h[0].Action != ActionHelp {
		t.Errorf("got %q, want help", h[0].Action)
	}
}

func TestResponseTimeAverage(t *testing.T) {
	clock := &stepClock{t: time.Unix(0, 0), step: 10 * time.Millisecond}
	f := newFixture(t, WithClock(clock.now))
	f.press("?")
	if got := f.nav.ResponseTime(); got != 10*time.Millisecond {
		t.Fatalf("got %v, want 10ms", got)
	}
	clock.setStep(20 * time.Millisecond)
	f.press("?")
	if got := f.nav.ResponseTime(); got < 10900*time.Microsecond || got > 11100*time.Microsecond {
		t.Errorf("got %v, want about 11ms", got)
	}
}
