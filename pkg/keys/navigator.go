package keys

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
	"gitlab.com/tinyland/lab/flowdeck/pkg/fault"
	"gitlab.com/tinyland/lab/flowdeck/pkg/layout"
	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
	"gitlab.com/tinyland/lab/flowdeck/pkg/perf"
)

const (
	// HistorySize is how many key presses are retained.
	HistorySize = 10
	// ResponseAlpha is the smoothing factor of the response time average.
	ResponseAlpha = 0.1
)

// KeyPress is one entry of the key history.
type KeyPress struct {
	Combo    string
	Time     time.Time
	Handled  bool
	Action   Action
	Duration time.Duration
}

// Navigator resolves key presses and applies them to the layout and pane
// managers. Key handling and focus changes are serialised, so exactly one
// pane is focused between calls.
type Navigator struct {
	layout  *layout.Manager
	panes   *pane.Manager
	faults  *fault.Handler
	monitor *perf.Monitor
	bus     *events.Bus
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	global    map[string]globalBinding
	scoped    map[string]map[string]func()
	history   []KeyPress
	avg       float64
	seeded    bool
	help      bool
	onQuit    func(force bool)
	onRefresh func(hard bool)
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Navigator) { n.logger = l }
}

// WithBus publishes navigation events to bus.
func WithBus(bus *events.Bus) Option {
	return func(n *Navigator) { n.bus = bus }
}

// WithFaults reports handler panics to h.
func WithFaults(h *fault.Handler) Option {
	return func(n *Navigator) { n.faults = h }
}

// WithMonitor times every key press.
func WithMonitor(m *perf.Monitor) Option {
	return func(n *Navigator) { n.monitor = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Navigator) { n.now = now }
}

// NewNavigator creates a navigator over the given managers.
func NewNavigator(lm *layout.Manager, pm *pane.Manager, opts ...Option) *Navigator {
	n := &Navigator{
		layout: lm,
		panes:  pm,
		logger: slog.Default(),
		now:    time.Now,
		global: globalTable(),
		scoped: make(map[string]map[string]func()),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// OnQuit sets the host callback for quit keys.
func (n *Navigator) OnQuit(fn func(force bool)) {
	n.mu.Lock()
	n.onQuit = fn
	n.mu.Unlock()
}

// OnRefresh replaces the default refresh behaviour, which queues a refresh
// of the focused pane, or of every pane for a hard refresh.
func (n *Navigator) OnRefresh(fn func(hard bool)) {
	n.mu.Lock()
	n.onRefresh = fn
	n.mu.Unlock()
}

// BindPane binds combo to fn while paneID is focused. Global bindings take
// precedence. fn runs with the navigator locked and must not call back
// into it.
func (n *Navigator) BindPane(paneID, combo string, fn func()) {
	c := Normalize(combo, Modifiers{})
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.scoped[paneID] == nil {
		n.scoped[paneID] = make(map[string]func())
	}
	n.scoped[paneID][c] = fn
}

// HandleKeyPress resolves and executes one key press. It returns false and
// emits an UnknownKey event when nothing is bound. A panicking action is
// reported to the fault handler and counts as unhandled.
func (n *Navigator) HandleKeyPress(raw string, mods Modifiers) bool {
	start := n.now()
	combo := Normalize(raw, mods)
	op := "keyboard." + combo
	n.monitor.StartTimer(op)

	var (
		action Action
		after  func()
	)
	n.mu.Lock()
	err := fault.Guard(func() error {
		action, after = n.dispatchLocked(combo)
		return nil
	})
	handled := err == nil && action != ActionNone
	d := n.now().Sub(start)
	n.recordLocked(KeyPress{Combo: combo, Time: start, Handled: handled, Action: action, Duration: d})
	n.mu.Unlock()

	n.monitor.EndTimer(op)
	if err != nil {
		n.faults.Handle(err, fault.Context{Type: "keyboard", Operation: combo, PaneID: n.layout.FocusedPane()})
		return false
	}
	if action == ActionNone {
		n.logger.Debug("unbound key", "combo", combo)
		n.bus.Emit(events.New(events.UnknownKey, combo).WithAttr("combo", combo))
		return false
	}
	if after != nil {
		after()
	}
	return true
}

// dispatchLocked resolves combo and runs it. Host callbacks are returned
// to be run once the lock is released.
func (n *Navigator) dispatchLocked(combo string) (Action, func()) {
	if b, ok := n.global[combo]; ok {
		return b.action, n.runLocked(b)
	}
	if id, ok := n.layout.CurrentPreset().Shortcuts[combo]; ok {
		n.focusLocked(id)
		return ActionJump, nil
	}
	if fn, ok := n.scoped[n.layout.FocusedPane()][combo]; ok {
		fn()
		return ActionPaneScoped, nil
	}
	return ActionNone, nil
}

func (n *Navigator) runLocked(b globalBinding) func() {
	switch b.action {
	case ActionNextPane:
		n.focusLocked(n.layout.NextPane())
	case ActionPreviousPane:
		n.focusLocked(n.layout.PreviousPane())
	case ActionPreset:
		if err := n.switchPresetLocked(b.preset); err != nil {
			n.logger.Warn("preset switch failed", "n", b.preset, "error", err)
		}
	case ActionHelp:
		n.help = !n.help
		n.bus.Emit(events.New(events.HelpToggled, "").WithAttr("visible", n.help))
	case ActionCollapse:
		n.panes.ToggleCollapse(n.layout.FocusedPane())
	case ActionRefresh, ActionHardRefresh:
		hard := b.action == ActionHardRefresh
		if fn := n.onRefresh; fn != nil {
			return func() { fn(hard) }
		}
		n.queueRefreshLocked(hard)
	case ActionQuit, ActionForceQuit:
		force := b.action == ActionForceQuit
		n.bus.Emit(events.New(events.Quit, "").WithAttr("force", force))
		if fn := n.onQuit; fn != nil {
			return func() { fn(force) }
		}
	}
	return nil
}

func (n *Navigator) queueRefreshLocked(hard bool) {
	ids := []string{n.layout.FocusedPane()}
	if hard {
		ids = n.panes.IDs()
	}
	for _, id := range ids {
		if hard {
			n.faults.ResetRetries(fault.Context{PaneID: id}.OperationID())
		}
		n.panes.Queue(pane.Update{ID: id, Refresh: true})
	}
}

// FocusNext moves focus to the next pane in layout order.
func (n *Navigator) FocusNext() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focusLocked(n.layout.NextPane())
}

// FocusPrevious moves focus to the previous pane in layout order.
func (n *Navigator) FocusPrevious() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focusLocked(n.layout.PreviousPane())
}

// FocusPane moves focus to id. It returns false when id is not laid out or
// already focused.
func (n *Navigator) FocusPane(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.focusLocked(id)
}

func (n *Navigator) focusLocked(id string) bool {
	prev := n.layout.FocusedPane()
	if id == "" || id == prev {
		return false
	}
	if err := n.layout.SetFocusedPane(id); err != nil {
		n.logger.Debug("focus rejected", "pane", id, "error", err)
		return false
	}
	n.syncPaneFocusLocked(id)
	n.bus.Emit(events.New(events.FocusChanged, id).WithPane(id).WithAttr("from", prev))
	return true
}

// syncPaneFocusLocked leaves id as the only focused pane.
func (n *Navigator) syncPaneFocusLocked(id string) {
	if cur := n.panes.Focused(); cur != "" && cur != id {
		_ = n.panes.SetFocus(cur, false)
	}
	if n.panes.Has(id) {
		_ = n.panes.SetFocus(id, true)
	}
}

// SwitchPreset shows the nth preset in ascending size order, counting
// from 1. The layout may substitute a smaller preset if the terminal is
// too small.
func (n *Navigator) SwitchPreset(num int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.switchPresetLocked(num)
}

func (n *Navigator) switchPresetLocked(num int) error {
	p, ok := n.layout.Presets().At(num)
	if !ok {
		return fmt.Errorf("keys: no preset %d", num)
	}
	g, err := n.layout.SetPreset(p.Name)
	if err != nil {
		return err
	}
	if g.Substituted {
		n.logger.Info("preset too large for terminal", "requested", p.Name, "using", g.Preset)
	}
	n.syncPaneFocusLocked(g.Focused())
	return nil
}

// SyncFocus makes the pane manager agree with the layout's focused pane.
// Call it after the layout changed outside the navigator.
func (n *Navigator) SyncFocus() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.syncPaneFocusLocked(n.layout.FocusedPane())
}

func (n *Navigator) recordLocked(kp KeyPress) {
	n.history = append(n.history, kp)
	if len(n.history) > HistorySize {
		n.history = n.history[len(n.history)-HistorySize:]
	}
	ms := float64(kp.Duration) / float64(time.Millisecond)
	if !n.seeded {
		n.avg, n.seeded = ms, true
		return
	}
	n.avg = ResponseAlpha*ms + (1-ResponseAlpha)*n.avg
}

// History returns recent key presses, oldest first.
func (n *Navigator) History() []KeyPress {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]KeyPress(nil), n.history...)
}

// ResponseTime returns the smoothed key handling time.
func (n *Navigator) ResponseTime() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return time.Duration(n.avg * float64(time.Millisecond))
}

// HelpVisible reports whether help is toggled on.
func (n *Navigator) HelpVisible() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.help
}
