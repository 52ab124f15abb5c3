package pane

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/flowdeck/pkg/debounce"
	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
	"gitlab.com/tinyland/lab/flowdeck/pkg/fault"
	"gitlab.com/tinyland/lab/flowdeck/pkg/perf"
)

// Fault context types reported by the manager.
const (
	ContextInit   = "pane_init"
	ContextUpdate = "pane_update"
	ContextFetch  = "external_fetch"
)

// ManagerConfig tunes a Manager. Zero values take defaults.
type ManagerConfig struct {
	DebounceWindow time.Duration
	MaxConcurrent  int
}

// DefaultManagerConfig returns the defaults: a 100ms debounce window and
// three concurrent updates per batch.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{DebounceWindow: 100 * time.Millisecond, MaxConcurrent: 3}
}

// Manager owns the pane registry. It is safe for concurrent use.
type Manager struct {
	cfg        ManagerConfig
	logger     *slog.Logger
	bus        *events.Bus
	faults     *fault.Handler
	monitor    *perf.Monitor
	membership func(id string) bool
	validate   func(id string, data any) error
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	panes  map[string]*entry
	closed bool
	count  atomic.Int64

	qmu   sync.Mutex
	queue []Update
	timer *debounce.Timer

	subMu   sync.RWMutex
	subs    map[int]func(Transition)
	nextSub int
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithBus publishes pane events to bus.
func WithBus(bus *events.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithFaults reports failures to h.
func WithFaults(h *fault.Handler) Option {
	return func(m *Manager) { m.faults = h }
}

// WithMonitor times updates with mon.
func WithMonitor(mon *perf.Monitor) Option {
	return func(m *Manager) { m.monitor = mon }
}

// WithMembership restricts registration and queued updates to ids for
// which fn returns true.
func WithMembership(fn func(id string) bool) Option {
	return func(m *Manager) { m.membership = fn }
}

// WithValidator checks data before it is applied.
func WithValidator(fn func(id string, data any) error) Option {
	return func(m *Manager) { m.validate = fn }
}

// NewManager creates a manager.
func NewManager(cfg ManagerConfig, opts ...Option) *Manager {
	d := DefaultManagerConfig()
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = d.DebounceWindow
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = d.MaxConcurrent
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		panes:  make(map[string]*entry),
		subs:   make(map[int]func(Transition)),
	}
	for _, o := range opts {
		o(m)
	}
	m.timer = debounce.New(cfg.DebounceWindow, func() { m.ProcessUpdateQueue(m.ctx) })
	return m
}

// Config returns the effective configuration.
func (m *Manager) Config() ManagerConfig { return m.cfg }

// Register adds a pane and starts initializing it in the background. A nil
// provider means the pane has no data source and becomes ready at once.
func (m *Manager) Register(ctx context.Context, id string, p Provider, cfg Config) error {
	if m.membership != nil && !m.membership(id) {
		return fmt.Errorf("pane: register %q: %w", id, ErrNotInLayout)
	}
	if cfg.Title == "" {
		cfg.Title = id
	}
	e := &entry{id: id, cfg: cfg, provider: p}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if _, ok := m.panes[id]; ok {
		m.mu.Unlock()
		return fmt.Errorf("pane: register %q: %w", id, ErrDuplicatePane)
	}
	m.panes[id] = e
	m.count.Add(1)
	trs := m.setStateLocked(e, StateInitializing)
	m.wg.Add(1)
	m.mu.Unlock()
	m.notify(trs)

	m.logger.Debug("pane registered", "pane", id)
	go func() {
		defer m.wg.Done()
		m.initialize(ctx, e)
	}()
	return nil
}

func (m *Manager) initialize(ctx context.Context, e *entry) {
	if ctx.Err() != nil {
		ctx = m.ctx
	}
	if e.provider == nil {
		m.settle(e, nil, false)
		return
	}
	if trs, ok := m.transition(e, StateLoading); ok {
		m.notify(trs)
	} else {
		return
	}

	var data any
	err := fault.Guard(func() error {
		var err error
		data, err = e.provider.Init(ctx)
		return err
	})
	if err != nil {
		m.report(ctx, err, fault.Context{Type: ContextInit, PaneID: e.id, Operation: "init"})
		m.fail(e, err)
		return
	}
	m.settle(e, data, data != nil)
}

// transition moves a still-registered pane to state.
func (m *Manager) transition(e *entry, s State) ([]Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panes[e.id] != e {
		return nil, false
	}
	return m.setStateLocked(e, s), true
}

// settle applies data when apply is set and returns the pane to rest.
func (m *Manager) settle(e *entry, data any, apply bool) {
	m.mu.Lock()
	if m.panes[e.id] != e {
		m.mu.Unlock()
		return
	}
	if apply {
		e.data = data
		e.updateCount++
		e.lastUpdate = m.now()
	}
	e.err = nil
	trs := m.setStateLocked(e, e.restState())
	m.mu.Unlock()
	m.notify(trs)
}

// fail records err on the pane, keeping its last good data.
func (m *Manager) fail(e *entry, err error) {
	m.mu.Lock()
	if m.panes[e.id] != e {
		m.mu.Unlock()
		return
	}
	e.err = err
	trs := m.setStateLocked(e, StateError)
	m.mu.Unlock()
	m.notify(trs)
}

func (m *Manager) report(ctx context.Context, err error, c fault.Context) (fault.Record, fault.Outcome) {
	return m.faults.HandleAndRecover(ctx, err, c)
}

// Unregister removes a pane and discards its queued updates. It reports
// whether the pane existed.
func (m *Manager) Unregister(id string) bool {
	m.mu.Lock()
	e, ok := m.panes[id]
	if ok {
		delete(m.panes, id)
		m.count.Add(-1)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.dropQueued(func(qid string) bool { return qid == id })
	m.notify([]Transition{{ID: id, From: e.state, Time: m.now()}})
	m.logger.Debug("pane unregistered", "pane", id)
	return true
}

// UpdatePane applies data to a pane. Data that is an error, or that the
// validator rejects, puts the pane in the error state with its last good
// data kept, and is reported to the fault handler.
func (m *Manager) UpdatePane(ctx context.Context, id string, data any, opts UpdateOptions) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	start := m.now()
	defer func() { m.monitor.Observe("update."+id, m.now().Sub(start)) }()

	if !opts.Background {
		if trs, ok := m.transition(e, StateUpdating); ok {
			m.notify(trs)
		}
	}

	if derr, ok := data.(error); ok {
		m.report(ctx, derr, fault.Context{Type: ContextUpdate, PaneID: id, Operation: "update", Snapshot: m.lastData(e)})
		m.fail(e, derr)
		return fmt.Errorf("pane: update %q: %w", id, derr)
	}
	if m.validate != nil {
		if verr := m.validate(id, data); verr != nil {
			m.report(ctx, verr, fault.Context{Type: ContextUpdate, PaneID: id, Operation: "validate", Snapshot: m.lastData(e)})
			m.fail(e, verr)
			return fmt.Errorf("pane: update %q: %w", id, verr)
		}
	}
	m.settle(e, data, true)
	return nil
}

// RefreshPane fetches from the pane's provider and applies the result.
func (m *Manager) RefreshPane(ctx context.Context, id string) error {
	return m.refresh(ctx, id, nil, UpdateOptions{})
}

// refresh runs load, or the provider's Fetch when load is nil. Failures are
// retried while the fault handler signals retry.
func (m *Manager) refresh(ctx context.Context, id string, load func(context.Context) (any, error), opts UpdateOptions) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	if load == nil {
		if e.provider == nil {
			return nil
		}
		load = e.provider.Fetch
	}
	if !opts.Background {
		if trs, ok := m.transition(e, StateUpdating); ok {
			m.notify(trs)
		}
	}

	opID := fault.Context{PaneID: id}.OperationID()
	for {
		var data any
		ferr := fault.Guard(func() error {
			var err error
			data, err = load(ctx)
			return err
		})
		if ferr == nil {
			m.monitor.RecordToolResult(id, true)
			m.faults.ResetRetries(opID)
			return m.UpdatePane(ctx, id, data, UpdateOptions{Background: true})
		}
		m.monitor.RecordToolResult(id, false)
		_, out := m.report(ctx, ferr, fault.Context{Type: ContextFetch, PaneID: id, Operation: "refresh", Snapshot: m.lastData(e)})
		if out.Action == fault.ActionRetry && ctx.Err() == nil {
			m.logger.Debug("pane refresh retry", "pane", id, "attempt", out.Attempt, "error", ferr)
			continue
		}
		m.fail(e, ferr)
		return fmt.Errorf("pane: refresh %q: %w", id, ferr)
	}
}

// ToggleCollapse flips a collapsible pane's collapsed flag. It returns false
// for an unknown or non-collapsible pane.
func (m *Manager) ToggleCollapse(id string) bool {
	m.mu.Lock()
	e, ok := m.panes[id]
	if !ok || !e.cfg.Collapsible {
		m.mu.Unlock()
		return false
	}
	e.collapsed = !e.collapsed
	collapsed := e.collapsed
	var trs []Transition
	if e.state != StateError && e.state != StateUpdating {
		trs = m.setStateLocked(e, e.restStateCollapseFirst())
	}
	m.mu.Unlock()
	m.notify(trs)

	kind := events.PaneExpanded
	if collapsed {
		kind = events.PaneCollapsed
	}
	m.bus.Emit(events.New(kind, id).WithPane(id))
	return true
}

// restStateCollapseFirst shows a freshly collapsed pane as collapsed even
// while it holds focus.
func (e *entry) restStateCollapseFirst() State {
	if e.collapsed {
		return StateCollapsed
	}
	return e.restState()
}

// SetFocus sets a pane's focused flag. A focused pane that is not in error
// shows as focused; unfocusing returns it to ready or collapsed.
func (m *Manager) SetFocus(id string, focused bool) error {
	m.mu.Lock()
	e, ok := m.panes[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("pane: focus %q: %w", id, ErrUnknownPane)
	}
	e.focused = focused
	var trs []Transition
	switch {
	case e.state == StateError:
	case focused:
		trs = m.setStateLocked(e, StateFocused)
	case e.state == StateFocused:
		trs = m.setStateLocked(e, e.restState())
	}
	m.mu.Unlock()
	m.notify(trs)
	return nil
}

// Focused returns the id of the focused pane, or "".
func (m *Manager) Focused() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, e := range m.panes {
		if e.focused {
			return id
		}
	}
	return ""
}

// Snapshot returns a copy of one pane's state.
func (m *Manager) Snapshot(id string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.panes[id]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Snapshots returns every pane's state ordered by id.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	out := make([]Snapshot, 0, len(m.panes))
	for _, e := range m.panes {
		out = append(out, e.snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IDs returns registered pane ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.panes))
	for id := range m.panes {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Has reports whether id is registered.
func (m *Manager) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.panes[id]
	return ok
}

// Count returns the number of registered panes without locking.
func (m *Manager) Count() int { return int(m.count.Load()) }

// Subscribe registers fn for every state transition. An unregistered pane
// is reported with an empty To state.
func (m *Manager) Subscribe(fn func(Transition)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

// WaitIdle blocks until background initializations have finished.
func (m *Manager) WaitIdle() { m.wg.Wait() }

// Close stops the debounce timer, cancels background work and waits for it.
// Queued updates are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.timer.Close()
	m.wg.Wait()
	m.qmu.Lock()
	m.queue = nil
	m.qmu.Unlock()
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.panes[id]
	if !ok {
		return nil, fmt.Errorf("pane: %w %q", ErrUnknownPane, id)
	}
	return e, nil
}

func (m *Manager) lastData(e *entry) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return e.data
}

func (m *Manager) setStateLocked(e *entry, s State) []Transition {
	if e.state == s {
		return nil
	}
	tr := Transition{ID: e.id, From: e.state, To: s, Time: m.now()}
	e.state = s
	return []Transition{tr}
}

func (m *Manager) notify(trs []Transition) {
	if len(trs) == 0 {
		return
	}
	m.subMu.RLock()
	subs := make([]func(Transition), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.RUnlock()
	for _, tr := range trs {
		for _, fn := range subs {
			fn(tr)
		}
		m.bus.Emit(events.New(events.PaneStateChanged, string(tr.To)).
			WithPane(tr.ID).
			WithAttr("from", string(tr.From)))
	}
}
