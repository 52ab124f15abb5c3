// Package engine assembles the layout manager, pane manager, key
// navigator, change watcher, fault handler and performance monitor into
// one service with an explicit Init and Shutdown. Hosts drive it with
// HandleKey and Resize and draw whatever Frame returns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/flowdeck/pkg/config"
	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
	"gitlab.com/tinyland/lab/flowdeck/pkg/fault"
	"gitlab.com/tinyland/lab/flowdeck/pkg/keys"
	"gitlab.com/tinyland/lab/flowdeck/pkg/layout"
	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
	"gitlab.com/tinyland/lab/flowdeck/pkg/perf"
	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
	"gitlab.com/tinyland/lab/flowdeck/pkg/render"
	"gitlab.com/tinyland/lab/flowdeck/pkg/source"
	"gitlab.com/tinyland/lab/flowdeck/pkg/terminal"
	"gitlab.com/tinyland/lab/flowdeck/pkg/watcher"
)

// Titles for the built-in panes.
var paneTitles = map[string]string{
	preset.PaneProgress:     "Progress",
	preset.PaneTasks:        "Tasks",
	preset.PaneCapabilities: "Capabilities",
	preset.PaneStatus:       "Status",
	preset.PaneLogs:         "Logs",
}

// Engine is the composed layout engine.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	bus     *events.Bus
	ownBus  bool
	faults  *fault.Handler
	monitor *perf.Monitor
	layout  *layout.Manager
	panes   *pane.Manager
	nav     *keys.Navigator
	watcher *watcher.Watcher

	providers map[string]pane.Provider
	configs   map[string]pane.Config
	width     int
	height    int
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	quit   chan bool

	mu      sync.Mutex
	started bool
	stopped bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by every service.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBus publishes events to bus. The caller keeps ownership of it.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithProvider sets the data source for a pane, replacing the default.
func WithProvider(id string, p pane.Provider) Option {
	return func(e *Engine) {
		if e.providers == nil {
			e.providers = make(map[string]pane.Provider)
		}
		e.providers[id] = p
	}
}

// WithPaneConfig sets the configuration a pane is registered with.
func WithPaneConfig(id string, cfg pane.Config) Option {
	return func(e *Engine) {
		if e.configs == nil {
			e.configs = make(map[string]pane.Config)
		}
		e.configs[id] = cfg
	}
}

// WithSize fixes the terminal size instead of measuring it.
func WithSize(width, height int) Option {
	return func(e *Engine) { e.width, e.height = width, height }
}

// New builds every service from cfg. Nothing runs until Init.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		quit:   make(chan bool, 1),
	}
	for _, o := range opts {
		o(e)
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	if e.bus == nil {
		e.bus = events.NewBus(256, e.logger)
		e.ownBus = true
	}

	presets, err := cfg.PresetSet()
	if err != nil {
		return nil, err
	}
	if e.width <= 0 || e.height <= 0 {
		size := terminal.Resolve(terminal.GetSize(), e.width, e.height)
		e.width, e.height = size.Width, size.Height
	}

	e.monitor = perf.New(perf.Config{
		MaxSamples:     cfg.Performance.MaxSamples,
		AlertThreshold: cfg.Performance.AlertThreshold,
		SampleInterval: cfg.Performance.SampleInterval.Duration,
		TrackMemory:    cfg.Performance.TrackMemory,
	}, perf.WithLogger(e.logger), perf.WithBus(e.bus))

	retries := cfg.Errors.RetryAttempts
	if retries == 0 {
		// fault.New reads zero as "use the default"
		retries = -1
	}
	e.faults = fault.New(fault.Config{
		MaxRetries: retries,
		RetryDelay: cfg.Errors.RetryDelay.Duration,
		MaxHistory: cfg.Errors.MaxHistory,
	}, fault.WithLogger(e.logger), fault.WithBus(e.bus), fault.WithRecorder(e.monitor))

	e.layout, err = layout.NewManager(presets, cfg.General.Preset, e.width, e.height,
		layout.WithLogger(e.logger), layout.WithBus(e.bus))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.panes = pane.NewManager(pane.ManagerConfig{
		DebounceWindow: cfg.Panes.Debounce.Duration,
		MaxConcurrent:  cfg.Panes.MaxConcurrent,
	},
		pane.WithLogger(e.logger),
		pane.WithBus(e.bus),
		pane.WithFaults(e.faults),
		pane.WithMonitor(e.monitor),
		pane.WithMembership(func(id string) bool { return e.layout.Geometry().Has(id) }),
	)

	e.nav = keys.NewNavigator(e.layout, e.panes,
		keys.WithLogger(e.logger),
		keys.WithBus(e.bus),
		keys.WithFaults(e.faults),
		keys.WithMonitor(e.monitor),
	)
	e.nav.OnQuit(func(force bool) {
		select {
		case e.quit <- force:
		default:
		}
	})

	if cfg.Watcher.Enabled {
		wc, err := cfg.WatcherConfig()
		if err != nil {
			return nil, err
		}
		e.watcher = watcher.New(wc, e.panes,
			watcher.WithLogger(e.logger),
			watcher.WithBus(e.bus),
			watcher.WithFaults(e.faults),
			watcher.WithMonitor(e.monitor),
		)
	}

	defaults := source.New(cfg.General.Root).Providers()
	defaults[preset.PaneStatus] = pane.FetchFunc(e.statusLines)
	for id, p := range defaults {
		if _, ok := e.providers[id]; !ok {
			if e.providers == nil {
				e.providers = make(map[string]pane.Provider)
			}
			e.providers[id] = p
		}
	}

	e.layout.OnInvalidate(e.syncPanes)
	return e, nil
}

// Init registers the visible panes, starts the monitor and the watcher.
// A missing workflow directory fails the start.
func (e *Engine) Init(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	start := e.now()
	e.monitor.Start(e.ctx)
	e.syncPanes(e.layout.Geometry())
	e.nav.SyncFocus()

	if e.watcher != nil {
		if err := e.watcher.Initialize(ctx, e.cfg.General.Root); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		if manual := e.watcher.ManualPanes(); len(manual) > 0 {
			e.logger.Warn("panes without a live watcher", "panes", manual)
		}
	} else {
		// the watcher scores health on its own tick
		e.every(e.cfg.Watcher.HealthInterval.Duration, func() { e.monitor.CheckHealth() })
	}
	e.every(e.cfg.Panes.RefreshInterval.Duration, func() { e.panes.RefreshAll(e.ctx) })

	d := e.now().Sub(start)
	e.monitor.RecordStartup(d)
	g := e.layout.Geometry()
	e.logger.Info("engine started",
		"preset", g.Preset, "width", g.Width, "height", g.Height, "panes", len(g.Panes), "startup", d)
	return nil
}

// every runs fn each period until Shutdown. A non-positive period runs
// nothing.
func (e *Engine) every(period time.Duration, fn func()) {
	if period <= 0 {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-e.ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}

// syncPanes makes the registered panes match g. It runs after every
// layout change.
func (e *Engine) syncPanes(g layout.Geometry) {
	if removed := e.panes.Prune(g.IDs()); len(removed) > 0 {
		e.logger.Debug("panes removed", "panes", removed)
	}
	for _, id := range g.IDs() {
		if e.panes.Has(id) {
			continue
		}
		err := e.panes.Register(e.ctx, id, e.providers[id], e.paneConfig(id))
		if err != nil && !errors.Is(err, pane.ErrDuplicatePane) {
			e.logger.Warn("pane register failed", "pane", id, "error", err)
		}
	}
}

func (e *Engine) paneConfig(id string) pane.Config {
	if c, ok := e.configs[id]; ok {
		return c
	}
	title := paneTitles[id]
	if title == "" {
		title = id
	}
	return pane.Config{
		Title:       title,
		Collapsible: true,
		Refreshable: e.providers[id] != nil,
	}
}

// HandleKey dispatches one key press.
func (e *Engine) HandleKey(raw string, mods keys.Modifiers) bool {
	return e.nav.HandleKeyPress(raw, mods)
}

// Resize recomputes the layout for a new terminal size.
func (e *Engine) Resize(width, height int) error {
	if _, err := e.layout.Resize(width, height); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.nav.SyncFocus()
	return nil
}

// Quit delivers true for a forced quit and false for a normal one.
func (e *Engine) Quit() <-chan bool { return e.quit }

// Frame returns what should be drawn now.
func (e *Engine) Frame() render.Frame {
	g := e.layout.Geometry()
	snaps := e.panes.Snapshots()
	byID := make(map[string]pane.Snapshot, len(snaps))
	for _, s := range snaps {
		byID[s.ID] = s
	}
	return render.Frame{
		Title:    "flowdeck",
		Geometry: g,
		Panes:    byID,
		Presets:  e.layout.Presets().Names(),
		Active:   g.Preset,
		Status:   e.status(),
		Help:     e.nav.HelpVisible(),
	}
}

// Draw renders f with r and records the time taken against the render
// target.
func (e *Engine) Draw(r render.Renderer, f render.Frame) error {
	var err error
	e.monitor.Track("render.frame", func() { err = r.Render(f) })
	return err
}

func (e *Engine) status() string {
	h := e.monitor.HealthStatus()
	s := fmt.Sprintf("health %.0f%%", h.Overall*100)
	if h.Degraded {
		s += " (degraded)"
	}
	if e.watcher != nil {
		if st := e.watcher.Status(); st.Total > 0 && st.Active < st.Total {
			s += fmt.Sprintf(" · watch %d/%d", st.Active, st.Total)
		}
	}
	return s
}

// statusLines feeds the status pane.
func (e *Engine) statusLines(context.Context) (any, error) {
	h := e.monitor.HealthStatus()
	fs := e.faults.Stats()
	lines := []string{
		fmt.Sprintf("health       %3.0f%%", h.Overall*100),
		fmt.Sprintf("performance  %3.0f%%", h.Performance*100),
		fmt.Sprintf("memory       %3.0f%%", h.Memory*100),
		fmt.Sprintf("errors       %d (%d recovered)", fs.Total, fs.Recovered),
		fmt.Sprintf("key latency  %s", e.nav.ResponseTime().Round(time.Microsecond)),
	}
	if e.watcher != nil {
		st := e.watcher.Status()
		lines = append(lines, fmt.Sprintf("watchers     %d/%d active", st.Active, st.Total))
		if manual := e.watcher.ManualPanes(); len(manual) > 0 {
			lines = append(lines, fmt.Sprintf("manual       %v", manual))
		}
	}
	return lines, nil
}

// Shutdown stops every service. It is safe to call more than once.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.cancel()
	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	e.panes.Close()
	e.monitor.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("engine: shutdown: %w", ctx.Err()))
	}
	if e.ownBus {
		e.bus.Close()
	}
	e.logger.Info("engine stopped")
	return errors.Join(errs...)
}

// Layout returns the layout manager.
func (e *Engine) Layout() *layout.Manager { return e.layout }

// Panes returns the pane manager.
func (e *Engine) Panes() *pane.Manager { return e.panes }

// Navigator returns the key navigator.
func (e *Engine) Navigator() *keys.Navigator { return e.nav }

// Watcher returns the change watcher, or nil when watching is disabled.
func (e *Engine) Watcher() *watcher.Watcher { return e.watcher }

// Monitor returns the performance monitor.
func (e *Engine) Monitor() *perf.Monitor { return e.monitor }

// Faults returns the fault handler.
func (e *Engine) Faults() *fault.Handler { return e.faults }

// Bus returns the event bus.
func (e *Engine) Bus() *events.Bus { return e.bus }
