package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gitlab.com/tinyland/lab/flowdeck/pkg/debounce"
	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
	"gitlab.com/tinyland/lab/flowdeck/pkg/fault"
	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
	"gitlab.com/tinyland/lab/flowdeck/pkg/perf"
)

// ContextWatcher is the fault context type for watcher failures.
const ContextWatcher = "watcher"

var (
	// ErrMissingDirectory is returned by Initialize when a required
	// directory does not exist.
	ErrMissingDirectory = errors.New("required directory missing")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("watcher closed")
)

// Sink receives pane updates. *pane.Manager satisfies it.
type Sink interface {
	IDs() []string
	ApplyBatch(ctx context.Context, updates []pane.Update) pane.BatchResult
}

// Loader produces the data for one pane from the changes that targeted
// it. Without a Loader, panes are refreshed from their own providers.
type Loader func(ctx context.Context, paneID string, changes []ChangeEvent) (any, error)

// Status summarises watcher health.
type Status struct {
	Active   int
	Total    int
	Inactive []string
	Errors   int
	Pending  int
}

// ErrorEntry is one retained watcher failure.
type ErrorEntry struct {
	Route string
	Err   error
	Time  time.Time
}

type watch struct {
	route  Route
	target string
	dir    string
	file   bool
	fsw    *fsnotify.Watcher
	active bool
}

// Watcher watches the routed paths under a root directory.
type Watcher struct {
	cfg     Config
	sink    Sink
	loader  Loader
	faults  *fault.Handler
	monitor *perf.Monitor
	bus     *events.Bus
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	timer  *debounce.Timer

	mu      sync.Mutex
	root    string
	watches []*watch
	pending map[string]ChangeEvent
	order   []string
	errs    []ErrorEntry
	onBatch []func(Report)
	closed  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithBus publishes watcher events to bus.
func WithBus(bus *events.Bus) Option {
	return func(w *Watcher) { w.bus = bus }
}

// WithFaults reports watcher and load failures to h.
func WithFaults(h *fault.Handler) Option {
	return func(w *Watcher) { w.faults = h }
}

// WithMonitor samples memory on health checks and times batches.
func WithMonitor(m *perf.Monitor) Option {
	return func(w *Watcher) { w.monitor = m }
}

// WithLoader sets how pane data is produced from changes.
func WithLoader(l Loader) Option {
	return func(w *Watcher) { w.loader = l }
}

// WithSleep overrides the wait between watcher retries.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Watcher) { w.sleep = fn }
}

// New creates a watcher that feeds sink. Nothing is watched until
// Initialize, but Inject works at once.
func New(cfg Config, sink Sink, opts ...Option) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		cfg:     cfg.withDefaults(),
		sink:    sink,
		logger:  slog.Default(),
		now:     time.Now,
		sleep:   sleepContext,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]ChangeEvent),
	}
	for _, o := range opts {
		o(w)
	}
	w.timer = debounce.New(w.cfg.DebounceWindow, func() { w.Process(w.ctx) })
	return w
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config returns the effective configuration.
func (w *Watcher) Config() Config { return w.cfg }

// OnBatch registers fn to receive a report after every processed batch.
func (w *Watcher) OnBatch(fn func(Report)) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.onBatch = append(w.onBatch, fn)
	w.mu.Unlock()
}

// Initialize checks the required directories under root and starts one
// fsnotify watcher per route. When a required directory is missing it
// returns ErrMissingDirectory and watches nothing. Routes whose watcher
// cannot be started after retries are marked inactive; that is not an
// error.
func (w *Watcher) Initialize(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("watcher: resolve root: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("watcher: %w: %s", ErrMissingDirectory, abs)
	}
	for _, req := range w.cfg.Required {
		dir := filepath.Join(abs, filepath.FromSlash(req))
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("watcher: %w: %s (create it or point --root at a workflow directory)", ErrMissingDirectory, dir)
		}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.root = abs
	w.mu.Unlock()

	for _, r := range w.cfg.Routes {
		wt := &watch{route: r, target: filepath.Join(abs, filepath.FromSlash(r.Path))}
		w.mu.Lock()
		w.watches = append(w.watches, wt)
		w.mu.Unlock()
		if w.start(ctx, wt) {
			w.run(wt)
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		t := time.NewTicker(w.cfg.HealthInterval)
		defer t.Stop()
		for {
			select {
			case <-w.ctx.Done():
				return
			case <-t.C:
				w.HealthCheck(w.ctx)
			}
		}
	}()

	st := w.Status()
	w.logger.Info("watcher initialized", "root", abs, "active", st.Active, "total", st.Total)
	return nil
}

// start creates the fsnotify watcher for wt, retrying up to MaxRetries
// times. It reports whether the watch is active.
func (w *Watcher) start(ctx context.Context, wt *watch) bool {
	var lastErr error
	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := w.sleep(ctx, w.cfg.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}
		fsw, dir, file, err := w.open(wt.target)
		if err == nil {
			w.mu.Lock()
			wt.fsw, wt.dir, wt.file, wt.active = fsw, dir, file, true
			w.mu.Unlock()
			return true
		}
		lastErr = err
		w.logger.Debug("watch attempt failed", "route", wt.route.Path, "attempt", attempt+1, "error", err)
	}

	w.mu.Lock()
	wt.active = false
	w.mu.Unlock()
	w.recordError(wt.route.Path, lastErr)
	w.faults.Handle(lastErr, fault.Context{Type: ContextWatcher, Operation: wt.route.Path})
	w.logger.Warn("watcher inactive, panes are manual refresh only",
		"route", wt.route.Path, "panes", wt.route.Panes, "error", lastErr)
	w.bus.Emit(events.New(events.WatcherFailed, wt.route.Path).
		WithAttr("panes", strings.Join(wt.route.Panes, ",")).
		WithAttr("error", fmt.Sprint(lastErr)))
	return false
}

// open watches target when it is a directory, or its parent directory
// when it is a file or does not exist yet.
func (w *Watcher) open(target string) (*fsnotify.Watcher, string, bool, error) {
	dir, file := target, false
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		dir, file = filepath.Dir(target), true
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, "", false, fmt.Errorf("watcher: create: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, "", false, fmt.Errorf("watcher: add %s: %w", dir, err)
	}
	if !file {
		_ = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
			if err == nil && d.IsDir() && p != dir {
				_ = fsw.Add(p)
			}
			return nil
		})
	}
	return fsw, dir, file, nil
}

func (w *Watcher) run(wt *watch) {
	w.mu.Lock()
	fsw := wt.fsw
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if err := fault.Guard(func() error { w.observe(wt, fsw, ev); return nil }); err != nil {
					w.faults.Handle(err, fault.Context{Type: ContextWatcher, Operation: wt.route.Path})
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.restart(wt, err)
				return
			}
		}
	}()
}

// restart replaces a failed fsnotify watcher.
func (w *Watcher) restart(wt *watch, cause error) {
	w.recordError(wt.route.Path, cause)
	w.faults.Handle(cause, fault.Context{Type: ContextWatcher, Operation: wt.route.Path})

	w.mu.Lock()
	old := wt.fsw
	wt.fsw, wt.active = nil, false
	w.mu.Unlock()
	if old != nil {
		old.Close()
	}
	if w.ctx.Err() != nil {
		return
	}
	if w.start(w.ctx, wt) {
		w.logger.Info("watcher restarted", "route", wt.route.Path, "cause", cause)
		w.bus.Emit(events.New(events.WatcherRestarted, wt.route.Path).WithAttr("cause", cause.Error()))
		w.run(wt)
	}
}

func (w *Watcher) observe(wt *watch, fsw *fsnotify.Watcher, ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	if wt.file && name != wt.target && !strings.HasPrefix(name, wt.target+string(filepath.Separator)) {
		return
	}
	var kind Kind
	switch {
	case ev.Has(fsnotify.Create):
		kind = KindAdd
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			kind = KindAddDir
			if !wt.file {
				_ = fsw.Add(name)
			}
		}
	case ev.Has(fsnotify.Write):
		kind = KindModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		kind = KindRemove
		if name == wt.target && !wt.file {
			kind = KindRemoveDir
		}
	default:
		return
	}
	w.Inject(name, kind)
}

// Inject queues a change as if it had been observed. path may be absolute
// under the root or relative to it. It returns false when no route
// matches.
func (w *Watcher) Inject(p string, kind Kind) bool {
	rel := w.relative(p)
	targets := Targets(w.cfg.Routes, rel)
	if len(targets) == 0 {
		return false
	}
	ev := ChangeEvent{
		Path:     rel,
		Kind:     kind,
		Targets:  targets,
		Priority: w.cfg.Patterns.Classify(rel),
		Time:     w.now(),
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	if _, ok := w.pending[rel]; !ok {
		w.order = append(w.order, rel)
	}
	w.pending[rel] = ev
	w.mu.Unlock()

	w.logger.Debug("change queued", "path", rel, "kind", kind, "priority", ev.Priority.String())
	w.timer.Trigger()
	return true
}

func (w *Watcher) relative(p string) string {
	w.mu.Lock()
	root := w.root
	w.mu.Unlock()
	if root != "" && filepath.IsAbs(p) {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	return cleanRel(filepath.ToSlash(p))
}

func (w *Watcher) recordError(route string, err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errs = append(w.errs, ErrorEntry{Route: route, Err: err, Time: w.now()})
	if len(w.errs) > w.cfg.MaxErrors*2 {
		w.errs = w.errs[len(w.errs)-w.cfg.MaxErrors:]
	}
}

// HealthCheck counts active watchers, trims the error history, samples
// memory and scores engine health, which alerts when degraded. It runs
// periodically after Initialize.
func (w *Watcher) HealthCheck(ctx context.Context) Status {
	w.mu.Lock()
	if len(w.errs) > w.cfg.MaxErrors {
		w.errs = append([]ErrorEntry(nil), w.errs[len(w.errs)-w.cfg.MaxErrors:]...)
	}
	w.mu.Unlock()
	if _, err := w.monitor.SampleMemory(ctx); err != nil {
		w.logger.Debug("memory sample failed", "error", err)
	}
	h := w.monitor.CheckHealth()
	st := w.Status()
	w.logger.Debug("watcher health",
		"active", st.Active, "total", st.Total, "errors", st.Errors, "health", h.Overall)
	return st
}

// Status reports watcher counts.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{Total: len(w.watches), Errors: len(w.errs), Pending: len(w.pending)}
	for _, wt := range w.watches {
		if wt.active {
			st.Active++
		} else {
			st.Inactive = append(st.Inactive, wt.route.Path)
		}
	}
	return st
}

// Errors returns the retained failures, oldest first.
func (w *Watcher) Errors() []ErrorEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ErrorEntry(nil), w.errs...)
}

// ManualPanes returns panes that only inactive routes feed; they update
// only on manual refresh.
func (w *Watcher) ManualPanes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	fed := make(map[string]bool)
	for _, wt := range w.watches {
		if wt.active {
			for _, id := range wt.route.Panes {
				fed[id] = true
			}
		}
	}
	seen := make(map[string]bool)
	var out []string
	for _, wt := range w.watches {
		if wt.active {
			continue
		}
		for _, id := range wt.route.Panes {
			if !fed[id] && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Flush processes pending changes now. It reports whether any were
// pending.
func (w *Watcher) Flush() bool { return w.timer.Flush() }

// Close stops the timer, the watchers and every goroutine. Pending changes
// are discarded.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.cancel()
	w.timer.Close()

	var errs []error
	w.mu.Lock()
	for _, wt := range w.watches {
		if wt.fsw != nil {
			errs = append(errs, wt.fsw.Close())
			wt.fsw = nil
		}
		wt.active = false
	}
	w.pending = make(map[string]ChangeEvent)
	w.order = nil
	w.mu.Unlock()

	w.wg.Wait()
	return errors.Join(errs...)
}
