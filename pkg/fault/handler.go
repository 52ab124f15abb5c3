package fault

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
)

// ErrorRecorder receives a count of every handled error. *perf.Monitor
// satisfies it.
type ErrorRecorder interface {
	RecordError()
}

// Config tunes a Handler. Zero values take defaults.
type Config struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxHistory int
}

// DefaultConfig returns the handler defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, RetryDelay: time.Second, MaxHistory: 100}
}

// Action is what a caller should do after recovery was attempted.
type Action string

const (
	ActionNone     Action = "none"
	ActionRetry    Action = "retry"
	ActionGaveUp   Action = "gave_up"
	ActionFallback Action = "fallback"
	ActionReset    Action = "reset"
	ActionEscalate Action = "escalate"
)

// Outcome reports the result of AttemptRecovery.
type Outcome struct {
	Action      Action
	OperationID string
	Attempt     int
	Recovered   bool
}

// Stats are derived counters over every handled error, not only the
// retained history.
type Stats struct {
	Total        int
	Recovered    int
	ByCategory   map[Category]int
	BySeverity   map[Severity]int
	RecoveryRate float64
}

// Handler normalises, classifies and recovers from failures. A nil
// *Handler logs nothing and recovers nothing.
type Handler struct {
	cfg      Config
	logger   *slog.Logger
	bus      *events.Bus
	recorder ErrorRecorder
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	history    []Record
	retries    map[string]int
	snapshots  map[string]any
	total      int
	recovered  int
	byCategory map[Category]int
	bySeverity map[Severity]int
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithBus publishes error lifecycle events.
func WithBus(bus *events.Bus) Option {
	return func(h *Handler) { h.bus = bus }
}

// WithRecorder forwards an error count to r for health scoring.
func WithRecorder(r ErrorRecorder) Option {
	return func(h *Handler) { h.recorder = r }
}

// WithSleep overrides the retry wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(h *Handler) { h.sleep = fn }
}

// New creates a handler.
func New(cfg Config, opts ...Option) *Handler {
	d := DefaultConfig()
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = d.MaxHistory
	}
	h := &Handler{
		cfg:        cfg,
		logger:     slog.Default(),
		now:        time.Now,
		sleep:      sleepContext,
		retries:    make(map[string]int),
		snapshots:  make(map[string]any),
		byCategory: make(map[Category]int),
		bySeverity: make(map[Severity]int),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Handle normalises and classifies err, records it and returns the record.
// Failures whose strategy is ignore are marked recovered immediately.
func (h *Handler) Handle(err error, c Context) Record {
	name, msg, stack := Name(err), "", Stack(err)
	if err != nil {
		msg = err.Error()
	}
	cl := Classify(name, msg, stack, c)
	rec := Record{
		ID:          uuid.NewString(),
		Name:        name,
		Message:     msg,
		Stack:       stack,
		Category:    cl.Category,
		Severity:    cl.Severity,
		Strategy:    cl.Strategy,
		Context:     c,
		UserMessage: cl.UserMessage,
		Err:         err,
	}
	if h == nil {
		rec.Time = time.Now()
		return rec
	}
	rec.Time = h.now()
	if rec.Strategy == StrategyIgnore {
		rec.Handled = true
		rec.Recovered = true
	}

	h.mu.Lock()
	h.total++
	h.byCategory[rec.Category]++
	h.bySeverity[rec.Severity]++
	if rec.Recovered {
		h.recovered++
	}
	h.history = append(h.history, rec)
	if len(h.history) > h.cfg.MaxHistory {
		h.history = h.history[len(h.history)-h.cfg.MaxHistory:]
	}
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.RecordError()
	}
	h.logger.Warn("error handled",
		"id", rec.ID,
		"name", rec.Name,
		"category", rec.Category,
		"severity", rec.Severity.String(),
		"strategy", rec.Strategy,
		"pane", c.PaneID,
		"error", msg,
	)
	h.bus.Emit(events.New(events.ErrorOccurred, rec.UserMessage).
		WithPane(c.PaneID).
		WithAttr("id", rec.ID).
		WithAttr("category", string(rec.Category)).
		WithAttr("severity", rec.Severity.String()))
	return rec
}

// HandleAndRecover is Handle followed by AttemptRecovery.
func (h *Handler) HandleAndRecover(ctx context.Context, err error, c Context) (Record, Outcome) {
	rec := h.Handle(err, c)
	out := h.AttemptRecovery(ctx, &rec)
	return rec, out
}

// AttemptRecovery executes the record's strategy and updates the record and
// the stored history entry.
func (h *Handler) AttemptRecovery(ctx context.Context, rec *Record) Outcome {
	opID := rec.Context.OperationID()
	out := Outcome{Action: ActionNone, OperationID: opID}
	if h == nil {
		return out
	}

	switch rec.Strategy {
	case StrategyRetry:
		h.mu.Lock()
		n := h.retries[opID]
		if n >= h.cfg.MaxRetries {
			h.mu.Unlock()
			out.Action = ActionGaveUp
			out.Attempt = n
			h.logger.Error("retries exhausted", "op", opID, "attempts", n, "error", rec.Message)
			break
		}
		h.retries[opID] = n + 1
		h.mu.Unlock()
		out.Attempt = n + 1
		if err := h.sleep(ctx, h.cfg.RetryDelay); err != nil {
			out.Action = ActionGaveUp
			break
		}
		out.Action = ActionRetry
		out.Recovered = true

	case StrategyFallback:
		h.mu.Lock()
		if rec.Context.Snapshot != nil {
			h.snapshots[opID] = rec.Context.Snapshot
		}
		h.mu.Unlock()
		out.Action = ActionFallback
		out.Recovered = true

	case StrategyReset:
		h.mu.Lock()
		delete(h.snapshots, opID)
		delete(h.retries, opID)
		h.mu.Unlock()
		out.Action = ActionReset
		out.Recovered = true

	case StrategyEscalate:
		out.Action = ActionEscalate
		h.logger.Error("unrecoverable error",
			"id", rec.ID, "name", rec.Name, "category", rec.Category, "pane", rec.Context.PaneID, "error", rec.Message)
		h.bus.Emit(events.New(events.ErrorEscalated, rec.Message).
			WithPane(rec.Context.PaneID).
			WithAttr("id", rec.ID).
			WithAttr("category", string(rec.Category)))

	default:
		out.Recovered = rec.Recovered
	}

	wasRecovered := rec.Recovered
	rec.Handled = true
	rec.Recovered = out.Recovered
	h.mu.Lock()
	if out.Recovered && !wasRecovered {
		h.recovered++
	} else if !out.Recovered && wasRecovered {
		h.recovered--
	}
	for i := len(h.history) - 1; i >= 0; i-- {
		if h.history[i].ID == rec.ID {
			h.history[i].Handled = true
			h.history[i].Recovered = out.Recovered
			break
		}
	}
	h.mu.Unlock()

	if out.Recovered && rec.Strategy != StrategyIgnore {
		h.bus.Emit(events.New(events.ErrorRecovered, string(out.Action)).
			WithPane(rec.Context.PaneID).
			WithAttr("id", rec.ID).
			WithAttr("attempt", out.Attempt))
	}
	return out
}

// ResetRetries clears the retry budget for an operation after it succeeds.
func (h *Handler) ResetRetries(opID string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	delete(h.retries, opID)
	h.mu.Unlock()
}

// Retries returns the retry count for an operation.
func (h *Handler) Retries(opID string) int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.retries[opID]
}

// SaveSnapshot stores v as the fallback value for an operation.
func (h *Handler) SaveSnapshot(opID string, v any) {
	if h == nil || v == nil {
		return
	}
	h.mu.Lock()
	h.snapshots[opID] = v
	h.mu.Unlock()
}

// Snapshot returns the fallback value stored for an operation.
func (h *Handler) Snapshot(opID string) (any, bool) {
	if h == nil {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.snapshots[opID]
	return v, ok
}

// History returns retained records, oldest first.
func (h *Handler) History() []Record {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Record(nil), h.history...)
}

// Stats returns counts by category and severity and the recovery rate.
func (h *Handler) Stats() Stats {
	s := Stats{ByCategory: map[Category]int{}, BySeverity: map[Severity]int{}}
	if h == nil {
		return s
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	s.Total = h.total
	s.Recovered = h.recovered
	for k, v := range h.byCategory {
		s.ByCategory[k] = v
	}
	for k, v := range h.bySeverity {
		s.BySeverity[k] = v
	}
	if h.total > 0 {
		s.RecoveryRate = float64(h.recovered) / float64(h.total)
	}
	return s
}
