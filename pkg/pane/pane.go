// Package pane owns the lifecycle, state and data of every dashboard pane.
// Panes are registered against the active layout, initialized from an
// optional Provider, updated directly or through a debounced queue, and
// updated in bounded concurrent batches. Every state change is published
// to subscribers.
package pane

import (
	"context"
	"errors"
	"time"
)

// State is a pane's lifecycle state.
type State string

const (
	StateInitializing State = "initializing"
	StateLoading      State = "loading"
	StateReady        State = "ready"
	StateUpdating     State = "updating"
	StateError        State = "error"
	StateCollapsed    State = "collapsed"
	StateFocused      State = "focused"
)

var (
	// ErrUnknownPane is returned for an id that is not registered.
	ErrUnknownPane = errors.New("unknown pane")
	// ErrDuplicatePane is returned when registering an id twice.
	ErrDuplicatePane = errors.New("pane already registered")
	// ErrNotInLayout is returned when registering an id the active preset
	// does not show.
	ErrNotInLayout = errors.New("pane not in active layout")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pane manager closed")
)

// Config is the static description of a pane.
type Config struct {
	Title       string
	Collapsible bool
	Refreshable bool
	Shortcuts   []string
	// Triggers names the change sources that refresh this pane.
	Triggers []string
}

// Provider supplies a pane's data. Init runs once at registration; Fetch
// runs on every refresh.
type Provider interface {
	Init(ctx context.Context) (any, error)
	Fetch(ctx context.Context) (any, error)
}

// FetchFunc adapts a function into a Provider whose Init is a Fetch.
type FetchFunc func(ctx context.Context) (any, error)

func (f FetchFunc) Init(ctx context.Context) (any, error)  { return f(ctx) }
func (f FetchFunc) Fetch(ctx context.Context) (any, error) { return f(ctx) }

// UpdateOptions modifies a single update.
type UpdateOptions struct {
	// Background skips the transient updating state.
	Background bool
}

// Update is one queued or batched pane update. Exactly one source is used:
// Load when set, otherwise the pane's provider when Refresh is set,
// otherwise Data.
type Update struct {
	ID      string
	Data    any
	Load    func(ctx context.Context) (any, error)
	Refresh bool
	Options UpdateOptions
}

// Snapshot is a point-in-time copy of a pane's state.
type Snapshot struct {
	ID          string
	Title       string
	State       State
	Collapsed   bool
	Focused     bool
	Collapsible bool
	Refreshable bool
	HasData     bool
	HasError    bool
	Data        any
	Err         error
	LastUpdate  time.Time
	UpdateCount int
}

// Transition records one state change.
type Transition struct {
	ID   string
	From State
	To   State
	Time time.Time
}

// BatchResult summarises one ApplyBatch call.
type BatchResult struct {
	Applied  []string
	Failed   map[string]error
	Skipped  []string
	Batches  int
	Duration time.Duration
}

type entry struct {
	id       string
	cfg      Config
	provider Provider

	state       State
	data        any
	err         error
	lastUpdate  time.Time
	collapsed   bool
	focused     bool
	updateCount int
}

// restState is where a pane settles when nothing is in progress.
func (e *entry) restState() State {
	switch {
	case e.focused:
		return StateFocused
	case e.collapsed:
		return StateCollapsed
	default:
		return StateReady
	}
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		ID:          e.id,
		Title:       e.cfg.Title,
		State:       e.state,
		Collapsed:   e.collapsed,
		Focused:     e.focused,
		Collapsible: e.cfg.Collapsible,
		Refreshable: e.cfg.Refreshable,
		HasData:     e.data != nil,
		HasError:    e.err != nil,
		Data:        e.data,
		Err:         e.err,
		LastUpdate:  e.lastUpdate,
		UpdateCount: e.updateCount,
	}
}
