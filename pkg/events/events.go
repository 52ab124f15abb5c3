// Package events carries the discrete notifications the engine produces for
// a host dashboard: focus and preset changes, pane transitions, completed
// update batches, performance alerts, error lifecycle and watcher health.
//
// Publishing never blocks the caller. Events are queued on a buffered channel
// and delivered to subscribers by a single worker goroutine, so subscribers
// observe events in emission order.
package events

import (
	"time"
)

// Kind identifies an event type.
type Kind string

const (
	FocusChanged     Kind = "focus_changed"
	PresetChanged    Kind = "preset_changed"
	PaneCollapsed    Kind = "pane_collapsed"
	PaneExpanded     Kind = "pane_expanded"
	PaneStateChanged Kind = "pane_state_changed"
	BatchCompleted   Kind = "batch_completed"
	PerformanceAlert Kind = "performance_alert"
	ErrorOccurred    Kind = "error_occurred"
	ErrorRecovered   Kind = "error_recovered"
	ErrorEscalated   Kind = "error_escalated"
	WatcherRestarted Kind = "watcher_restarted"
	WatcherFailed    Kind = "watcher_failed"
	UnknownKey       Kind = "unknown_key"
	HelpToggled      Kind = "help_toggled"
	Quit             Kind = "quit"
)

// Event is a single notification. Only the fields relevant to Kind are set;
// Attrs holds anything that does not fit the common fields.
type Event struct {
	Kind    Kind
	Time    time.Time
	PaneID  string
	Preset  string
	Message string
	Attrs   map[string]any
}

// New builds an event stamped with the current time.
func New(kind Kind, message string) Event {
	return Event{Kind: kind, Time: time.Now(), Message: message}
}

// WithPane returns a copy of e addressed to a pane.
func (e Event) WithPane(id string) Event {
	e.PaneID = id
	return e
}

// WithAttr returns a copy of e with an extra attribute.
func (e Event) WithAttr(key string, value any) Event {
	attrs := make(map[string]any, len(e.Attrs)+1)
	for k, v := range e.Attrs {
		attrs[k] = v
	}
	attrs[key] = value
	e.Attrs = attrs
	return e
}

// Attr returns an attribute value, or nil.
func (e Event) Attr(key string) any {
	if e.Attrs == nil {
		return nil
	}
	return e.Attrs[key]
}
