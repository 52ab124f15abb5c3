// Package watcher turns filesystem changes under a workflow directory into
// pane refreshes. A static watch table routes changed paths to pane ids;
// each change is given a priority from its file name, debounced, and
// applied tier by tier (high, then medium, then low) through a pane sink.
package watcher

import (
	"fmt"
	"time"
)

// All targets every registered pane, resolved when a batch runs.
const All = "all"

// Priority orders change tiers. Lower values run first.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

// Priorities lists tiers in processing order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Kind is what happened to a path.
type Kind string

const (
	KindAdd       Kind = "add"
	KindModify    Kind = "modify"
	KindRemove    Kind = "remove"
	KindAddDir    Kind = "addDir"
	KindRemoveDir Kind = "removeDir"
)

// ChangeEvent is one classified change. Path is slash separated and
// relative to the watched root. Targets may contain All.
type ChangeEvent struct {
	Path     string
	Kind     Kind
	Targets  []string
	Priority Priority
	Time     time.Time
}
