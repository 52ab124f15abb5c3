// Package fault classifies engine failures and applies a recovery strategy
// to each one. Every failure is normalised into a Record, assigned a
// category by keyword, a severity by rule and a strategy by table, kept in
// a bounded history and counted in running statistics.
package fault

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Category is the coarse area a failure belongs to.
type Category string

const (
	CategoryRender       Category = "render"
	CategoryState        Category = "state"
	CategoryKeyboard     Category = "keyboard"
	CategoryExternalTool Category = "external-tool"
	CategoryLayout       Category = "layout"
	CategoryPerformance  Category = "performance"
	CategoryNetwork      Category = "network"
	CategoryValidation   Category = "validation"
	CategoryUnknown      Category = "unknown"
)

// Severity orders failures by impact.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Strategy is the recovery action chosen for a failure.
type Strategy string

const (
	StrategyRetry    Strategy = "retry"
	StrategyFallback Strategy = "fallback"
	StrategyReset    Strategy = "reset"
	StrategyEscalate Strategy = "escalate"
	StrategyIgnore   Strategy = "ignore"
)

// Context types with special meaning for severity.
const (
	TypeUncaught  = "uncaughtException"
	TypeRejection = "unhandledRejection"
)

// Context describes where a failure happened.
type Context struct {
	// Type is a short label for the failing activity, such as
	// "pane_update" or "keyboard". It is searched for category keywords
	// before the error text.
	Type string

	PaneID    string
	Operation string

	// Uncaught marks a failure that escaped every boundary.
	Uncaught bool

	// Rejection marks a failure from an asynchronous task nobody awaited.
	Rejection bool

	// Snapshot is the last good value the caller wants preserved if the
	// fallback strategy applies.
	Snapshot any

	Extra map[string]string
}

// OperationID keys retry budgets and fallback snapshots: the pane id when
// there is one, otherwise the context type. Unrelated failures on the same
// pane share one budget.
func (c Context) OperationID() string {
	if c.PaneID != "" {
		return "pane:" + c.PaneID
	}
	if c.Type != "" {
		return c.Type
	}
	return "unknown"
}

// Record is a normalised, classified failure.
type Record struct {
	ID          string
	Name        string
	Message     string
	Stack       string
	Category    Category
	Severity    Severity
	Strategy    Strategy
	Context     Context
	Time        time.Time
	Recovered   bool
	Handled     bool
	UserMessage string
	Err         error
}

func (r Record) String() string {
	return fmt.Sprintf("[%s/%s] %s: %s", r.Category, r.Severity, r.Name, r.Message)
}

// Error is a named failure. Errors of this type keep their name through
// normalisation, so callers can tag failures explicitly.
type Error struct {
	Name    string
	Message string
	Cause   error
}

// Errorf builds a named error.
func Errorf(name, format string, args ...any) *Error {
	return &Error{Name: name, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Guard runs fn and converts a panic into a *PanicError.
func Guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Name reports a stable name for err. Named errors keep their name; nil
// dereferences are reported as ReferenceError; everything else uses the
// dynamic type name.
func Name(err error) string {
	if err == nil {
		return "Error"
	}
	var named *Error
	if errors.As(err, &named) && named.Name != "" {
		return named.Name
	}
	var n interface{ Name() string }
	if errors.As(err, &n) && n.Name() != "" {
		return n.Name()
	}
	var re runtime.Error
	if errors.As(err, &re) {
		if strings.Contains(re.Error(), "nil pointer") || strings.Contains(re.Error(), "nil map") {
			return "ReferenceError"
		}
		return "RuntimeError"
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return "PanicError"
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "Error"
	}
	return t.Name()
}

// Stack returns the captured stack for err, if any.
func Stack(err error) string {
	var pe *PanicError
	if errors.As(err, &pe) {
		return string(pe.Stack)
	}
	var st interface{ Stack() string }
	if errors.As(err, &st) {
		return st.Stack()
	}
	return ""
}
