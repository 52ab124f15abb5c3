// Package perf measures the engine against its latency and resource budgets.
// Named timers feed per-bucket sample rings, memory is sampled periodically,
// and a weighted health score summarises how close the engine is running to
// its targets. Crossing a fraction of any target raises an alert event.
//
// All unexported helpers are prefixed with "pm" to avoid naming conflicts.
package perf

import "time"

// Bucket groups samples that share a budget.
type Bucket string

const (
	BucketRender   Bucket = "render"
	BucketKeyboard Bucket = "keyboard"
	BucketUpdate   Bucket = "update"
	BucketTool     Bucket = "external_tool"
	BucketMemory   Bucket = "memory"
	BucketStartup  Bucket = "startup"
)

// Targets holds the budgets every measurement is compared against.
type Targets struct {
	// Render is the maximum time to produce one frame.
	Render time.Duration

	// Keyboard is the maximum time to dispatch one key press.
	Keyboard time.Duration

	// Update is the maximum time to apply one pane update.
	Update time.Duration

	// MemoryBytes is the resident memory ceiling.
	MemoryBytes uint64

	// ToolSuccessRate is the minimum fraction of external tool calls that
	// must succeed, between 0 and 1.
	ToolSuccessRate float64

	// Startup is the maximum time from construction to first usable frame.
	Startup time.Duration
}

// DefaultTargets returns the budgets used when none are configured.
func DefaultTargets() Targets {
	return Targets{
		Render:          16 * time.Millisecond,
		Keyboard:        50 * time.Millisecond,
		Update:          100 * time.Millisecond,
		MemoryBytes:     100 * 1024 * 1024,
		ToolSuccessRate: 0.95,
		Startup:         2 * time.Second,
	}
}

// latency returns the duration budget for a timed bucket, or zero when the
// bucket has none.
func (t Targets) latency(b Bucket) time.Duration {
	switch b {
	case BucketRender:
		return t.Render
	case BucketKeyboard:
		return t.Keyboard
	case BucketUpdate:
		return t.Update
	case BucketStartup:
		return t.Startup
	}
	return 0
}

// Config tunes a Monitor. Zero values are replaced by defaults.
type Config struct {
	// MaxSamples bounds each bucket's sample ring.
	MaxSamples int

	// AlertThreshold is the fraction of a target at which an alert fires.
	AlertThreshold float64

	// SampleInterval is the period of the background memory sampler.
	SampleInterval time.Duration

	// TrackMemory enables the background memory sampler.
	TrackMemory bool

	// ErrorWindow is how far back recorded errors count against health.
	ErrorWindow time.Duration

	// ErrorBudget is the number of errors within ErrorWindow that drives
	// the error score to zero.
	ErrorBudget int

	Targets Targets
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		MaxSamples:     100,
		AlertThreshold: 0.8,
		SampleInterval: 5 * time.Second,
		TrackMemory:    true,
		ErrorWindow:    time.Minute,
		ErrorBudget:    10,
		Targets:        DefaultTargets(),
	}
}

func (c Config) pmDefaults() Config {
	d := DefaultConfig()
	if c.MaxSamples <= 0 {
		c.MaxSamples = d.MaxSamples
	}
	if c.AlertThreshold <= 0 || c.AlertThreshold > 1 {
		c.AlertThreshold = d.AlertThreshold
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = d.SampleInterval
	}
	if c.ErrorWindow <= 0 {
		c.ErrorWindow = d.ErrorWindow
	}
	if c.ErrorBudget <= 0 {
		c.ErrorBudget = d.ErrorBudget
	}
	if c.Targets.Render <= 0 {
		c.Targets.Render = d.Targets.Render
	}
	if c.Targets.Keyboard <= 0 {
		c.Targets.Keyboard = d.Targets.Keyboard
	}
	if c.Targets.Update <= 0 {
		c.Targets.Update = d.Targets.Update
	}
	if c.Targets.MemoryBytes == 0 {
		c.Targets.MemoryBytes = d.Targets.MemoryBytes
	}
	if c.Targets.ToolSuccessRate <= 0 || c.Targets.ToolSuccessRate > 1 {
		c.Targets.ToolSuccessRate = d.Targets.ToolSuccessRate
	}
	if c.Targets.Startup <= 0 {
		c.Targets.Startup = d.Targets.Startup
	}
	return c
}
