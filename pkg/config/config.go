// Package config provides TOML-based configuration for flowdeck.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
	"gitlab.com/tinyland/lab/flowdeck/pkg/theme"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the root configuration.
type Config struct {
	General     GeneralConfig     `toml:"general"`
	Panes       PanesConfig       `toml:"panes"`
	Watcher     WatcherConfig     `toml:"watcher"`
	Errors      ErrorsConfig      `toml:"errors"`
	Performance PerformanceConfig `toml:"performance"`

	// Presets are custom presets declared inline under [[preset]]. They
	// extend or override the built-ins.
	Presets []preset.Preset `toml:"preset"`
}

// GeneralConfig holds startup and logging settings.
type GeneralConfig struct {
	Preset      string `toml:"preset"`
	Root        string `toml:"root"`
	Mode        string `toml:"mode"`
	LogLevel    string `toml:"log_level"`
	LogFile     string `toml:"log_file"`
	PresetsFile string `toml:"presets_file"`

	// Theme is a built-in palette name or the path of a theme file.
	Theme string `toml:"theme"`
}

// PanesConfig tunes the pane update queue.
type PanesConfig struct {
	Debounce        Duration `toml:"debounce"`
	MaxConcurrent   int      `toml:"max_concurrent"`
	RefreshInterval Duration `toml:"refresh_interval"`
}

// WatcherConfig tunes the change watcher. Table names an optional YAML
// watch table that replaces the default routes.
type WatcherConfig struct {
	Enabled        bool     `toml:"enabled"`
	Table          string   `toml:"table"`
	Debounce       Duration `toml:"debounce"`
	HealthInterval Duration `toml:"health_interval"`
	MaxErrors      int      `toml:"max_errors"`
}

// ErrorsConfig tunes fault recovery.
type ErrorsConfig struct {
	RetryAttempts int      `toml:"retry_attempts"`
	RetryDelay    Duration `toml:"retry_delay"`
	MaxHistory    int      `toml:"max_history"`
}

// PerformanceConfig tunes the performance monitor.
type PerformanceConfig struct {
	AlertThreshold float64  `toml:"alert_threshold"`
	MaxSamples     int      `toml:"max_samples"`
	SampleInterval Duration `toml:"sample_interval"`
	TrackMemory    bool     `toml:"track_memory"`
}

// Ranges enforced by Validate.
const (
	MinDebounce        = 10 * time.Millisecond
	MaxDebounce        = 5 * time.Second
	MinConcurrent      = 1
	MaxConcurrent      = 32
	MinHealthInterval  = time.Second
	MaxHealthInterval  = 10 * time.Minute
	MinRefreshInterval = 1000 * time.Millisecond
	MaxRefreshInterval = 60000 * time.Millisecond
	MaxRetryAttempts   = 10
	MaxRetryDelay      = 30 * time.Second
	MinSamples         = 10
	MaxSamples         = 10000
	MinHistory         = 10
	MaxHistory         = 1000
)

// Validate checks every tunable against its allowed range and reports all
// violations at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field string, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalid, field, fmt.Sprintf(format, args...)))
	}
	durRange := func(field string, d Duration, lo, hi time.Duration) {
		if !d.Within(lo, hi) {
			bad(field, "%s outside [%s, %s]", d.Duration, lo, hi)
		}
	}

	if _, err := ParseLevel(c.General.LogLevel); err != nil {
		bad("general.log_level", "%v", err)
	}
	switch c.General.Mode {
	case "", "auto", "static", "live", "interactive":
	default:
		bad("general.mode", "unknown mode %q", c.General.Mode)
	}
	if t := c.General.Theme; t != "" && !theme.IsFile(t) {
		if _, ok := theme.Get(t); !ok {
			bad("general.theme", "unknown theme %q", t)
		}
	}

	durRange("panes.debounce", c.Panes.Debounce, MinDebounce, MaxDebounce)
	if n := c.Panes.MaxConcurrent; n < MinConcurrent || n > MaxConcurrent {
		bad("panes.max_concurrent", "%d outside [%d, %d]", n, MinConcurrent, MaxConcurrent)
	}
	if c.Panes.RefreshInterval.Duration != 0 {
		durRange("panes.refresh_interval", c.Panes.RefreshInterval, MinRefreshInterval, MaxRefreshInterval)
	}

	durRange("watcher.debounce", c.Watcher.Debounce, MinDebounce, MaxDebounce)
	durRange("watcher.health_interval", c.Watcher.HealthInterval, MinHealthInterval, MaxHealthInterval)
	if c.Watcher.MaxErrors < 1 {
		bad("watcher.max_errors", "must be positive, got %d", c.Watcher.MaxErrors)
	}

	if n := c.Errors.RetryAttempts; n < 0 || n > MaxRetryAttempts {
		bad("errors.retry_attempts", "%d outside [0, %d]", n, MaxRetryAttempts)
	}
	durRange("errors.retry_delay", c.Errors.RetryDelay, 0, MaxRetryDelay)
	if n := c.Errors.MaxHistory; n < MinHistory || n > MaxHistory {
		bad("errors.max_history", "%d outside [%d, %d]", n, MinHistory, MaxHistory)
	}

	if a := c.Performance.AlertThreshold; a <= 0 || a > 1 {
		bad("performance.alert_threshold", "%v outside (0, 1]", a)
	}
	if n := c.Performance.MaxSamples; n < MinSamples || n > MaxSamples {
		bad("performance.max_samples", "%d outside [%d, %d]", n, MinSamples, MaxSamples)
	}

	for _, p := range c.Presets {
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: preset %q: %v", ErrInvalid, p.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Merge overlays the non-zero fields of o onto c. Booleans in o only
// take effect when true.
func (c *Config) Merge(o *Config) {
	if o == nil {
		return
	}
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setDur := func(dst *Duration, v Duration) {
		if v.Duration != 0 {
			*dst = v
		}
	}

	setStr(&c.General.Preset, o.General.Preset)
	setStr(&c.General.Root, o.General.Root)
	setStr(&c.General.Mode, o.General.Mode)
	setStr(&c.General.LogLevel, o.General.LogLevel)
	setStr(&c.General.LogFile, o.General.LogFile)
	setStr(&c.General.PresetsFile, o.General.PresetsFile)
	setStr(&c.General.Theme, o.General.Theme)

	setDur(&c.Panes.Debounce, o.Panes.Debounce)
	setInt(&c.Panes.MaxConcurrent, o.Panes.MaxConcurrent)
	setDur(&c.Panes.RefreshInterval, o.Panes.RefreshInterval)

	c.Watcher.Enabled = c.Watcher.Enabled || o.Watcher.Enabled
	setStr(&c.Watcher.Table, o.Watcher.Table)
	setDur(&c.Watcher.Debounce, o.Watcher.Debounce)
	setDur(&c.Watcher.HealthInterval, o.Watcher.HealthInterval)
	setInt(&c.Watcher.MaxErrors, o.Watcher.MaxErrors)

	setInt(&c.Errors.RetryAttempts, o.Errors.RetryAttempts)
	setDur(&c.Errors.RetryDelay, o.Errors.RetryDelay)
	setInt(&c.Errors.MaxHistory, o.Errors.MaxHistory)

	if o.Performance.AlertThreshold != 0 {
		c.Performance.AlertThreshold = o.Performance.AlertThreshold
	}
	setInt(&c.Performance.MaxSamples, o.Performance.MaxSamples)
	setDur(&c.Performance.SampleInterval, o.Performance.SampleInterval)
	c.Performance.TrackMemory = c.Performance.TrackMemory || o.Performance.TrackMemory

	c.Presets = append(c.Presets, o.Presets...)
}

// ParseLevel maps a log level name to a slog level. The empty string is
// info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
