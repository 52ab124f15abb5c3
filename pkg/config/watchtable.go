package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/flowdeck/pkg/watcher"
)

// WatchTable is the YAML form of the watcher routing table.
//
//	routes:
//	  - path: .workflow/state.json
//	    panes: [progress, tasks]
//	patterns:
//	  high: [state.json, "*.lock"]
//	required: [.workflow]
type WatchTable struct {
	Routes   []watcher.Route   `yaml:"routes"`
	Patterns *watcher.Patterns `yaml:"patterns"`
	Required []string          `yaml:"required"`
}

// ParseWatchTable decodes a YAML watch table. Unknown fields are rejected
// and every route needs a path and at least one pane.
func ParseWatchTable(r io.Reader) (WatchTable, error) {
	var t WatchTable
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return WatchTable{}, fmt.Errorf("config: parse watch table: %w", err)
	}
	for i, rt := range t.Routes {
		if rt.Path == "" {
			return WatchTable{}, fmt.Errorf("%w: watch table route %d: missing path", ErrInvalid, i)
		}
		if len(rt.Panes) == 0 {
			return WatchTable{}, fmt.Errorf("%w: watch table route %q: no panes", ErrInvalid, rt.Path)
		}
	}
	return t, nil
}

// LoadWatchTable reads a YAML watch table from path.
func LoadWatchTable(path string) (WatchTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WatchTable{}, fmt.Errorf("config: read watch table: %w", err)
	}
	t, err := ParseWatchTable(bytes.NewReader(data))
	if err != nil {
		return WatchTable{}, fmt.Errorf("%w (in %s)", err, path)
	}
	return t, nil
}

// WatcherConfig builds the watcher configuration, loading the YAML table
// when one is configured.
func (c *Config) WatcherConfig() (watcher.Config, error) {
	wc := watcher.DefaultConfig()
	wc.DebounceWindow = c.Watcher.Debounce.Duration
	wc.HealthInterval = c.Watcher.HealthInterval.Duration
	wc.MaxErrors = c.Watcher.MaxErrors
	wc.MaxRetries = c.Errors.RetryAttempts
	wc.RetryDelay = c.Errors.RetryDelay.Duration
	if c.Watcher.Table == "" {
		return wc, nil
	}
	t, err := LoadWatchTable(c.Watcher.Table)
	if err != nil {
		return watcher.Config{}, err
	}
	if len(t.Routes) > 0 {
		wc.Routes = t.Routes
	}
	if t.Patterns != nil {
		wc.Patterns = *t.Patterns
	}
	if t.Required != nil {
		wc.Required = t.Required
	}
	return wc, nil
}
