package watcher

import (
	"path"
	"strings"
	"time"
)

// Route sends changes at Path, or below it, to Panes.
type Route struct {
	Path  string   `yaml:"path" toml:"path"`
	Panes []string `yaml:"panes" toml:"panes"`
}

// Patterns assigns priorities by file name. Each entry is a glob matched
// against the base name. An entry without glob metacharacters also
// matches as a substring.
type Patterns struct {
	High   []string `yaml:"high" toml:"high"`
	Medium []string `yaml:"medium" toml:"medium"`
	Low    []string `yaml:"low" toml:"low"`
}

// Config tunes a Watcher. Zero values take defaults.
type Config struct {
	Routes   []Route
	Patterns Patterns
	// Required directories, relative to the root, that must exist before
	// anything is watched.
	Required []string

	DebounceWindow time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	HealthInterval time.Duration
	MaxErrors      int
}

// DefaultRoutes is the watch table for a .workflow directory.
func DefaultRoutes() []Route {
	return []Route{
		{Path: ".workflow/state.json", Panes: []string{"progress", "tasks"}},
		{Path: ".workflow/tasks", Panes: []string{"tasks"}},
		{Path: ".workflow/capabilities", Panes: []string{"capabilities"}},
		{Path: ".workflow/logs", Panes: []string{"logs"}},
		{Path: ".workflow/config", Panes: []string{All}},
	}
}

// DefaultPatterns ranks state and error files high, task and config files
// medium and logs low.
func DefaultPatterns() Patterns {
	return Patterns{
		High:   []string{"state.json", "*.state", "error*", "*.lock"},
		Medium: []string{"task*", "*.yaml", "*.yml", "*.toml", "*.md"},
		Low:    []string{"*.log", "*.tmp"},
	}
}

// DefaultConfig returns the watcher defaults.
func DefaultConfig() Config {
	return Config{
		Routes:         DefaultRoutes(),
		Patterns:       DefaultPatterns(),
		Required:       []string{".workflow"},
		DebounceWindow: 100 * time.Millisecond,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		HealthInterval: 30 * time.Second,
		MaxErrors:      50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Routes == nil {
		c.Routes = d.Routes
	}
	if c.Patterns.High == nil && c.Patterns.Medium == nil && c.Patterns.Low == nil {
		c.Patterns = d.Patterns
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = d.DebounceWindow
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = d.HealthInterval
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = d.MaxErrors
	}
	for i := range c.Routes {
		c.Routes[i].Path = cleanRel(c.Routes[i].Path)
	}
	return c
}

// Classify returns the priority for a file name. Unmatched names are low.
func (p Patterns) Classify(name string) Priority {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	for _, tier := range []struct {
		pri      Priority
		patterns []string
	}{
		{PriorityHigh, p.High},
		{PriorityMedium, p.Medium},
		{PriorityLow, p.Low},
	} {
		for _, pat := range tier.patterns {
			if ok, err := path.Match(pat, base); err == nil && ok {
				return tier.pri
			}
			if pat != "" && !strings.ContainsAny(pat, `*?[\`) && strings.Contains(base, pat) {
				return tier.pri
			}
		}
	}
	return PriorityLow
}

// Targets returns the panes routed from rel, in table order without
// duplicates. A route matches its own path and everything below it.
func Targets(routes []Route, rel string) []string {
	rel = cleanRel(rel)
	seen := make(map[string]bool)
	var out []string
	for _, r := range routes {
		if rel != r.Path && !strings.HasPrefix(rel, r.Path+"/") {
			continue
		}
		for _, id := range r.Panes {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func cleanRel(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "./")
}
