// Package source reads pane data from a workflow directory. Each built-in
// pane has a provider that parses its files on every fetch; there is no
// caching, so a refresh always reflects the disk.
package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
)

// Paths relative to the root.
const (
	StateFile       = ".workflow/state.json"
	TasksDir        = ".workflow/tasks"
	CapabilitiesDir = ".workflow/capabilities"
	LogsDir         = ".workflow/logs"
)

// DefaultTailLines is how many log lines the logs pane shows.
const DefaultTailLines = 50

// Dir reads a workflow directory.
type Dir struct {
	root      string
	tailLines int
}

// Option configures a Dir.
type Option func(*Dir)

// WithTailLines sets how many log lines are kept.
func WithTailLines(n int) Option {
	return func(d *Dir) {
		if n > 0 {
			d.tailLines = n
		}
	}
}

// New returns a reader rooted at root.
func New(root string, opts ...Option) *Dir {
	d := &Dir{root: root, tailLines: DefaultTailLines}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Providers returns a provider for every built-in pane it can feed.
func (d *Dir) Providers() map[string]pane.Provider {
	return map[string]pane.Provider{
		preset.PaneProgress:     pane.FetchFunc(d.Progress),
		preset.PaneTasks:        pane.FetchFunc(d.Tasks),
		preset.PaneCapabilities: pane.FetchFunc(d.Capabilities),
		preset.PaneLogs:         pane.FetchFunc(d.Logs),
	}
}

func (d *Dir) path(rel string) string {
	return filepath.Join(d.root, filepath.FromSlash(rel))
}

// Progress summarises state.json as sorted key: value lines. Nested values
// are shown as compact JSON.
func (d *Dir) Progress(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(d.path(StateFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{"no workflow state yet"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source: read state: %w", err)
	}
	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("source: malformed state.json: %w", err)
	}
	out := make(map[string]string, len(state))
	for k, v := range state {
		switch x := v.(type) {
		case string:
			out[k] = x
		case map[string]any, []any:
			b, _ := json.Marshal(x)
			out[k] = string(b)
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	return out, nil
}

// Task is one entry of the tasks directory.
type Task struct {
	Title  string `yaml:"title" json:"title"`
	Status string `yaml:"status" json:"status"`
}

// Tasks lists the tasks directory, one line per file: "[status] title".
// YAML and JSON files are decoded; Markdown uses its first heading; other
// files show their name.
func (d *Dir) Tasks(ctx context.Context) (any, error) {
	names, err := d.list(TasksDir)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := d.task(filepath.Join(d.path(TasksDir), name))
		if err != nil {
			return nil, err
		}
		if t.Title == "" {
			t.Title = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if t.Status == "" {
			t.Status = "pending"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", t.Status, t.Title))
	}
	if len(lines) == 0 {
		return []string{"no tasks"}, nil
	}
	return lines, nil
}

func (d *Dir) task(p string) (Task, error) {
	var t Task
	data, err := os.ReadFile(p)
	if err != nil {
		return t, fmt.Errorf("source: read task: %w", err)
	}
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return t, fmt.Errorf("source: malformed task %s: %w", filepath.Base(p), err)
		}
	case ".json":
		if err := json.Unmarshal(data, &t); err != nil {
			return t, fmt.Errorf("source: malformed task %s: %w", filepath.Base(p), err)
		}
	case ".md":
		sc := bufio.NewScanner(bytes.NewReader(data))
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); strings.HasPrefix(line, "#") {
				t.Title = strings.TrimSpace(strings.TrimLeft(line, "#"))
				break
			}
		}
	}
	return t, nil
}

// Capability is one entry of the capabilities directory.
type Capability struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Available   *bool  `yaml:"available"`
}

// Capabilities lists declared capabilities, marking unavailable ones.
// Each YAML file may hold one capability or a list of them.
func (d *Dir) Capabilities(ctx context.Context) (any, error) {
	names, err := d.list(CapabilitiesDir)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			lines = append(lines, "• "+name)
			continue
		}
		caps, err := d.capabilities(filepath.Join(d.path(CapabilitiesDir), name))
		if err != nil {
			return nil, err
		}
		for _, c := range caps {
			mark := "•"
			if c.Available != nil && !*c.Available {
				mark = "✗"
			}
			line := mark + " " + c.Name
			if c.Description != "" {
				line += ": " + c.Description
			}
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return []string{"no capabilities declared"}, nil
	}
	return lines, nil
}

func (d *Dir) capabilities(p string) ([]Capability, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("source: read capability: %w", err)
	}
	var list []Capability
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var one Capability
	if err := yaml.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("source: malformed capability %s: %w", filepath.Base(p), err)
	}
	if one.Name == "" {
		one.Name = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}
	return []Capability{one}, nil
}

// Logs returns the last lines of the most recently modified file in the
// logs directory.
func (d *Dir) Logs(ctx context.Context) (any, error) {
	dir := d.path(LogsDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{"no logs"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source: list logs: %w", err)
	}
	var newest string
	var newestMod int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if m := info.ModTime().UnixNano(); newest == "" || m > newestMod {
			newest, newestMod = e.Name(), m
		}
	}
	if newest == "" {
		return []string{"no logs"}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tail(filepath.Join(dir, newest), d.tailLines)
}

func tail(p string, n int) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("source: open log: %w", err)
	}
	defer f.Close()
	ring := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("source: read log: %w", err)
	}
	return ring, nil
}

// list returns sorted regular file names in rel, or nil when it does not
// exist.
func (d *Dir) list(rel string) ([]string, error) {
	entries, err := os.ReadDir(d.path(rel))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source: list %s: %w", rel, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
