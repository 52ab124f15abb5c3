// Package theme holds the colour palettes used to draw frames. A few
// palettes are built in; others can be loaded from a TOML file.
package theme

import (
	"sort"
	"strings"
)

// DefaultName is the palette used when none is configured.
const DefaultName = "default"

// Theme is a palette of hex colours for the dashboard chrome.
type Theme struct {
	Name string

	Foreground string
	Dim        string // hints, tabs, timestamps
	Accent     string // title, active tab

	Border      string // unfocused pane border
	BorderFocus string // focused pane border
	Title       string // pane title text

	StatusOK    string
	StatusWarn  string // loading, updating
	StatusError string

	HelpKey  string
	HelpDesc string
}

var registry = map[string]Theme{}

func init() {
	for _, t := range builtins() {
		registry[strings.ToLower(t.Name)] = t
	}
}

// Get returns a built-in palette by name, ignoring case.
func Get(name string) (Theme, bool) {
	t, ok := registry[strings.ToLower(name)]
	return t, ok
}

// Default returns the default palette.
func Default() Theme {
	return registry[DefaultName]
}

// Names returns the built-in palette names sorted alphabetically.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsFile reports whether ref names a theme file rather than a built-in.
func IsFile(ref string) bool {
	return strings.HasSuffix(ref, ".toml") || strings.ContainsRune(ref, '/')
}

// Resolve returns the palette for ref: empty means the default, a path
// is loaded with LoadFile, anything else must be a built-in name.
func Resolve(ref string) (Theme, error) {
	switch {
	case ref == "":
		return Default(), nil
	case IsFile(ref):
		return LoadFile(ref)
	}
	if t, ok := Get(ref); ok {
		return t, nil
	}
	return Theme{}, unknownError(ref)
}
