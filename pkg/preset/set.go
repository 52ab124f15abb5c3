package preset

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknown is returned for a preset name that is not in the set.
var ErrUnknown = errors.New("unknown preset")

// Set is an immutable table of presets ordered by ascending minimum width.
type Set struct {
	byName  map[string]Preset
	ordered []string
}

// NewSet validates presets and builds a set. Later presets with the same
// name replace earlier ones.
func NewSet(presets ...Preset) (*Set, error) {
	s := &Set{byName: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		s.byName[p.Name] = p.Clone()
	}
	for name := range s.byName {
		s.ordered = append(s.ordered, name)
	}
	sort.Slice(s.ordered, func(i, j int) bool {
		a, b := s.byName[s.ordered[i]], s.byName[s.ordered[j]]
		if a.MinWidth != b.MinWidth {
			return a.MinWidth < b.MinWidth
		}
		if a.MinHeight != b.MinHeight {
			return a.MinHeight < b.MinHeight
		}
		return a.Name < b.Name
	})
	return s, nil
}

// DefaultSet returns the built-in presets.
func DefaultSet() *Set {
	s, err := NewSet(Builtins()...)
	if err != nil {
		panic(fmt.Sprintf("preset: invalid built-in: %v", err))
	}
	return s
}

// WithCustom returns the built-ins extended (or overridden) by custom.
func WithCustom(custom ...Preset) (*Set, error) {
	return NewSet(append(Builtins(), custom...)...)
}

// Get returns a copy of the named preset.
func (s *Set) Get(name string) (Preset, bool) {
	p, ok := s.byName[name]
	if !ok {
		return Preset{}, false
	}
	return p.Clone(), true
}

// Names returns preset names ordered by ascending minimum width.
func (s *Set) Names() []string {
	return append([]string(nil), s.ordered...)
}

// Len returns the number of presets.
func (s *Set) Len() int { return len(s.ordered) }

// At returns the n-th preset (1-based) in ascending minimum width order.
// Number keys select presets through this.
func (s *Set) At(n int) (Preset, bool) {
	if n < 1 || n > len(s.ordered) {
		return Preset{}, false
	}
	return s.Get(s.ordered[n-1])
}

// Resolve returns the preset to display for a request. When the requested
// preset does not fit, the first preset in ascending minimum width order
// that fits is used; when none fits, the smallest built-in is used.
// substituted reports whether the result differs from the request.
func (s *Set) Resolve(name string, width, height int) (p Preset, substituted bool, err error) {
	req, ok := s.Get(name)
	if !ok {
		return Preset{}, false, fmt.Errorf("preset: %w %q", ErrUnknown, name)
	}
	if req.Fits(width, height) {
		return req, false, nil
	}
	for _, n := range s.ordered {
		if c := s.byName[n]; c.Fits(width, height) {
			return c.Clone(), c.Name != name, nil
		}
	}
	fallback := Smallest()
	return fallback, fallback.Name != name, nil
}
