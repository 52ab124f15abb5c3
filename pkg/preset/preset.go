// Package preset defines the named pane arrangements the layout engine can
// display. A preset fixes which panes appear, the arrangement kind, the
// smallest terminal it fits, per-pane priority weights and jump shortcuts.
// Presets are immutable once a Set is built; custom ones may be loaded from
// TOML.
package preset

import (
	"errors"
	"fmt"
	"math"
)

// Kind is the geometric arrangement of a preset.
type Kind string

const (
	KindSingle Kind = "single"
	KindTriple Kind = "triple"
	KindQuad   Kind = "quad"
	KindFull   Kind = "full"
)

// PaneCount returns how many panes the arrangement holds, or 0 for an
// unknown kind.
func (k Kind) PaneCount() int {
	switch k {
	case KindSingle:
		return 1
	case KindTriple:
		return 3
	case KindQuad:
		return 4
	case KindFull:
		return 5
	}
	return 0
}

// WeightTolerance is how far a preset's weights may stray from 1.
const WeightTolerance = 0.01

// Preset is a named pane arrangement.
type Preset struct {
	Name        string             `toml:"name"`
	Description string             `toml:"description"`
	Kind        Kind               `toml:"kind"`
	Panes       []string           `toml:"panes"`
	MinWidth    int                `toml:"min_width"`
	MinHeight   int                `toml:"min_height"`
	Weights     map[string]float64 `toml:"weights"`
	Shortcuts   map[string]string  `toml:"shortcuts"` // key combo -> pane id
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid preset")

// Fits reports whether a terminal of the given size meets the minimums.
func (p Preset) Fits(width, height int) bool {
	return width >= p.MinWidth && height >= p.MinHeight
}

// HasPane reports whether id is one of the preset's panes.
func (p Preset) HasPane(id string) bool {
	for _, pane := range p.Panes {
		if pane == id {
			return true
		}
	}
	return false
}

// WeightSum adds the priority weights.
func (p Preset) WeightSum() float64 {
	var sum float64
	for _, w := range p.Weights {
		sum += w
	}
	return sum
}

// Validate checks the preset is internally consistent.
func (p Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	want := p.Kind.PaneCount()
	if want == 0 {
		return fmt.Errorf("%w %q: unknown kind %q", ErrInvalid, p.Name, p.Kind)
	}
	if len(p.Panes) != want {
		return fmt.Errorf("%w %q: kind %s needs %d panes, has %d", ErrInvalid, p.Name, p.Kind, want, len(p.Panes))
	}
	seen := make(map[string]bool, len(p.Panes))
	for _, id := range p.Panes {
		if id == "" {
			return fmt.Errorf("%w %q: empty pane id", ErrInvalid, p.Name)
		}
		if seen[id] {
			return fmt.Errorf("%w %q: duplicate pane %q", ErrInvalid, p.Name, id)
		}
		seen[id] = true
	}
	if p.MinWidth <= 0 || p.MinHeight <= 0 {
		return fmt.Errorf("%w %q: minimum size must be positive", ErrInvalid, p.Name)
	}
	for id, w := range p.Weights {
		if !seen[id] {
			return fmt.Errorf("%w %q: weight for unknown pane %q", ErrInvalid, p.Name, id)
		}
		if w < 0 {
			return fmt.Errorf("%w %q: negative weight for %q", ErrInvalid, p.Name, id)
		}
	}
	if sum := p.WeightSum(); math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("%w %q: weights sum to %.3f, want 1.0", ErrInvalid, p.Name, sum)
	}
	for combo, id := range p.Shortcuts {
		if !seen[id] {
			return fmt.Errorf("%w %q: shortcut %q targets unknown pane %q", ErrInvalid, p.Name, combo, id)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p Preset) Clone() Preset {
	c := p
	c.Panes = append([]string(nil), p.Panes...)
	if p.Weights != nil {
		c.Weights = make(map[string]float64, len(p.Weights))
		for k, v := range p.Weights {
			c.Weights[k] = v
		}
	}
	if p.Shortcuts != nil {
		c.Shortcuts = make(map[string]string, len(p.Shortcuts))
		for k, v := range p.Shortcuts {
			c.Shortcuts[k] = v
		}
	}
	return c
}
