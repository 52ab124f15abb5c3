package layout

import (
	"errors"
	"fmt"

	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
)

// Reserved cells around the usable area: a two-column border on each side,
// a three-row header and a three-row footer.
const (
	MarginX      = 2
	HeaderHeight = 3
	FooterHeight = 3
)

// ErrNotTiled is returned by Geometry.Validate.
var ErrNotTiled = errors.New("geometry does not tile the usable area")

// PaneRect places one pane.
type PaneRect struct {
	ID string
	Rect
	Focused bool
}

// Geometry is the computed placement of every pane in a preset.
type Geometry struct {
	// Preset is the preset actually laid out; Requested is the one asked
	// for. They differ when the terminal was too small.
	Preset      string
	Requested   string
	Substituted bool

	Kind   preset.Kind
	Width  int
	Height int
	Area   Rect
	Panes  []PaneRect
}

// UsableArea returns the rectangle left for panes in a terminal of the
// given size.
func UsableArea(width, height int) Rect {
	return Rect{
		X:      MarginX,
		Y:      HeaderHeight,
		Width:  clampNonNeg(width - 2*MarginX),
		Height: clampNonNeg(height - HeaderHeight - FooterHeight),
	}
}

// Calculate lays out p in a terminal of the given size. It does not check
// minimums; see Manager.CalculateLayout for preset substitution.
func Calculate(p preset.Preset, width, height int) (Geometry, error) {
	if err := p.Validate(); err != nil {
		return Geometry{}, err
	}
	area := UsableArea(width, height)
	var rects []Rect
	switch p.Kind {
	case preset.KindSingle:
		rects = []Rect{area}
	case preset.KindTriple:
		rects = tripleRects(area)
	case preset.KindQuad:
		rects = quadRects(area)
	case preset.KindFull:
		rects = fullRects(area)
	default:
		return Geometry{}, fmt.Errorf("%w: unknown kind %q", preset.ErrInvalid, p.Kind)
	}

	g := Geometry{
		Preset:    p.Name,
		Requested: p.Name,
		Kind:      p.Kind,
		Width:     width,
		Height:    height,
		Area:      area,
		Panes:     make([]PaneRect, len(rects)),
	}
	for i, r := range rects {
		g.Panes[i] = PaneRect{ID: p.Panes[i], Rect: r, Focused: i == 0}
	}
	return g, nil
}

// tripleRects splits into three full-height columns; leftover cells go to
// the leftmost columns.
func tripleRects(area Rect) []Rect {
	widths := Distribute(area.Width, 3)
	rects := make([]Rect, 3)
	x := area.X
	for i, w := range widths {
		rects[i] = Rect{X: x, Y: area.Y, Width: w, Height: area.Height}
		x += w
	}
	return rects
}

// quadRects is a 2x2 grid: rows 70/30, columns 60/40, both rows sharing
// the same column split.
func quadRects(area Rect) []Rect {
	rows := SplitVertical(area, Percentage{70}, Fill{})
	var rects []Rect
	for _, row := range rows {
		rects = append(rects, SplitHorizontal(row, Percentage{60}, Fill{})...)
	}
	return rects
}

// fullRects puts three equal columns in a 65% top row and two halves in the
// bottom row.
func fullRects(area Rect) []Rect {
	rows := SplitVertical(area, Percentage{65}, Fill{})
	rects := SplitHorizontal(rows[0], Fill{}, Fill{}, Fill{})
	return append(rects, SplitHorizontal(rows[1], Fill{}, Fill{})...)
}

// Pane returns the rectangle for id.
func (g Geometry) Pane(id string) (PaneRect, bool) {
	for _, p := range g.Panes {
		if p.ID == id {
			return p, true
		}
	}
	return PaneRect{}, false
}

// Has reports whether id is laid out.
func (g Geometry) Has(id string) bool {
	_, ok := g.Pane(id)
	return ok
}

// IDs returns pane ids in layout order.
func (g Geometry) IDs() []string {
	ids := make([]string, len(g.Panes))
	for i, p := range g.Panes {
		ids[i] = p.ID
	}
	return ids
}

// Focused returns the focused pane id, or "".
func (g Geometry) Focused() string {
	for _, p := range g.Panes {
		if p.Focused {
			return p.ID
		}
	}
	return ""
}

// At returns the pane containing the cell (x, y).
func (g Geometry) At(x, y int) (PaneRect, bool) {
	for _, p := range g.Panes {
		if p.Contains(x, y) {
			return p, true
		}
	}
	return PaneRect{}, false
}

// Clone returns a copy that shares no slices with g.
func (g Geometry) Clone() Geometry {
	c := g
	c.Panes = append([]PaneRect(nil), g.Panes...)
	return c
}

// withFocus returns a copy with only id focused.
func (g Geometry) withFocus(id string) Geometry {
	c := g.Clone()
	for i := range c.Panes {
		c.Panes[i].Focused = c.Panes[i].ID == id
	}
	return c
}

// Validate checks that the panes stay inside the usable area, do not
// overlap and cover it exactly, and that at most one is focused.
func (g Geometry) Validate() error {
	covered, focused := 0, 0
	for i, p := range g.Panes {
		if p.Width < 0 || p.Height < 0 {
			return fmt.Errorf("%w: pane %q has negative size", ErrNotTiled, p.ID)
		}
		if !p.Empty() && p.Intersect(g.Area) != p.Rect {
			return fmt.Errorf("%w: pane %q outside %v", ErrNotTiled, p.ID, g.Area)
		}
		for _, q := range g.Panes[i+1:] {
			if !p.Intersect(q.Rect).Empty() {
				return fmt.Errorf("%w: panes %q and %q overlap", ErrNotTiled, p.ID, q.ID)
			}
		}
		covered += p.Area()
		if p.Focused {
			focused++
		}
	}
	if covered != g.Area.Area() {
		return fmt.Errorf("%w: covered %d of %d cells", ErrNotTiled, covered, g.Area.Area())
	}
	if focused > 1 {
		return fmt.Errorf("%w: %d panes focused", ErrNotTiled, focused)
	}
	return nil
}
