// Package layout computes pane geometry for the dashboard. A small
// constraint solver splits rectangles along one axis; on top of it each
// preset kind has a fixed arrangement, and a Manager tracks the active
// preset, terminal size and focused pane with a geometry cache keyed by
// preset and size.
package layout

// Rect is a rectangle in terminal cells.
type Rect struct {
	X, Y, Width, Height int
}

// Area returns the number of cells covered.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Empty reports whether the rectangle covers no cells.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Right is the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom is the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Inner shrinks the rectangle by margin on every side, never below zero.
func (r Rect) Inner(margin int) Rect {
	if margin < 0 {
		margin = 0
	}
	return Rect{
		X:      r.X + margin,
		Y:      r.Y + margin,
		Width:  clampNonNeg(r.Width - 2*margin),
		Height: clampNonNeg(r.Height - 2*margin),
	}
}

// Contains reports whether the cell (px, py) lies inside.
func (r Rect) Contains(px, py int) bool {
	return px >= r.X && px < r.Right() && py >= r.Y && py < r.Bottom()
}

// Intersect returns the overlap of two rectangles, or the zero Rect.
func (r Rect) Intersect(o Rect) Rect {
	x1, y1 := max(r.X, o.X), max(r.Y, o.Y)
	x2, y2 := min(r.Right(), o.Right()), min(r.Bottom(), o.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func clampNonNeg(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
