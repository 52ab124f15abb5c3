package layout

// Direction is the axis a Layout splits along.
type Direction int

const (
	// Horizontal splits left to right; constraints size widths.
	Horizontal Direction = iota
	// Vertical splits top to bottom; constraints size heights.
	Vertical
)

// Constraint sizes one segment of a split. The set is closed.
type Constraint interface {
	constraint()
}

// Length is exactly Value cells.
type Length struct{ Value int }

// Percentage is Value percent (0-100) of the axis, rounded down.
type Percentage struct{ Value int }

// Min is at least Value cells; it does not grow.
type Min struct{ Value int }

// Fill shares what is left in proportion to Weight. Zero weight counts as 1.
type Fill struct{ Weight int }

func (Length) constraint()     {}
func (Percentage) constraint() {}
func (Min) constraint()        {}
func (Fill) constraint()       {}

// Layout splits a Rect into len(constraints) adjacent segments.
type Layout struct {
	direction   Direction
	constraints []Constraint
}

// NewLayout creates a layout.
func NewLayout(dir Direction, constraints ...Constraint) *Layout {
	return &Layout{direction: dir, constraints: constraints}
}

// SplitVertical splits area top to bottom.
func SplitVertical(area Rect, constraints ...Constraint) []Rect {
	return NewLayout(Vertical, constraints...).Split(area)
}

// SplitHorizontal splits area left to right.
func SplitHorizontal(area Rect, constraints ...Constraint) []Rect {
	return NewLayout(Horizontal, constraints...).Split(area)
}

// Split returns segments that exactly cover area along the layout axis.
//
// Fixed constraints (Length, Percentage, Min) are sized first and truncated
// in order if they overflow the axis. What remains is shared among Fill
// segments by weight with the last Fill taking the rounding remainder. With
// no Fill segment, the last segment absorbs any surplus.
func (l *Layout) Split(area Rect) []Rect {
	n := len(l.constraints)
	if n == 0 {
		return nil
	}
	total := l.axis(area)

	sizes := make([]int, n)
	weights := make([]int, n)
	fixed, totalWeight, lastFill := 0, 0, -1
	for i, c := range l.constraints {
		switch v := c.(type) {
		case Length:
			sizes[i] = clampNonNeg(v.Value)
		case Percentage:
			sizes[i] = total * min(max(v.Value, 0), 100) / 100
		case Min:
			sizes[i] = clampNonNeg(v.Value)
		case Fill:
			w := v.Weight
			if w <= 0 {
				w = 1
			}
			weights[i] = w
			totalWeight += w
			lastFill = i
			continue
		}
		if fixed+sizes[i] > total {
			sizes[i] = total - fixed
		}
		fixed += sizes[i]
	}

	remaining := total - fixed
	if lastFill >= 0 {
		given := 0
		for i := range sizes {
			if weights[i] == 0 {
				continue
			}
			if i == lastFill {
				sizes[i] = remaining - given
				continue
			}
			sizes[i] = remaining * weights[i] / totalWeight
			given += sizes[i]
		}
	} else if remaining > 0 {
		sizes[n-1] += remaining
	}

	rects := make([]Rect, n)
	offset := 0
	for i, s := range sizes {
		if l.direction == Horizontal {
			rects[i] = Rect{X: area.X + offset, Y: area.Y, Width: s, Height: clampNonNeg(area.Height)}
		} else {
			rects[i] = Rect{X: area.X, Y: area.Y + offset, Width: clampNonNeg(area.Width), Height: s}
		}
		offset += s
	}
	return rects
}

func (l *Layout) axis(r Rect) int {
	if l.direction == Horizontal {
		return clampNonNeg(r.Width)
	}
	return clampNonNeg(r.Height)
}

// Distribute splits total into n near-equal parts. The remainder goes one
// cell at a time to the leading parts.
func Distribute(total, n int) []int {
	if n <= 0 {
		return nil
	}
	total = clampNonNeg(total)
	parts := make([]int, n)
	base, rem := total/n, total%n
	for i := range parts {
		parts[i] = base
		if i < rem {
			parts[i]++
		}
	}
	return parts
}
