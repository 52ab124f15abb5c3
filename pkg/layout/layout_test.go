package layout

import (
	"errors"
	"testing"

	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
)

// area is a test helper that creates a Rect at origin with the given size.
func area(w, h int) Rect {
	return Rect{X: 0, Y: 0, Width: w, Height: h}
}

// assertRectsEqual fails the test if got and want differ.
func assertRectsEqual(t *testing.T, label string, got, want []Rect) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len(got)=%d, want %d\ngot:  %v\nwant: %v", label, len(got), len(want), got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("%s[%d]: got %v, want %v", label, i, got[i], want[i])
		}
	}
}

func paneRects(g Geometry) []Rect {
	out := make([]Rect, len(g.Panes))
	for i, p := range g.Panes {
		out[i] = p.Rect
	}
	return out
}

// --- Rect ---

func TestRectInnerClamps(t *testing.T) {
	r := Rect{X: 1, Y: 1, Width: 3, Height: 10}.Inner(2)
	if r.Width != 0 || r.Height != 6 {
		t.Errorf("got %v, want width 0 height 6", r)
	}
}

func TestRectContainsEdges(t *testing.T) {
	r := Rect{X: 2, Y: 3, Width: 4, Height: 2}
	if !r.Contains(2, 3) || !r.Contains(5, 4) {
		t.Error("corners should be inside")
	}
	if r.Contains(6, 3) || r.Contains(2, 5) {
		t.Error("right and bottom edges are exclusive")
	}
}

func TestRectIntersect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 5, Y: 5, Width: 10, Height: 10}
	if got, want := a.Intersect(b), (Rect{X: 5, Y: 5, Width: 5, Height: 5}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := a.Intersect(Rect{X: 10, Y: 0, Width: 5, Height: 5}); !got.Empty() {
		t.Errorf("adjacent rects should not intersect, got %v", got)
	}
}

// --- Solver ---

func TestSingleFillFillsEntireArea(t *testing.T) {
	rects := NewLayout(Horizontal, Fill{1}).Split(area(100, 50))
	assertRectsEqual(t, "single fill", rects, []Rect{
		{X: 0, Y: 0, Width: 100, Height: 50},
	})
}

func TestFillWeightedRatio(t *testing.T) {
	rects := NewLayout(Horizontal, Fill{2}, Fill{1}).Split(area(90, 30))
	assertRectsEqual(t, "fill 2:1", rects, []Rect{
		{X: 0, Y: 0, Width: 60, Height: 30},
		{X: 60, Y: 0, Width: 30, Height: 30},
	})
}

func TestFillRemainderToLast(t *testing.T) {
	rects := SplitHorizontal(area(100, 5), Fill{}, Fill{}, Fill{})
	assertRectsEqual(t, "thirds", rects, []Rect{
		{X: 0, Y: 0, Width: 33, Height: 5},
		{X: 33, Y: 0, Width: 33, Height: 5},
		{X: 66, Y: 0, Width: 34, Height: 5},
	})
}

func TestLengthPlusFill(t *testing.T) {
	rects := NewLayout(Horizontal, Length{10}, Fill{1}).Split(area(100, 50))
	assertRectsEqual(t, "length+fill", rects, []Rect{
		{X: 0, Y: 0, Width: 10, Height: 50},
		{X: 10, Y: 0, Width: 90, Height: 50},
	})
}

func TestSurplusGoesToLastWithoutFill(t *testing.T) {
	rects := NewLayout(Horizontal, Length{20}, Length{30}).Split(area(100, 50))
	assertRectsEqual(t, "two lengths", rects, []Rect{
		{X: 0, Y: 0, Width: 20, Height: 50},
		{X: 20, Y: 0, Width: 80, Height: 50},
	})
}

func TestPercentageRoundsDownFillTakesRest(t *testing.T) {
	rects := SplitVertical(area(10, 24), Percentage{70}, Fill{})
	assertRectsEqual(t, "70/fill", rects, []Rect{
		{X: 0, Y: 0, Width: 10, Height: 16},
		{X: 0, Y: 16, Width: 10, Height: 8},
	})
}

func TestPercentageClampedTo100(t *testing.T) {
	rects := NewLayout(Horizontal, Percentage{150}, Fill{}).Split(area(100, 50))
	if rects[0].Width != 100 || rects[1].Width != 0 {
		t.Errorf("got widths %d,%d, want 100,0", rects[0].Width, rects[1].Width)
	}
}

func TestOverflowTruncated(t *testing.T) {
	rects := NewLayout(Horizontal, Length{30}, Min{30}, Fill{}).Split(area(40, 1))
	assertRectsEqual(t, "overflow", rects, []Rect{
		{X: 0, Y: 0, Width: 30, Height: 1},
		{X: 30, Y: 0, Width: 10, Height: 1},
		{X: 40, Y: 0, Width: 0, Height: 1},
	})
}

func TestSplitEmpty(t *testing.T) {
	if rects := NewLayout(Horizontal).Split(area(10, 10)); rects != nil {
		t.Errorf("got %v, want nil", rects)
	}
	rects := SplitHorizontal(Rect{Width: -5, Height: 3}, Fill{}, Fill{})
	for i, r := range rects {
		if r.Width != 0 {
			t.Errorf("rect %d: got width %d, want 0", i, r.Width)
		}
	}
}

func TestDistribute(t *testing.T) {
	tests := []struct {
		total, n int
		want     []int
	}{
		{116, 3, []int{39, 39, 38}},
		{117, 3, []int{39, 39, 39}},
		{118, 3, []int{40, 39, 39}},
		{2, 3, []int{1, 1, 0}},
		{-4, 2, []int{0, 0}},
	}
	for _, tt := range tests {
		got := Distribute(tt.total, tt.n)
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("Distribute(%d, %d) = %v, want %v", tt.total, tt.n, got, tt.want)
				break
			}
		}
	}
	if Distribute(10, 0) != nil {
		t.Error("n=0 should return nil")
	}
}

// --- Geometry ---

func TestUsableArea(t *testing.T) {
	if got, want := UsableArea(120, 30), (Rect{X: 2, Y: 3, Width: 116, Height: 24}); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got := UsableArea(3, 4); got.Width != 0 || got.Height != 0 {
		t.Errorf("got %v, want zero size", got)
	}
}

func TestQuickExample(t *testing.T) {
	m := newTestManager(t, "quick", 60, 10)
	g := m.Geometry()
	if g.Kind != preset.KindSingle || len(g.Panes) != 1 {
		t.Fatalf("got kind %s with %d panes, want single with 1", g.Kind, len(g.Panes))
	}
	p := g.Panes[0]
	if p.ID != preset.PaneProgress || !p.Focused {
		t.Errorf("got %+v, want focused progress", p)
	}
	if p.Rect != UsableArea(60, 10) {
		t.Errorf("got %v, want %v", p.Rect, UsableArea(60, 10))
	}
}

func TestDevelopmentColumns(t *testing.T) {
	m := newTestManager(t, "development", 120, 30)
	g := m.Geometry()
	assertRectsEqual(t, "development", paneRects(g), []Rect{
		{X: 2, Y: 3, Width: 39, Height: 24},
		{X: 41, Y: 3, Width: 39, Height: 24},
		{X: 80, Y: 3, Width: 38, Height: 24},
	})
	if g.Focused() != preset.PaneProgress {
		t.Errorf("got focus %q, want progress", g.Focused())
	}
}

func TestQuadGrid(t *testing.T) {
	m := newTestManager(t, "monitoring", 120, 30)
	assertRectsEqual(t, "monitoring", paneRects(m.Geometry()), []Rect{
		{X: 2, Y: 3, Width: 69, Height: 16},
		{X: 71, Y: 3, Width: 47, Height: 16},
		{X: 2, Y: 19, Width: 69, Height: 8},
		{X: 71, Y: 19, Width: 47, Height: 8},
	})
}

func TestFullRows(t *testing.T) {
	m := newTestManager(t, "full", 161, 40)
	assertRectsEqual(t, "full", paneRects(m.Geometry()), []Rect{
		{X: 2, Y: 3, Width: 52, Height: 22},
		{X: 54, Y: 3, Width: 52, Height: 22},
		{X: 106, Y: 3, Width: 53, Height: 22},
		{X: 2, Y: 25, Width: 78, Height: 12},
		{X: 80, Y: 25, Width: 79, Height: 12},
	})
}

func TestBuiltinsTileAtEverySize(t *testing.T) {
	for _, p := range preset.Builtins() {
		for dw := 0; dw < 40; dw += 3 {
			for dh := 0; dh < 20; dh += 4 {
				w, h := p.MinWidth+dw, p.MinHeight+dh
				g, err := Calculate(p, w, h)
				if err != nil {
					t.Fatalf("%s at %dx%d: %v", p.Name, w, h, err)
				}
				if err := g.Validate(); err != nil {
					t.Errorf("%s at %dx%d: %v", p.Name, w, h, err)
				}
				if len(g.Panes) != p.Kind.PaneCount() {
					t.Errorf("%s: got %d panes, want %d", p.Name, len(g.Panes), p.Kind.PaneCount())
				}
			}
		}
	}
}

func TestValidateDetectsOverlap(t *testing.T) {
	g := Geometry{
		Area: Rect{Width: 10, Height: 10},
		Panes: []PaneRect{
			{ID: "a", Rect: Rect{Width: 6, Height: 10}},
			{ID: "b", Rect: Rect{X: 5, Width: 5, Height: 10}},
		},
	}
	if err := g.Validate(); !errors.Is(err, ErrNotTiled) {
		t.Errorf("got %v, want ErrNotTiled", err)
	}
}

func TestGeometryAt(t *testing.T) {
	g, err := Calculate(mustPreset(t, "development"), 120, 30)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := g.At(50, 10)
	if !ok || p.ID != preset.PaneTasks {
		t.Errorf("got %q %v, want tasks", p.ID, ok)
	}
	if _, ok := g.At(0, 0); ok {
		t.Error("border cell should not hit a pane")
	}
}

func mustPreset(t *testing.T, name string) preset.Preset {
	t.Helper()
	p, ok := preset.DefaultSet().Get(name)
	if !ok {
		t.Fatalf("missing built-in %q", name)
	}
	return p
}
