package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/flowdeck/pkg/keys"
	"gitlab.com/tinyland/lab/flowdeck/pkg/layout"
	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
	"gitlab.com/tinyland/lab/flowdeck/pkg/theme"
)

// Frame is everything needed to draw one screen.
type Frame struct {
	Title    string
	Geometry layout.Geometry
	Panes    map[string]pane.Snapshot

	// Presets names the switchable presets in key order; Active is the
	// one shown.
	Presets []string
	Active  string

	Status string
	Help   bool

	// Zones, when set, marks the preset tabs so mouse clicks can be
	// resolved with ZoneID.
	Zones *zone.Manager
}

// ZoneID is the mouse zone id of the preset tab at 1-based position n.
func ZoneID(n int) string { return fmt.Sprintf("preset-%d", n) }

// Styles holds the lipgloss styles used to compose frames.
type Styles struct {
	Title     lipgloss.Style
	PaneTitle lipgloss.Style
	Dim       lipgloss.Style
	Warn      lipgloss.Style
	Error     lipgloss.Style
	Box       lipgloss.Style
	Focused   lipgloss.Style
	Tab       lipgloss.Style
	Active    lipgloss.Style
	HelpKey   lipgloss.Style
	HelpDesc  lipgloss.Style
}

// NewStyles builds styles from th bound to r. A nil r uses the default
// renderer.
func NewStyles(r *lipgloss.Renderer, th theme.Theme) Styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	box := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(th.Border))
	return Styles{
		Title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color(th.Accent)),
		PaneTitle: r.NewStyle().Bold(true).Foreground(lipgloss.Color(th.Title)),
		Dim:       r.NewStyle().Foreground(lipgloss.Color(th.Dim)),
		Warn:      r.NewStyle().Foreground(lipgloss.Color(th.StatusWarn)),
		Error:     r.NewStyle().Foreground(lipgloss.Color(th.StatusError)),
		Box:       box,
		Focused:   box.BorderForeground(lipgloss.Color(th.BorderFocus)),
		Tab:       r.NewStyle().Foreground(lipgloss.Color(th.Dim)),
		Active:    r.NewStyle().Bold(true).Reverse(true),
		HelpKey:   r.NewStyle().Foreground(lipgloss.Color(th.HelpKey)),
		HelpDesc:  r.NewStyle().Foreground(lipgloss.Color(th.HelpDesc)),
	}
}

// Compose draws f as exactly Geometry.Height lines of
// Geometry.Width cells each.
func Compose(f Frame, st Styles) string {
	g := f.Geometry
	if g.Width <= 0 || g.Height <= 0 {
		return ""
	}
	c := newCanvas(g.Width, g.Height)

	c.put(layout.MarginX, 0, header(f, st, g.Width-2*layout.MarginX))
	if g.Substituted {
		note := fmt.Sprintf("terminal too small for %q, showing %q", g.Requested, g.Preset)
		c.put(layout.MarginX, 1, st.Dim.Render(note))
	}

	if f.Help {
		c.box(g.Area, st.PaneTitle.Render("keys"), helpLines(st), st.Focused)
	} else {
		for _, pr := range g.Panes {
			s, ok := f.Panes[pr.ID]
			if !ok {
				s = pane.Snapshot{ID: pr.ID, Title: pr.ID, State: pane.StateInitializing}
			}
			style := st.Box
			if pr.Focused {
				style = st.Focused
			}
			title := s.Title
			if title == "" {
				title = pr.ID
			}
			c.box(pr.Rect, st.PaneTitle.Render(title), paneLines(s, st), style)
		}
	}

	footerY := g.Height - layout.FooterHeight
	if footerY < 0 {
		footerY = 0
	}
	c.put(layout.MarginX, footerY+1, tabs(f, st))
	if f.Status != "" {
		status := st.Dim.Render(f.Status)
		x := g.Width - layout.MarginX - ansi.StringWidth(status)
		if x < layout.MarginX {
			x = layout.MarginX
		}
		c.put(x, footerY+1, status)
	}
	c.put(layout.MarginX, footerY+2, hints(st))

	return c.String()
}

func header(f Frame, st Styles, width int) string {
	title := f.Title
	if title == "" {
		title = "flowdeck"
	}
	left := st.Title.Render(title)
	right := st.Dim.Render(fmt.Sprintf("%s · %dx%d", f.Geometry.Preset, f.Geometry.Width, f.Geometry.Height))
	gap := width - ansi.StringWidth(left) - ansi.StringWidth(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

func tabs(f Frame, st Styles) string {
	parts := make([]string, 0, len(f.Presets))
	for i, name := range f.Presets {
		label := fmt.Sprintf(" %d %s ", i+1, name)
		if name == f.Active {
			label = st.Active.Render(label)
		} else {
			label = st.Tab.Render(label)
		}
		if f.Zones != nil {
			label = f.Zones.Mark(ZoneID(i+1), label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, " ")
}

func hints(st Styles) string {
	var parts []string
	for _, b := range (keys.KeyMap{}).ShortHelp() {
		h := b.Help()
		parts = append(parts, st.HelpKey.Render(h.Key)+" "+st.HelpDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

func helpLines(st Styles) []string {
	var lines []string
	for _, b := range keys.Bindings() {
		h := b.Help()
		lines = append(lines, st.HelpKey.Render(fmt.Sprintf("%-12s", h.Key))+" "+st.HelpDesc.Render(h.Desc))
	}
	return lines
}

// paneLines formats a pane's body from its snapshot.
func paneLines(s pane.Snapshot, st Styles) []string {
	if s.Collapsed {
		return []string{st.Dim.Render("(collapsed)")}
	}
	var lines []string
	if s.HasError {
		lines = append(lines, st.Error.Render("error: "+errText(s.Err)))
	}
	switch {
	case s.HasData:
		lines = append(lines, formatData(s.Data)...)
	case s.State == pane.StateInitializing || s.State == pane.StateLoading:
		lines = append(lines, st.Warn.Render("loading…"))
	case !s.HasError:
		lines = append(lines, st.Dim.Render("no data"))
	}
	if s.State == pane.StateUpdating {
		lines = append(lines, st.Warn.Render("updating…"))
	} else if !s.LastUpdate.IsZero() {
		lines = append(lines, st.Dim.Render("updated "+s.LastUpdate.Format(time.TimeOnly)))
	}
	return lines
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

// formatData turns pane data into display lines.
func formatData(v any) []string {
	switch d := v.(type) {
	case nil:
		return nil
	case string:
		return strings.Split(strings.TrimRight(d, "\n"), "\n")
	case []string:
		return d
	case fmt.Stringer:
		return strings.Split(d.String(), "\n")
	case map[string]string:
		ks := make([]string, 0, len(d))
		for k := range d {
			ks = append(ks, k)
		}
		sort.Strings(ks)
		lines := make([]string, 0, len(ks))
		for _, k := range ks {
			lines = append(lines, k+": "+d[k])
		}
		return lines
	}
	return []string{fmt.Sprintf("%v", v)}
}

// canvas is a grid of lines assembled from positioned segments. Segments
// may carry ANSI styling; widths are measured in cells.
type canvas struct {
	width int
	rows  [][]segment
}

type segment struct {
	x    int
	text string
}

func newCanvas(w, h int) *canvas {
	return &canvas{width: w, rows: make([][]segment, h)}
}

// put places text at (x, y), clipped to the canvas.
func (c *canvas) put(x, y int, text string) {
	if y < 0 || y >= len(c.rows) || x >= c.width || text == "" {
		return
	}
	if x < 0 {
		x = 0
	}
	c.rows[y] = append(c.rows[y], segment{x: x, text: ansi.Truncate(text, c.width-x, "")})
}

// box draws a bordered box filling r with title and body lines clipped to
// fit.
func (c *canvas) box(r layout.Rect, title string, body []string, style lipgloss.Style) {
	if r.Width < 2 || r.Height < 2 {
		return
	}
	innerW, innerH := r.Width-2, r.Height-2
	lines := make([]string, 0, innerH)
	if title != "" && innerH > 0 {
		lines = append(lines, fit(title, innerW))
	}
	for _, l := range body {
		if len(lines) == innerH {
			break
		}
		lines = append(lines, fit(l, innerW))
	}
	out := style.Width(innerW).Height(innerH).Render(strings.Join(lines, "\n"))
	for i, line := range strings.Split(out, "\n") {
		if i >= r.Height {
			break
		}
		c.put(r.X, r.Y+i, fit(line, r.Width))
	}
}

// fit truncates or pads s to exactly w cells.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if ansi.StringWidth(s) > w {
		s = ansi.Truncate(s, w, "…")
	}
	if pad := w - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func (c *canvas) String() string {
	var b strings.Builder
	for y, segs := range c.rows {
		sort.SliceStable(segs, func(i, j int) bool { return segs[i].x < segs[j].x })
		cursor := 0
		for _, s := range segs {
			if s.x < cursor {
				continue
			}
			b.WriteString(strings.Repeat(" ", s.x-cursor))
			b.WriteString(s.text)
			cursor = s.x + ansi.StringWidth(s.text)
		}
		if cursor < c.width {
			b.WriteString(strings.Repeat(" ", c.width-cursor))
		}
		if y < len(c.rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
