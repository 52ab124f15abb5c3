package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/flowdeck/pkg/terminal"
	"gitlab.com/tinyland/lab/flowdeck/pkg/theme"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("render: renderer closed")

// Renderer draws frames.
type Renderer interface {
	Render(f Frame) error
	Close() error
}

type settings struct {
	theme theme.Theme
}

// Option configures a renderer.
type Option func(*settings)

// WithTheme draws with th instead of the default palette.
func WithTheme(th theme.Theme) Option {
	return func(s *settings) { s.theme = th }
}

func apply(opts []Option) settings {
	s := settings{theme: theme.Default()}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// New returns the renderer for mode, resolving auto against out. It
// returns the resolved mode alongside.
func New(mode Mode, out *os.File, opts ...Option) (Renderer, Mode, error) {
	resolved := ResolveMode(mode, terminal.IsTerminal(out))
	switch resolved {
	case ModeStatic:
		return NewStatic(out, opts...), resolved, nil
	case ModeLive:
		return NewLive(out, opts...), resolved, nil
	case ModeInteractive:
		return NewInteractive(lipgloss.NewRenderer(out), opts...), resolved, nil
	}
	return nil, "", fmt.Errorf("render: unknown mode %q", mode)
}

// Static writes each frame once, followed by a newline. The colour
// profile follows w, so output to a pipe or file is plain text.
type Static struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	closed bool
}

// NewStatic creates a static renderer writing to w.
func NewStatic(w io.Writer, opts ...Option) *Static {
	st := apply(opts)
	return &Static{w: w, styles: NewStyles(lipgloss.NewRenderer(w), st.theme)}
}

// Render writes f.
func (s *Static) Render(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := io.WriteString(s.w, Compose(f, s.styles)+"\n"); err != nil {
		return fmt.Errorf("render: write frame: %w", err)
	}
	return nil
}

// Close marks the renderer closed.
func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Live clears the screen and redraws on every changed frame.
type Live struct {
	mu     sync.Mutex
	out    *termenv.Output
	styles Styles
	last   string
	hidden bool
	closed bool
}

// NewLive creates a live renderer writing to w.
func NewLive(w io.Writer, opts ...Option) *Live {
	out := termenv.NewOutput(w)
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(out.ColorProfile())
	return &Live{out: out, styles: NewStyles(r, apply(opts).theme)}
}

// Render redraws the screen unless f composes to the frame already shown.
func (l *Live) Render(f Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	s := Compose(f, l.styles)
	if s == l.last {
		return nil
	}
	if !l.hidden {
		l.out.HideCursor()
		l.hidden = true
	}
	l.out.ClearScreen()
	if _, err := l.out.WriteString(s); err != nil {
		return fmt.Errorf("render: write frame: %w", err)
	}
	l.last = s
	return nil
}

// Close restores the cursor.
func (l *Live) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.hidden {
		l.out.ShowCursor()
	}
	return nil
}

// Interactive keeps the latest composed frame for a bubbletea model to
// return from View.
type Interactive struct {
	mu     sync.Mutex
	styles Styles
	view   string
	closed bool
}

// NewInteractive creates an interactive renderer. A nil r uses the
// default lipgloss renderer.
func NewInteractive(r *lipgloss.Renderer, opts ...Option) *Interactive {
	return &Interactive{styles: NewStyles(r, apply(opts).theme)}
}

// Render composes f for the next View.
func (i *Interactive) Render(f Frame) error {
	s := Compose(f, i.styles)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrClosed
	}
	i.view = s
	return nil
}

// View returns the last composed frame.
func (i *Interactive) View() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.view
}

// Close marks the renderer closed.
func (i *Interactive) Close() error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	return nil
}
