// Package terminal reports the host terminal's size and whether a stream
// is attached to one. Size changes are delivered through Watch.
package terminal

import (
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// Defaults used when no size can be determined.
const (
	DefaultWidth  = 80
	DefaultHeight = 24
)

// Source records where a Size came from.
type Source string

const (
	SourceIoctl    Source = "ioctl"
	SourceEnv      Source = "env"
	SourceDefault  Source = "default"
	SourceOverride Source = "override"
)

// Size is the terminal size in character cells.
type Size struct {
	Width  int
	Height int
	Source Source
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool { return s.Width > 0 && s.Height > 0 }

// GetSize returns the current terminal dimensions. It tries, in order:
//  1. TIOCGWINSZ ioctl on stdout
//  2. TIOCGWINSZ ioctl on stderr (in case stdout is redirected)
//  3. COLUMNS/LINES environment variables
//  4. 80x24
func GetSize() Size {
	for _, fd := range []uintptr{os.Stdout.Fd(), os.Stderr.Fd()} {
		if s := getSizeFromIoctl(fd); s.Valid() {
			return s
		}
	}
	return getSizeFromEnv()
}

// GetSizeFromFd returns the size of the terminal on fd, falling back to
// the environment and then the defaults.
func GetSizeFromFd(fd uintptr) Size {
	if s := getSizeFromIoctl(fd); s.Valid() {
		return s
	}
	return getSizeFromEnv()
}

// Resolve applies explicit dimensions over a measured size. A zero
// override keeps the measured value.
func Resolve(measured Size, width, height int) Size {
	if width <= 0 && height <= 0 {
		return measured
	}
	s := measured
	if width > 0 {
		s.Width = width
	}
	if height > 0 {
		s.Height = height
	}
	s.Source = SourceOverride
	return s
}

// getSizeFromIoctl queries the terminal size via TIOCGWINSZ. It returns a
// zero Size on failure.
func getSizeFromIoctl(fd uintptr) Size {
	ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
	if err != nil {
		return Size{}
	}
	return Size{Width: int(ws.Col), Height: int(ws.Row), Source: SourceIoctl}
}

// getSizeFromEnv reads COLUMNS/LINES, falling back to 80x24.
func getSizeFromEnv() Size {
	cols := envInt("COLUMNS", 0)
	rows := envInt("LINES", 0)
	if cols > 0 && rows > 0 {
		return Size{Width: cols, Height: rows, Source: SourceEnv}
	}
	return Size{Width: DefaultWidth, Height: DefaultHeight, Source: SourceDefault}
}

// envInt reads a positive integer from the named environment variable.
func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
