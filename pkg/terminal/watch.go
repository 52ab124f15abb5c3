package terminal

import (
	"context"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Watch calls fn with the new size every time the process receives
// SIGWINCH, until ctx is done. It returns immediately; fn runs on a
// separate goroutine and is never called concurrently with itself.
func Watch(ctx context.Context, fn func(Size)) {
	if fn == nil {
		return
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGWINCH)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				fn(GetSize())
			}
		}
	}()
}
