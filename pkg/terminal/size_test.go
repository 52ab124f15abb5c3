package terminal

import (
	"context"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestEnvFallback(t *testing.T) {
	t.Setenv("COLUMNS", "132")
	t.Setenv("LINES", "43")
	s := getSizeFromEnv()
	if s.Width != 132 || s.Height != 43 || s.Source != SourceEnv {
		t.Errorf("got %+v, want 132x43 from env", s)
	}
}

func TestEnvInvalidUsesDefault(t *testing.T) {
	cases := []struct{ cols, lines string }{
		{"", ""},
		{"abc", "24"},
		{"-5", "24"},
		{"80", "0"},
	}
	for _, c := range cases {
		t.Setenv("COLUMNS", c.cols)
		t.Setenv("LINES", c.lines)
		s := getSizeFromEnv()
		if s.Width != DefaultWidth || s.Height != DefaultHeight || s.Source != SourceDefault {
			t.Errorf("COLUMNS=%q LINES=%q: got %+v, want default", c.cols, c.lines, s)
		}
	}
}

func TestIoctlOnNonTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "notatty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if s := getSizeFromIoctl(f.Fd()); s.Valid() {
		t.Errorf("got %+v from a regular file, want zero", s)
	}
	if IsTerminal(f) {
		t.Error("regular file reported as terminal")
	}
}

func TestGetSizeFromFdFallsBack(t *testing.T) {
	t.Setenv("COLUMNS", "100")
	t.Setenv("LINES", "30")
	f, err := os.CreateTemp(t.TempDir(), "notatty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if s := GetSizeFromFd(f.Fd()); s.Width != 100 || s.Height != 30 {
		t.Errorf("got %+v, want 100x30", s)
	}
}

func TestGetSizeAlwaysValid(t *testing.T) {
	if s := GetSize(); !s.Valid() {
		t.Errorf("got %+v, want a positive size", s)
	}
}

func TestResolve(t *testing.T) {
	m := Size{Width: 80, Height: 24, Source: SourceIoctl}
	if got := Resolve(m, 0, 0); got != m {
		t.Errorf("got %+v, want unchanged", got)
	}
	got := Resolve(m, 160, 0)
	if got.Width != 160 || got.Height != 24 || got.Source != SourceOverride {
		t.Errorf("got %+v, want 160x24 override", got)
	}
}

func TestWatchSIGWINCH(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Size, 1)
	Watch(ctx, func(s Size) {
		select {
		case got <- s:
		default:
		}
	})
	if err := unix.Kill(os.Getpid(), unix.SIGWINCH); err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-got:
		if !s.Valid() {
			t.Errorf("got %+v, want a valid size", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no size delivered after SIGWINCH")
	}
}
