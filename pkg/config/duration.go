package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration read from TOML either as a Go duration
// string ("100ms", "5s") or as a bare integer count of milliseconds.
type Duration struct {
	time.Duration
}

// Millis returns a Duration of n milliseconds.
func Millis(n int64) Duration {
	return Duration{time.Duration(n) * time.Millisecond}
}

// UnmarshalTOML implements toml.Unmarshaler.
func (d *Duration) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("negative duration %dms not allowed", v)
		}
		*d = Millis(v)
		return nil
	}
	return fmt.Errorf("duration must be a string or milliseconds, got %T", v)
}

// UnmarshalText parses a Go duration string. Empty means zero.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("negative duration %q not allowed", s)
	}
	d.Duration = parsed
	return nil
}

// MarshalText writes the Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Within reports whether d lies in [lo, hi].
func (d Duration) Within(lo, hi time.Duration) bool {
	return d.Duration >= lo && d.Duration <= hi
}
