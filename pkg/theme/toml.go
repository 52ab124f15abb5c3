package theme

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalid is wrapped by every theme validation failure.
var ErrInvalid = errors.New("invalid theme")

// ErrUnknown is wrapped when a built-in name does not exist.
var ErrUnknown = errors.New("unknown theme")

func unknownError(name string) error {
	return fmt.Errorf("theme: %w %q (have %s)", ErrUnknown, name, strings.Join(Names(), ", "))
}

// tomlTheme is the on-disk layout of a theme file.
type tomlTheme struct {
	Name   string     `toml:"name"`
	Base   tomlBase   `toml:"base"`
	Pane   tomlPane   `toml:"pane"`
	Status tomlStatus `toml:"status"`
	Help   tomlHelp   `toml:"help"`
}

type tomlBase struct {
	Foreground string `toml:"foreground"`
	Dim        string `toml:"dim"`
	Accent     string `toml:"accent"`
}

type tomlPane struct {
	Border      string `toml:"border"`
	BorderFocus string `toml:"border_focus"`
	Title       string `toml:"title"`
}

type tomlStatus struct {
	OK    string `toml:"ok"`
	Warn  string `toml:"warn"`
	Error string `toml:"error"`
}

type tomlHelp struct {
	Key  string `toml:"key"`
	Desc string `toml:"desc"`
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// LoadFile reads a theme from a TOML file.
func LoadFile(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, fmt.Errorf("theme: %w", err)
	}
	t, err := LoadFromTOML(data)
	if err != nil {
		return Theme{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// LoadFromTOML parses a theme definition. Colours left out are taken
// from the default palette; unknown keys are rejected.
func LoadFromTOML(data []byte) (Theme, error) {
	var tt tomlTheme
	md, err := toml.Decode(string(data), &tt)
	if err != nil {
		return Theme{}, fmt.Errorf("theme: parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Theme{}, fmt.Errorf("theme: %w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
	}

	d := Default()
	t := Theme{
		Name:        tt.Name,
		Foreground:  or(tt.Base.Foreground, d.Foreground),
		Dim:         or(tt.Base.Dim, d.Dim),
		Accent:      or(tt.Base.Accent, d.Accent),
		Border:      or(tt.Pane.Border, d.Border),
		BorderFocus: or(tt.Pane.BorderFocus, d.BorderFocus),
		Title:       or(tt.Pane.Title, d.Title),
		StatusOK:    or(tt.Status.OK, d.StatusOK),
		StatusWarn:  or(tt.Status.Warn, d.StatusWarn),
		StatusError: or(tt.Status.Error, d.StatusError),
		HelpKey:     or(tt.Help.Key, d.HelpKey),
		HelpDesc:    or(tt.Help.Desc, d.HelpDesc),
	}
	if err := t.Validate(); err != nil {
		return Theme{}, err
	}
	return t, nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// SaveToTOML serializes a theme to TOML bytes.
func SaveToTOML(t Theme) ([]byte, error) {
	tt := tomlTheme{
		Name:   t.Name,
		Base:   tomlBase{Foreground: t.Foreground, Dim: t.Dim, Accent: t.Accent},
		Pane:   tomlPane{Border: t.Border, BorderFocus: t.BorderFocus, Title: t.Title},
		Status: tomlStatus{OK: t.StatusOK, Warn: t.StatusWarn, Error: t.StatusError},
		Help:   tomlHelp{Key: t.HelpKey, Desc: t.HelpDesc},
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tt); err != nil {
		return nil, fmt.Errorf("theme: encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}

// Validate checks that the theme is named and every colour is #RRGGBB.
func (t Theme) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("theme: %w: missing name", ErrInvalid)
	}
	colors := map[string]string{
		"base.foreground":   t.Foreground,
		"base.dim":          t.Dim,
		"base.accent":       t.Accent,
		"pane.border":       t.Border,
		"pane.border_focus": t.BorderFocus,
		"pane.title":        t.Title,
		"status.ok":         t.StatusOK,
		"status.warn":       t.StatusWarn,
		"status.error":      t.StatusError,
		"help.key":          t.HelpKey,
		"help.desc":         t.HelpDesc,
	}
	fields := make([]string, 0, len(colors))
	for f := range colors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	var errs []error
	for _, f := range fields {
		if !hexColor.MatchString(colors[f]) {
			errs = append(errs, fmt.Errorf("theme: %w: %s: %q is not #RRGGBB", ErrInvalid, f, colors[f]))
		}
	}
	return errors.Join(errs...)
}
