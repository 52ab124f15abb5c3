// Package keys turns raw key input into navigation actions. Input is
// normalized to a canonical combo string, resolved against the global
// binding table, the active preset's jump shortcuts and the focused pane's
// own bindings, and executed against the layout and pane managers.
package keys

import (
	"strings"
	"unicode"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

// Modifiers are the modifier keys held with a key.
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

var modifierNames = map[string]func(*Modifiers){
	"ctrl":    func(m *Modifiers) { m.Ctrl = true },
	"control": func(m *Modifiers) { m.Ctrl = true },
	"shift":   func(m *Modifiers) { m.Shift = true },
	"alt":     func(m *Modifiers) { m.Alt = true },
	"option":  func(m *Modifiers) { m.Alt = true },
	"meta":    func(m *Modifiers) { m.Meta = true },
	"cmd":     func(m *Modifiers) { m.Meta = true },
	"super":   func(m *Modifiers) { m.Meta = true },
}

var keyAliases = map[string]string{
	" ":          "space",
	"spacebar":   "space",
	"return":     "enter",
	"escape":     "esc",
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
	"del":        "delete",
	"pageup":     "pgup",
	"pagedown":   "pgdown",
}

// Normalize builds the canonical combo for a key: modifier prefixes in the
// order ctrl, shift, alt, meta followed by the lower-cased key name, joined
// by "+". Modifier prefixes already present in raw are merged with mods. A
// single upper-case letter is read as shift plus the lower-case letter.
func Normalize(raw string, mods Modifiers) string {
	name := raw
	if name != "+" && name != " " {
		parts := strings.Split(raw, "+")
		name = parts[len(parts)-1]
		if name == "" && len(parts) > 1 {
			// "ctrl++" names the plus key.
			name = "+"
			parts = parts[:len(parts)-1]
		}
		for _, p := range parts[:len(parts)-1] {
			if set, ok := modifierNames[strings.ToLower(strings.TrimSpace(p))]; ok {
				set(&mods)
			}
		}
		if name != " " {
			name = strings.TrimSpace(name)
		}
	}

	if r, size := utf8.DecodeRuneInString(name); size == len(name) && unicode.IsUpper(r) {
		mods.Shift = true
	}
	name = strings.ToLower(name)
	if alias, ok := keyAliases[name]; ok {
		name = alias
	}
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, m := range []struct {
		on   bool
		name string
	}{
		{mods.Ctrl, "ctrl"},
		{mods.Shift, "shift"},
		{mods.Alt, "alt"},
		{mods.Meta, "meta"},
	} {
		if m.on {
			b.WriteString(m.name)
			b.WriteByte('+')
		}
	}
	b.WriteString(name)
	return b.String()
}

// FromTeaKey adapts a bubbletea key event to raw input and modifiers.
func FromTeaKey(msg tea.KeyMsg) (string, Modifiers) {
	k := tea.Key(msg)
	mods := Modifiers{Alt: k.Alt}
	switch k.Type {
	case tea.KeyRunes:
		return string(k.Runes), mods
	case tea.KeySpace:
		return " ", mods
	}
	s := msg.String()
	if k.Alt {
		s = strings.TrimPrefix(s, "alt+")
	}
	return s, mods
}
