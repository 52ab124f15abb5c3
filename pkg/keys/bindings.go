package keys

import "github.com/charmbracelet/bubbles/key"

// Action names what a key press did.
type Action string

const (
	ActionNone         Action = ""
	ActionNextPane     Action = "next_pane"
	ActionPreviousPane Action = "previous_pane"
	ActionPreset       Action = "preset"
	ActionHelp         Action = "help"
	ActionRefresh      Action = "refresh"
	ActionHardRefresh  Action = "hard_refresh"
	ActionCollapse     Action = "collapse"
	ActionQuit         Action = "quit"
	ActionForceQuit    Action = "force_quit"
	ActionJump         Action = "jump"
	ActionPaneScoped   Action = "pane"
)

type globalBinding struct {
	keys   []string
	help   string
	desc   string
	action Action
	preset int
}

var globalBindings = []globalBinding{
	{keys: []string{"tab", "right", "l"}, help: "tab/→", desc: "next pane", action: ActionNextPane},
	{keys: []string{"shift+tab", "left", "h"}, help: "shift+tab/←", desc: "previous pane", action: ActionPreviousPane},
	{keys: []string{"1"}, help: "1", desc: "preset 1", action: ActionPreset, preset: 1},
	{keys: []string{"2"}, help: "2", desc: "preset 2", action: ActionPreset, preset: 2},
	{keys: []string{"3"}, help: "3", desc: "preset 3", action: ActionPreset, preset: 3},
	{keys: []string{"4"}, help: "4", desc: "preset 4", action: ActionPreset, preset: 4},
	{keys: []string{"?"}, help: "?", desc: "toggle help", action: ActionHelp},
	{keys: []string{"r"}, help: "r", desc: "refresh pane", action: ActionRefresh},
	{keys: []string{"ctrl+r", "shift+r"}, help: "R", desc: "refresh all", action: ActionHardRefresh},
	{keys: []string{"space", "c"}, help: "space", desc: "collapse pane", action: ActionCollapse},
	{keys: []string{"q"}, help: "q", desc: "quit", action: ActionQuit},
	{keys: []string{"ctrl+c"}, help: "ctrl+c", desc: "force quit", action: ActionForceQuit},
}

// Bindings returns the global key table for help rendering.
func Bindings() []key.Binding {
	out := make([]key.Binding, 0, len(globalBindings))
	for _, b := range globalBindings {
		out = append(out, key.NewBinding(key.WithKeys(b.keys...), key.WithHelp(b.help, b.desc)))
	}
	return out
}

// KeyMap exposes the global table in the shape bubbles/help renders.
type KeyMap struct{}

// ShortHelp returns the bindings shown in a one-line help bar.
func (KeyMap) ShortHelp() []key.Binding {
	all := Bindings()
	return []key.Binding{all[0], all[1], all[6], all[7], all[9], all[10]}
}

// FullHelp groups the bindings into columns.
func (KeyMap) FullHelp() [][]key.Binding {
	all := Bindings()
	return [][]key.Binding{all[:2], all[2:6], all[6:10], all[10:]}
}

func globalTable() map[string]globalBinding {
	t := make(map[string]globalBinding)
	for _, b := range globalBindings {
		for _, k := range b.keys {
			t[Normalize(k, Modifiers{})] = b
		}
	}
	return t
}
