package config

import (
	"fmt"

	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
	"gitlab.com/tinyland/lab/flowdeck/pkg/theme"
)

// PresetSet returns the built-in presets extended by the presets file and
// the inline [[preset]] tables, in that order. A later preset replaces an
// earlier one of the same name.
func (c *Config) PresetSet() (*preset.Set, error) {
	var custom []preset.Preset
	if c.General.PresetsFile != "" {
		loaded, err := preset.LoadFile(c.General.PresetsFile)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		custom = append(custom, loaded...)
	}
	custom = append(custom, c.Presets...)
	if len(custom) == 0 {
		return preset.DefaultSet(), nil
	}
	set, err := preset.WithCustom(custom...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return set, nil
}

// Theme resolves the configured palette.
func (c *Config) Theme() (theme.Theme, error) {
	th, err := theme.Resolve(c.General.Theme)
	if err != nil {
		return theme.Theme{}, fmt.Errorf("config: %w", err)
	}
	return th, nil
}
