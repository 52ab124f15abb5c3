package preset

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// prTomlFile holds one or more presets under [[preset]] tables.
type prTomlFile struct {
	Presets []Preset `toml:"preset"`
}

// LoadFromTOML parses a single custom preset from TOML data.
func LoadFromTOML(data []byte) (Preset, error) {
	var p Preset
	md, err := toml.Decode(string(data), &p)
	if err != nil {
		return Preset{}, fmt.Errorf("preset: parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Preset{}, fmt.Errorf("preset: unknown key %q", undecoded[0].String())
	}
	if p.Name == "" {
		return Preset{}, fmt.Errorf("preset: missing required field 'name'")
	}
	if err := p.Validate(); err != nil {
		return Preset{}, fmt.Errorf("preset: %w", err)
	}
	return p, nil
}

// LoadFile reads presets from a TOML file. The file may hold one preset at
// the top level or several under [[preset]].
func LoadFile(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("preset: read %s: %w", path, err)
	}

	var multi prTomlFile
	md, err := toml.Decode(string(data), &multi)
	if err != nil {
		return nil, fmt.Errorf("preset: parse %s: %w", path, err)
	}
	if !md.IsDefined("preset") {
		p, err := LoadFromTOML(data)
		if err != nil {
			return nil, fmt.Errorf("%w (in %s)", err, path)
		}
		return []Preset{p}, nil
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("preset: %s: unknown key %q", path, undecoded[0].String())
	}
	for _, p := range multi.Presets {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset: %s: %w", path, err)
		}
	}
	return multi.Presets, nil
}

// SaveToTOML serialises a preset to TOML.
func SaveToTOML(p Preset) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("preset: encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}
