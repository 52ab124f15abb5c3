package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"gitlab.com/tinyland/lab/flowdeck/pkg/theme"
)

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/flowdeck/config.toml
//  2. ~/.config/flowdeck/config.toml
//
// If no file exists, returns DefaultConfig() with env overrides applied.
func Load() (*Config, error) {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, cfg.Validate()
}

// LoadFromFile reads configuration from a specific file path. A missing
// file yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, path)
	}
	if cfg.General.PresetsFile != "" && !filepath.IsAbs(cfg.General.PresetsFile) {
		cfg.General.PresetsFile = filepath.Join(filepath.Dir(path), cfg.General.PresetsFile)
	}
	if t := cfg.General.Theme; theme.IsFile(t) && !filepath.IsAbs(t) {
		cfg.General.Theme = filepath.Join(filepath.Dir(path), t)
	}
	if cfg.Watcher.Table != "" && !filepath.IsAbs(cfg.Watcher.Table) {
		cfg.Watcher.Table = filepath.Join(filepath.Dir(path), cfg.Watcher.Table)
	}
	return cfg, nil
}

// LoadFromReader reads configuration from an io.Reader. Keys are merged
// over the defaults; unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown key %q", undecoded[0].String())
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func Encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			Preset:   "development",
			Root:     ".",
			Mode:     "auto",
			LogLevel: "info",
			Theme:    theme.DefaultName,
		},
		Panes: PanesConfig{
			Debounce:      Duration{100 * time.Millisecond},
			MaxConcurrent: 3,
		},
		Watcher: WatcherConfig{
			Enabled:        true,
			Debounce:       Duration{100 * time.Millisecond},
			HealthInterval: Duration{30 * time.Second},
			MaxErrors:      50,
		},
		Errors: ErrorsConfig{
			RetryAttempts: 3,
			RetryDelay:    Duration{time.Second},
			MaxHistory:    100,
		},
		Performance: PerformanceConfig{
			AlertThreshold: 0.8,
			MaxSamples:     100,
			SampleInterval: Duration{5 * time.Second},
			TrackMemory:    true,
		},
	}
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLOWDECK_PRESET"); v != "" {
		cfg.General.Preset = v
	}
	if v := os.Getenv("FLOWDECK_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
	if v := os.Getenv("FLOWDECK_ROOT"); v != "" {
		cfg.General.Root = v
	}
	if v := os.Getenv("FLOWDECK_THEME"); v != "" {
		cfg.General.Theme = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, "flowdeck", "config.toml"))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, "flowdeck", "config.toml"))
	}
	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}
