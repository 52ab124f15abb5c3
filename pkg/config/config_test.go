package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"FLOWDECK_PRESET", "FLOWDECK_LOG_LEVEL", "FLOWDECK_ROOT", "FLOWDECK_THEME"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// --- defaults ---

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.General.Preset != "development" {
		t.Errorf("got preset %q, want development", cfg.General.Preset)
	}
	if cfg.Panes.Debounce.Duration != 100*time.Millisecond || cfg.Panes.MaxConcurrent != 3 {
		t.Errorf("got panes %+v", cfg.Panes)
	}
	if cfg.Errors.RetryAttempts != 3 || cfg.Errors.RetryDelay.Duration != time.Second {
		t.Errorf("got errors %+v", cfg.Errors)
	}
}

// --- loading ---

func TestLoadFromReaderMergesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromReader(strings.NewReader(`
[general]
preset = "monitoring"

[panes]
debounce = "250ms"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.Preset != "monitoring" {
		t.Errorf("got preset %q, want monitoring", cfg.General.Preset)
	}
	if cfg.Panes.Debounce.Duration != 250*time.Millisecond {
		t.Errorf("got debounce %v, want 250ms", cfg.Panes.Debounce)
	}
	if cfg.Panes.MaxConcurrent != 3 {
		t.Errorf("got max_concurrent %d, want default 3", cfg.Panes.MaxConcurrent)
	}
}

func TestLoadFromReaderRejectsUnknownKey(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromReader(strings.NewReader("[panes]\ndebounc = \"1s\"\n"))
	if err == nil || !strings.Contains(err.Error(), "debounc") {
		t.Fatalf("got %v, want unknown key error", err)
	}
}

func TestLoadFromReaderBadDuration(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFromReader(strings.NewReader("[panes]\ndebounce = \"soon\"\n")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadFromReader(strings.NewReader("[panes]\ndebounce = \"-1s\"\n")); err == nil {
		t.Fatal("expected negative duration error")
	}
	if _, err := LoadFromReader(strings.NewReader("[panes]\ndebounce = -5\n")); err == nil {
		t.Fatal("expected negative milliseconds error")
	}
	if _, err := LoadFromReader(strings.NewReader("[panes]\ndebounce = true\n")); err == nil {
		t.Fatal("expected type error")
	}
}

func TestLoadFromReaderMillisecondDuration(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromReader(strings.NewReader("[panes]\ndebounce = 250\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Panes.Debounce != Millis(250) {
		t.Errorf("got debounce %v, want 250ms", cfg.Panes.Debounce)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLOWDECK_PRESET", "quick")
	t.Setenv("FLOWDECK_LOG_LEVEL", "debug")
	t.Setenv("FLOWDECK_ROOT", "/srv/work")
	cfg, err := LoadFromReader(strings.NewReader(`[general]
preset = "full"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.Preset != "quick" || cfg.General.LogLevel != "debug" || cfg.General.Root != "/srv/work" {
		t.Errorf("got general %+v", cfg.General)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.Preset != "development" {
		t.Errorf("got preset %q, want default", cfg.General.Preset)
	}
}

func TestLoadFromFileResolvesRelativePaths(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	p := writeFile(t, dir, "config.toml", `[general]
presets_file = "presets.toml"
theme = "themes/mine.toml"

[watcher]
table = "watch.yaml"
`)
	cfg, err := LoadFromFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.PresetsFile != filepath.Join(dir, "presets.toml") {
		t.Errorf("got presets_file %q", cfg.General.PresetsFile)
	}
	if cfg.Watcher.Table != filepath.Join(dir, "watch.yaml") {
		t.Errorf("got table %q", cfg.Watcher.Table)
	}
	if cfg.General.Theme != filepath.Join(dir, "themes/mine.toml") {
		t.Errorf("got theme %q", cfg.General.Theme)
	}
}

func TestLoadSearchesXDG(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "flowdeck"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "flowdeck"), "config.toml", "[general]\npreset = \"full\"\n")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.Preset != "full" {
		t.Errorf("got preset %q, want full", cfg.General.Preset)
	}
}

// --- validation ---

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"debounce low", func(c *Config) { c.Panes.Debounce = Duration{time.Millisecond} }, "panes.debounce"},
		{"debounce high", func(c *Config) { c.Panes.Debounce = Duration{6 * time.Second} }, "panes.debounce"},
		{"concurrency", func(c *Config) { c.Panes.MaxConcurrent = 33 }, "panes.max_concurrent"},
		{"refresh", func(c *Config) { c.Panes.RefreshInterval = Duration{500 * time.Millisecond} }, "panes.refresh_interval"},
		{"health", func(c *Config) { c.Watcher.HealthInterval = Duration{11 * time.Minute} }, "watcher.health_interval"},
		{"retries", func(c *Config) { c.Errors.RetryAttempts = 11 }, "errors.retry_attempts"},
		{"retry delay", func(c *Config) { c.Errors.RetryDelay = Duration{31 * time.Second} }, "errors.retry_delay"},
		{"history", func(c *Config) { c.Errors.MaxHistory = 5 }, "errors.max_history"},
		{"alert zero", func(c *Config) { c.Performance.AlertThreshold = 0 }, "performance.alert_threshold"},
		{"alert over", func(c *Config) { c.Performance.AlertThreshold = 1.5 }, "performance.alert_threshold"},
		{"samples", func(c *Config) { c.Performance.MaxSamples = 20000 }, "performance.max_samples"},
		{"theme", func(c *Config) { c.General.Theme = "solarized" }, "general.theme"},
		{"log level", func(c *Config) { c.General.LogLevel = "loud" }, "general.log_level"},
		{"mode", func(c *Config) { c.General.Mode = "fancy" }, "general.mode"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := DefaultConfig()
			c.mod(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("got %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), c.field) {
				t.Errorf("error %q does not name %s", err, c.field)
			}
		})
	}
}

func TestValidateBoundsInclusive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Panes.Debounce = Duration{10 * time.Millisecond}
	cfg.Panes.MaxConcurrent = 32
	cfg.Panes.RefreshInterval = Duration{time.Minute}
	cfg.Errors.RetryAttempts = 0
	cfg.Errors.RetryDelay = Duration{}
	cfg.Performance.AlertThreshold = 1
	if err := cfg.Validate(); err != nil {
		t.Errorf("boundary values rejected: %v", err)
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Panes.MaxConcurrent = 0
	cfg.Errors.MaxHistory = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "max_concurrent") || !strings.Contains(err.Error(), "max_history") {
		t.Errorf("got %v, want both fields reported", err)
	}
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(&Config{
		General: GeneralConfig{Preset: "quick"},
		Panes:   PanesConfig{MaxConcurrent: 8},
	})
	if cfg.General.Preset != "quick" || cfg.Panes.MaxConcurrent != 8 {
		t.Errorf("got %+v %+v", cfg.General, cfg.Panes)
	}
	if cfg.Panes.Debounce.Duration != 100*time.Millisecond || cfg.General.LogLevel != "info" {
		t.Error("zero fields should not override")
	}
	cfg.Merge(nil)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Error("expected error for trace")
	}
}

// --- presets ---

func TestPresetSetDefault(t *testing.T) {
	set, err := DefaultConfig().PresetSet()
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != 4 {
		t.Errorf("got %d presets, want 4", set.Len())
	}
}

func TestPresetSetInline(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromReader(strings.NewReader(`
[[preset]]
name = "solo"
kind = "single"
panes = ["logs"]
min_width = 20
min_height = 5
weights = { logs = 1.0 }
`))
	if err != nil {
		t.Fatal(err)
	}
	set, err := cfg.PresetSet()
	if err != nil {
		t.Fatal(err)
	}
	p, ok := set.Get("solo")
	if !ok || p.Panes[0] != "logs" {
		t.Fatalf("got %+v, %v", p, ok)
	}
	if set.Len() != 5 {
		t.Errorf("got %d presets, want 5", set.Len())
	}
}

func TestPresetSetBadFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.PresetsFile = filepath.Join(t.TempDir(), "missing.toml")
	if _, err := cfg.PresetSet(); err == nil {
		t.Error("expected error for missing presets file")
	}
}

// --- theme ---

func TestThemeBuiltin(t *testing.T) {
	cfg := DefaultConfig()
	th, err := cfg.Theme()
	if err != nil || th.Name != "default" {
		t.Fatalf("default theme = %q, %v", th.Name, err)
	}
	cfg.General.Theme = "nord"
	if th, _ := cfg.Theme(); th.Name != "nord" {
		t.Errorf("got theme %q, want nord", th.Name)
	}
}

func TestThemeFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.General.Theme = writeFile(t, dir, "mine.toml", "name = \"mine\"\n[pane]\nborder_focus = \"#00ff00\"\n")
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	th, err := cfg.Theme()
	if err != nil {
		t.Fatal(err)
	}
	if th.Name != "mine" || th.BorderFocus != "#00ff00" {
		t.Errorf("got %+v", th)
	}
}

func TestThemeEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("FLOWDECK_THEME", "dracula")
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.Theme != "dracula" {
		t.Errorf("got theme %q, want dracula", cfg.General.Theme)
	}
}

// --- watch table ---

func TestParseWatchTable(t *testing.T) {
	wt, err := ParseWatchTable(strings.NewReader(`
routes:
  - path: .flow/state.json
    panes: [progress]
  - path: .flow/config
    panes: [all]
patterns:
  high: ["*.state"]
  low: ["*.log"]
required: [.flow]
`))
	if err != nil {
		t.Fatal(err)
	}
	if len(wt.Routes) != 2 || wt.Routes[1].Panes[0] != "all" {
		t.Errorf("got routes %+v", wt.Routes)
	}
	if wt.Patterns == nil || wt.Patterns.High[0] != "*.state" {
		t.Errorf("got patterns %+v", wt.Patterns)
	}
}

func TestParseWatchTableRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field": "routes:\n  - path: a\n    panes: [x]\n    pane: y\n",
		"no panes":      "routes:\n  - path: a\n",
		"no path":       "routes:\n  - panes: [x]\n",
	}
	for name, doc := range cases {
		if _, err := ParseWatchTable(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestWatcherConfigFromTable(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Watcher.Table = writeFile(t, dir, "watch.yaml", "routes:\n  - path: state\n    panes: [status]\nrequired: []\n")
	cfg.Errors.RetryAttempts = 5
	wc, err := cfg.WatcherConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(wc.Routes) != 1 || wc.Routes[0].Path != "state" {
		t.Errorf("got routes %+v", wc.Routes)
	}
	if len(wc.Required) != 0 {
		t.Errorf("got required %v, want none", wc.Required)
	}
	if wc.MaxRetries != 5 {
		t.Errorf("got retries %d, want 5", wc.MaxRetries)
	}
	if len(wc.Patterns.High) == 0 {
		t.Error("default patterns should be kept")
	}
}
