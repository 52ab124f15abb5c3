package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/flowdeck/pkg/config"
	"gitlab.com/tinyland/lab/flowdeck/pkg/keys"
	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
	"gitlab.com/tinyland/lab/flowdeck/pkg/perf"
	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
	"gitlab.com/tinyland/lab/flowdeck/pkg/render"
	"gitlab.com/tinyland/lab/flowdeck/pkg/watcher"
)

func newTestEngine(t *testing.T, withWorkflow bool, mod func(*config.Config), opts ...Option) (*Engine, string) {
	t.Helper()
	root := t.TempDir()
	if withWorkflow {
		if err := os.MkdirAll(filepath.Join(root, ".workflow"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.DefaultConfig()
	cfg.General.Root = root
	cfg.Errors.RetryDelay = config.Duration{Duration: time.Millisecond}
	cfg.Performance.TrackMemory = false
	if mod != nil {
		mod(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := New(cfg, append([]Option{WithSize(120, 30), WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Shutdown(context.Background()) })
	return e, root
}

func mustInit(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.Panes().WaitIdle()
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func equal(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

// --- lifecycle ---

func TestInitRegistersVisiblePanes(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)

	want := sorted([]string{preset.PaneProgress, preset.PaneTasks, preset.PaneCapabilities})
	if got := e.Panes().IDs(); !equal(got, want) {
		t.Fatalf("got panes %v, want %v", got, want)
	}
	if got := e.Panes().Focused(); got != preset.PaneProgress {
		t.Errorf("got focused %q, want progress", got)
	}
	s, _ := e.Panes().Snapshot(preset.PaneTasks)
	if s.Title != "Tasks" || !s.Collapsible || !s.Refreshable {
		t.Errorf("got snapshot %+v", s)
	}
}

func TestInitFailsWithoutWorkflowDir(t *testing.T) {
	e, _ := newTestEngine(t, false, nil)
	err := e.Init(context.Background())
	if !errors.Is(err, watcher.ErrMissingDirectory) {
		t.Fatalf("got %v, want ErrMissingDirectory", err)
	}
}

func TestWatcherDisabled(t *testing.T) {
	e, _ := newTestEngine(t, false, func(c *config.Config) { c.Watcher.Enabled = false })
	mustInit(t, e)
	if e.Watcher() != nil {
		t.Error("watcher should be nil when disabled")
	}
}

func TestInitIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)
	mustInit(t, e)
	if got := e.Panes().Count(); got != 3 {
		t.Errorf("got %d panes, want 3", got)
	}
}

func TestShutdownTwice(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)
	if err := e.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.Shutdown(context.Background()); err != nil {
		t.Errorf("second shutdown: %v", err)
	}
}

// --- layout changes ---

func TestPresetKeyResyncsPanes(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)

	if !e.HandleKey("3", keys.Modifiers{}) {
		t.Fatal("key 3 not handled")
	}
	e.Panes().WaitIdle()
	want := sorted([]string{preset.PaneProgress, preset.PaneTasks, preset.PaneCapabilities, preset.PaneStatus})
	if got := e.Panes().IDs(); !equal(got, want) {
		t.Fatalf("got panes %v, want %v", got, want)
	}
	if got := e.Panes().Focused(); got != preset.PaneProgress {
		t.Errorf("got focused %q, want progress", got)
	}
	s, _ := e.Panes().Snapshot(preset.PaneStatus)
	lines, ok := s.Data.([]string)
	if !ok || !strings.HasPrefix(lines[0], "health") {
		t.Errorf("got status data %#v", s.Data)
	}
}

func TestResizeSubstitutesAndRestores(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)

	if err := e.Resize(50, 12); err != nil {
		t.Fatal(err)
	}
	g := e.Layout().Geometry()
	if g.Preset != "quick" || !g.Substituted {
		t.Fatalf("got preset %q substituted=%v, want quick", g.Preset, g.Substituted)
	}
	if got := e.Panes().IDs(); !equal(got, []string{preset.PaneProgress}) {
		t.Errorf("got panes %v, want [progress]", got)
	}

	if err := e.Resize(120, 30); err != nil {
		t.Fatal(err)
	}
	e.Panes().WaitIdle()
	if g := e.Layout().Geometry(); g.Preset != "development" {
		t.Errorf("got %q, want development restored", g.Preset)
	}
	if got := e.Panes().Count(); got != 3 {
		t.Errorf("got %d panes, want 3", got)
	}
}

func TestFocusKeySyncsPanes(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)
	e.HandleKey("tab", keys.Modifiers{})
	if got := e.Panes().Focused(); got != preset.PaneTasks {
		t.Errorf("got %q, want tasks", got)
	}
	if g := e.Layout().Geometry(); g.Focused() != preset.PaneTasks {
		t.Errorf("layout focus %q, want tasks", g.Focused())
	}
}

// --- data flow ---

func TestFileChangeRefreshesPane(t *testing.T) {
	e, root := newTestEngine(t, true, nil)
	mustInit(t, e)

	state := filepath.Join(root, ".workflow", "state.json")
	if err := os.WriteFile(state, []byte(`{"phase":"test"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	e.Watcher().Inject(".workflow/state.json", watcher.KindModify)
	e.Watcher().Flush()

	s, _ := e.Panes().Snapshot(preset.PaneProgress)
	m, ok := s.Data.(map[string]string)
	if !ok || m["phase"] != "test" {
		t.Errorf("got %#v, want phase test", s.Data)
	}
}

func TestCustomProvider(t *testing.T) {
	e, _ := newTestEngine(t, true, nil,
		WithProvider(preset.PaneTasks, pane.FetchFunc(func(context.Context) (any, error) {
			return "custom", nil
		})),
		WithPaneConfig(preset.PaneTasks, pane.Config{Title: "Jobs"}),
	)
	mustInit(t, e)
	s, _ := e.Panes().Snapshot(preset.PaneTasks)
	if s.Data != "custom" || s.Title != "Jobs" {
		t.Errorf("got %+v", s)
	}
}

func TestQuitKey(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)
	e.HandleKey("ctrl+c", keys.Modifiers{})
	select {
	case force := <-e.Quit():
		if !force {
			t.Error("ctrl+c should force quit")
		}
	case <-time.After(time.Second):
		t.Fatal("no quit delivered")
	}
}

func TestFrame(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)
	f := e.Frame()
	if f.Geometry.Preset != "development" || f.Active != "development" {
		t.Errorf("got preset %q", f.Geometry.Preset)
	}
	if len(f.Panes) != 3 || len(f.Presets) != 4 {
		t.Errorf("got %d panes, %d presets", len(f.Panes), len(f.Presets))
	}
	if !strings.HasPrefix(f.Status, "health") {
		t.Errorf("got status %q", f.Status)
	}
	e.HandleKey("?", keys.Modifiers{})
	if !e.Frame().Help {
		t.Error("help should be visible after ?")
	}
}

func TestDrawRecordsRenderTime(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)
	var out strings.Builder
	r := render.NewStatic(&out)
	if err := e.Draw(r, e.Frame()); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 {
		t.Error("nothing rendered")
	}
	samples := e.Monitor().Samples(perf.BucketRender)
	if len(samples) != 1 || samples[0].Op != "render.frame" {
		t.Errorf("got render samples %+v, want one render.frame", samples)
	}
}

func TestKeyPressRecordsKeyboardTime(t *testing.T) {
	e, _ := newTestEngine(t, true, nil)
	mustInit(t, e)
	e.HandleKey("tab", keys.Modifiers{})
	samples := e.Monitor().Samples(perf.BucketKeyboard)
	if len(samples) != 1 || samples[0].Op != "keyboard.tab" {
		t.Errorf("got keyboard samples %+v, want one keyboard.tab", samples)
	}
}

func TestHealthTickWithoutWatcher(t *testing.T) {
	e, _ := newTestEngine(t, true, func(c *config.Config) {
		c.Watcher.Enabled = false
		c.Watcher.HealthInterval = config.Millis(10)
	})
	alerts := make(chan perf.Alert, 8)
	e.Monitor().OnAlert(func(a perf.Alert) {
		if a.Bucket == "health" {
			select {
			case alerts <- a:
			default:
			}
		}
	})
	for i := 0; i < 20; i++ {
		e.Monitor().RecordError()
		e.Monitor().Observe("render.frame", time.Second)
		e.Monitor().RecordToolResult("git", false)
	}
	mustInit(t, e)
	select {
	case <-alerts:
	case <-time.After(2 * time.Second):
		t.Fatal("no degraded alert from the periodic health check")
	}
}
