package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/flowdeck/pkg/preset"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// lines asserts a provider returned display lines.
func lines(t *testing.T) func(any, error) []string {
	return func(v any, err error) []string {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		l, ok := v.([]string)
		if !ok {
			t.Fatalf("got %T, want []string", v)
		}
		return l
	}
}

func TestProviders(t *testing.T) {
	ps := New(t.TempDir()).Providers()
	for _, id := range []string{preset.PaneProgress, preset.PaneTasks, preset.PaneCapabilities, preset.PaneLogs} {
		if ps[id] == nil {
			t.Errorf("no provider for %s", id)
		}
	}
}

// --- progress ---

func TestProgress(t *testing.T) {
	root := t.TempDir()
	write(t, root, StateFile, `{"phase":"build","percent":40,"steps":["a","b"]}`)
	v, err := New(root).Progress(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	m := v.(map[string]string)
	if m["phase"] != "build" || m["percent"] != "40" || m["steps"] != `["a","b"]` {
		t.Errorf("got %v", m)
	}
}

func TestProgressMissing(t *testing.T) {
	l := lines(t)(New(t.TempDir()).Progress(context.Background()))
	if len(l) != 1 || !strings.Contains(l[0], "no workflow state") {
		t.Errorf("got %v", l)
	}
}

func TestProgressMalformed(t *testing.T) {
	root := t.TempDir()
	write(t, root, StateFile, `{"phase":`)
	if _, err := New(root).Progress(context.Background()); err == nil || !strings.Contains(err.Error(), "malformed") {
		t.Errorf("got %v, want malformed error", err)
	}
}

// --- tasks ---

func TestTasks(t *testing.T) {
	root := t.TempDir()
	write(t, root, TasksDir+"/01.yaml", "title: Write parser\nstatus: done\n")
	write(t, root, TasksDir+"/02.json", `{"title":"Wire watcher","status":"active"}`)
	write(t, root, TasksDir+"/03.md", "intro\n# Ship release\n")
	write(t, root, TasksDir+"/04.txt", "whatever")
	write(t, root, TasksDir+"/.hidden", "x")
	l := lines(t)(New(root).Tasks(context.Background()))
	want := []string{"[done] Write parser", "[active] Wire watcher", "[pending] Ship release", "[pending] 04"}
	if fmt.Sprint(l) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", l, want)
	}
}

func TestTasksEmpty(t *testing.T) {
	l := lines(t)(New(t.TempDir()).Tasks(context.Background()))
	if len(l) != 1 || l[0] != "no tasks" {
		t.Errorf("got %v", l)
	}
}

func TestTasksMalformedYAML(t *testing.T) {
	root := t.TempDir()
	write(t, root, TasksDir+"/bad.yaml", "title: [unclosed\n")
	if _, err := New(root).Tasks(context.Background()); err == nil {
		t.Error("expected error")
	}
}

// --- capabilities ---

func TestCapabilities(t *testing.T) {
	root := t.TempDir()
	write(t, root, CapabilitiesDir+"/git.yaml", "name: git\ndescription: version control\n")
	write(t, root, CapabilitiesDir+"/tools.yml", "- name: go\n- name: docker\n  available: false\n")
	write(t, root, CapabilitiesDir+"/notes.txt", "")
	l := lines(t)(New(root).Capabilities(context.Background()))
	want := []string{"• git: version control", "• notes.txt", "• go", "✗ docker"}
	if fmt.Sprint(l) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", l, want)
	}
}

// --- logs ---

func TestLogsTailsNewest(t *testing.T) {
	root := t.TempDir()
	old := write(t, root, LogsDir+"/old.log", "stale\n")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	write(t, root, LogsDir+"/run.log", b.String())

	l := lines(t)(New(root, WithTailLines(3)).Logs(context.Background()))
	want := []string{"line 8", "line 9", "line 10"}
	if fmt.Sprint(l) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", l, want)
	}
}

func TestLogsMissing(t *testing.T) {
	l := lines(t)(New(t.TempDir()).Logs(context.Background()))
	if len(l) != 1 || l[0] != "no logs" {
		t.Errorf("got %v", l)
	}
}

func TestCancelledContext(t *testing.T) {
	root := t.TempDir()
	write(t, root, StateFile, `{}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(root).Progress(ctx); err == nil {
		t.Error("expected context error")
	}
}
