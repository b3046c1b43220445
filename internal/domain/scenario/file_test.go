package scenario

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/paths"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

func TestAppendCreatesDocument(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore()

	sc := types.DebugScenario{Label: "run", Adapter: "delve", Program: "./main"}
	if err := fs.Append(root, sc); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	loaded, err := fs.Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Label != "run" {
		t.Errorf("expected one scenario 'run', got %+v", loaded)
	}
}

func TestAppendPreservesExistingEntries(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore()

	// Hand-written document with custom formatting
	doc := "[\n  {\"label\": \"first\",   \"adapter\": \"delve\"}\n]\n"
	path := paths.ScenarioPath(root)
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte(doc), 0o644)

	if err := fs.Append(root, types.DebugScenario{Label: "second", Adapter: "debugpy"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	loaded, err := fs.Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 scenarios, got %+v", loaded)
	}
	if loaded[0].Label != "first" || loaded[1].Label != "second" {
		t.Errorf("unexpected order: %+v", loaded)
	}

	// The original entry's text is untouched
	data, _ := os.ReadFile(path)
	if !bytes.Contains(data, []byte("\"adapter\": \"delve\"")) {
		t.Error("existing entry formatting should be preserved")
	}
}

func TestAppendEmptyArray(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore()

	path := paths.ScenarioPath(root)
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("[]\n"), 0o644)

	if err := fs.Append(root, types.DebugScenario{Label: "only", Adapter: "delve"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	loaded, err := fs.Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("expected 1 scenario, got %+v", loaded)
	}
}

func TestLoadYAML(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore()

	doc := "- label: yaml-run\n  adapter: delve\n  program: ./main\n"
	path := paths.ScenarioPathYAML(root)
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte(doc), 0o644)

	loaded, err := fs.Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Label != "yaml-run" {
		t.Errorf("expected yaml scenario, got %+v", loaded)
	}
}

func TestLoadMissingIsEmpty(t *testing.T) {
	fs := NewFileStore()
	loaded, err := fs.Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected no scenarios, got %+v", loaded)
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore()

	fs.Append(root, types.DebugScenario{Label: "a", Adapter: "delve"})
	fs.Append(root, types.DebugScenario{Label: "b", Adapter: "debugpy"})

	sc, ok, err := fs.Find(root, "b")
	if err != nil || !ok {
		t.Fatalf("Find failed: ok=%v err=%v", ok, err)
	}
	if sc.Adapter != "debugpy" {
		t.Errorf("wrong scenario found: %+v", sc)
	}

	if _, ok, _ := fs.Find(root, "missing"); ok {
		t.Error("missing label should not be found")
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	fs := NewFileStore()

	fs.Append(root, types.DebugScenario{Label: "top", Adapter: "delve"})

	nested := filepath.Join(root, "svc", paths.SettingsDir)
	os.MkdirAll(nested, 0o755)
	os.WriteFile(filepath.Join(nested, "scenarios.yaml"), []byte("- label: n\n  adapter: delve\n"), 0o644)

	// Skipped directory
	ignored := filepath.Join(root, "node_modules", "pkg", paths.SettingsDir)
	os.MkdirAll(ignored, 0o755)
	os.WriteFile(filepath.Join(ignored, "scenarios.json"), []byte("[]"), 0o644)

	found, err := fs.Discover(root)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 documents, got %v", found)
	}
	for _, rel := range found {
		if strings.HasPrefix(rel, "node_modules") {
			t.Errorf("node_modules should be skipped, found %s", rel)
		}
	}
}
