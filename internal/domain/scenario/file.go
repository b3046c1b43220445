package scenario

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/paths"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// scenarioGlob matches scenario documents anywhere under a worktree, so
// nested projects carrying their own settings directory are found too.
const scenarioGlob = "**/" + paths.SettingsDir + "/" + "scenarios.{json,yaml}"

// skipDirs are never descended into during discovery
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
}

// FileStore reads and appends scenario documents inside worktrees. The JSON
// document is user-editable, so writes splice into the existing text instead
// of rewriting the whole file and destroying formatting of other entries.
type FileStore struct{}

// NewFileStore creates a scenario file store
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Load reads the scenarios defined at a worktree root. JSON entries come
// first, then YAML. A missing document is not an error.
func (f *FileStore) Load(worktreeRoot string) ([]types.DebugScenario, error) {
	var out []types.DebugScenario

	jsonPath := paths.ScenarioPath(worktreeRoot)
	if data, err := os.ReadFile(jsonPath); err == nil {
		var scenarios []types.DebugScenario
		if err := sonic.Unmarshal(data, &scenarios); err != nil {
			return nil, fmt.Errorf("parse %s: %w", jsonPath, err)
		}
		out = append(out, scenarios...)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	yamlPath := paths.ScenarioPathYAML(worktreeRoot)
	if data, err := os.ReadFile(yamlPath); err == nil {
		var scenarios []types.DebugScenario
		if err := yaml.Unmarshal(data, &scenarios); err != nil {
			return nil, fmt.Errorf("parse %s: %w", yamlPath, err)
		}
		out = append(out, scenarios...)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return out, nil
}

// Find returns the scenario with the given label at a worktree root
func (f *FileStore) Find(worktreeRoot, label string) (types.DebugScenario, bool, error) {
	scenarios, err := f.Load(worktreeRoot)
	if err != nil {
		return types.DebugScenario{}, false, err
	}
	for _, sc := range scenarios {
		if sc.Label == label {
			return sc, true, nil
		}
	}
	return types.DebugScenario{}, false, nil
}

// Append adds a scenario to the JSON document at a worktree root, creating
// the document when missing. Existing entries keep their formatting; the new
// entry is spliced in before the closing bracket.
func (f *FileStore) Append(worktreeRoot string, sc types.DebugScenario) error {
	entry, err := sonic.MarshalIndent(sc, "  ", "  ")
	if err != nil {
		return err
	}

	path := paths.ScenarioPath(worktreeRoot)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		doc := fmt.Sprintf("[\n  %s\n]\n", entry)
		return os.WriteFile(path, []byte(doc), 0o644)
	}
	if err != nil {
		return err
	}

	closing := bytes.LastIndexByte(data, ']')
	if closing < 0 {
		return fmt.Errorf("%s: no closing bracket, refusing to modify", path)
	}

	body := bytes.TrimRight(data[:closing], " \t\n\r")
	var buf bytes.Buffer
	buf.Write(body)
	if bytes.ContainsAny(body, "{") {
		buf.WriteString(",")
	}
	buf.WriteString("\n  ")
	buf.Write(entry)
	buf.WriteString("\n]")
	buf.Write(data[closing+1:])

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Discover walks a worktree and returns every scenario document path,
// relative to the root.
func (f *FileStore) Discover(worktreeRoot string) ([]string, error) {
	var mu sync.Mutex
	var found []string

	// fastwalk runs the callback from multiple workers
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, worktreeRoot, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(worktreeRoot, p)
		if err != nil {
			return nil
		}
		if matched, _ := doublestar.Match(scenarioGlob, filepath.ToSlash(rel)); matched {
			mu.Lock()
			found = append(found, rel)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return found, nil
}
