// Package paths provides standardized filesystem paths for consistent access
// across the backend.
//
// Worktree-relative locations mirror what the shell expects; state locations
// live under the configurable state directory.
package paths

import "path/filepath"

// Worktree-relative locations
const (
	// SettingsDir is the per-worktree configuration directory.
	SettingsDir = ".debug"

	// ScenarioFile is the editable JSON scenario document inside SettingsDir.
	ScenarioFile = "scenarios.json"

	// ScenarioFileYAML is the read-only YAML scenario document inside SettingsDir.
	ScenarioFileYAML = "scenarios.yaml"
)

// State-directory subpaths
const (
	// Layouts contains per-adapter serialized pane layouts.
	Layouts = "layouts"
)

// ScenarioPath returns the JSON scenario document path for a worktree root.
func ScenarioPath(worktreeRoot string) string {
	return filepath.Join(worktreeRoot, SettingsDir, ScenarioFile)
}

// ScenarioPathYAML returns the YAML scenario document path for a worktree root.
func ScenarioPathYAML(worktreeRoot string) string {
	return filepath.Join(worktreeRoot, SettingsDir, ScenarioFileYAML)
}

// LayoutPath returns the pane layout file for an adapter name.
func LayoutPath(stateDir, adapter string) string {
	return filepath.Join(stateDir, Layouts, adapter+".json")
}
