package types

// DebugScenario is a named, reusable debug launch configuration. It resolves
// into a DebugAdapterBinary given a TaskContext and a worktree.
type DebugScenario struct {
	Label   string                 `json:"label"`
	Adapter string                 `json:"adapter"`
	Request string                 `json:"request,omitempty"` // "launch" (default) or "attach"
	Program string                 `json:"program,omitempty"`
	Args    []string               `json:"args,omitempty"`
	Cwd     string                 `json:"cwd,omitempty"`
	Env     map[string]string      `json:"env,omitempty"`
	Build   string                 `json:"build,omitempty"` // Build task to run before boot
	Config  map[string]interface{} `json:"config,omitempty"`
}

// TaskContext carries the variable environment a scenario is resolved
// against: the directory the shell considers current plus task variables
// (e.g. ZED_FILE-style substitutions) collected from the active buffer.
type TaskContext struct {
	Cwd  string            `json:"cwd,omitempty"`
	Env  map[string]string `json:"env,omitempty"`
	Vars map[string]string `json:"vars,omitempty"`
}

// Clone returns a copy with its own maps.
func (t TaskContext) Clone() TaskContext {
	out := t
	if t.Env != nil {
		out.Env = make(map[string]string, len(t.Env))
		for k, v := range t.Env {
			out.Env[k] = v
		}
	}
	if t.Vars != nil {
		out.Vars = make(map[string]string, len(t.Vars))
		for k, v := range t.Vars {
			out.Vars[k] = v
		}
	}
	return out
}
