package types

import (
	"encoding/json"
	"time"
)

// Status represents session lifecycle states
type Status string

const (
	StatusBooting    Status = "booting"
	StatusRunning    Status = "running"
	StatusStopped    Status = "stopped" // Halted at a breakpoint, inspectable
	StatusTerminated Status = "terminated"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusTerminated
}

// ThreadStatus represents the debuggee thread state surfaced to the shell
type ThreadStatus string

const (
	ThreadRunning ThreadStatus = "running"
	ThreadStopped ThreadStatus = "stopped"
	ThreadExited  ThreadStatus = "exited"
)

// ThreadStatusFor maps a session status to the thread state the shell renders.
func ThreadStatusFor(s Status) ThreadStatus {
	switch s {
	case StatusStopped:
		return ThreadStopped
	case StatusTerminated:
		return ThreadExited
	default:
		return ThreadRunning
	}
}

// StartRequest is the payload of a child-session spawn request raised by an
// adapter (the DAP "startDebugging" reverse request).
type StartRequest struct {
	Request       string                 `json:"request"` // "launch" or "attach"
	Configuration map[string]interface{} `json:"configuration"`
}

// DebugAdapterBinary is a concrete launch definition: the adapter process to
// spawn plus the request arguments handed to it. Sessions cache their binary
// so restarts and child spawns can be derived from it.
type DebugAdapterBinary struct {
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	RequestArgs StartRequest      `json:"request_args"`
}

// Clone returns a deep copy so overlaying a child request never mutates the
// parent's cached binary.
func (b DebugAdapterBinary) Clone() DebugAdapterBinary {
	out := b
	out.Args = append([]string(nil), b.Args...)
	if b.Env != nil {
		out.Env = make(map[string]string, len(b.Env))
		for k, v := range b.Env {
			out.Env[k] = v
		}
	}
	if b.RequestArgs.Configuration != nil {
		cfg := make(map[string]interface{}, len(b.RequestArgs.Configuration))
		for k, v := range b.RequestArgs.Configuration {
			cfg[k] = v
		}
		out.RequestArgs.Configuration = cfg
	}
	return out
}

// PaneLayout is the serialized pane layout persisted per adapter name and
// applied when a session for that adapter is registered.
type PaneLayout struct {
	Adapter      string          `json:"adapter"`
	DockPosition string          `json:"dock_position,omitempty"`
	Panes        json.RawMessage `json:"panes,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BufferRef identifies an open source buffer in the shell; only the absolute
// path matters to the backend (worktree resolution).
type BufferRef struct {
	Path string `json:"path"`
}
