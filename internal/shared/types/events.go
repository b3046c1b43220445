package types

// SessionEventKind enumerates the lifecycle events a session handle emits.
// The orchestrator is the single handler matching over the kind; there are no
// ad hoc callbacks.
type SessionEventKind string

const (
	// EventStatusChanged is an ordinary status tick, used only to refresh
	// presentation state.
	EventStatusChanged SessionEventKind = "status_changed"

	// EventStopped fires when the debuggee halts at a breakpoint.
	EventStopped SessionEventKind = "stopped"

	// EventOutput carries a console output line.
	EventOutput SessionEventKind = "output"

	// EventRestart asks the orchestrator to restart the session's tree.
	EventRestart SessionEventKind = "restart"

	// EventSpawnChildSession asks the orchestrator to boot a child session
	// derived from this one.
	EventSpawnChildSession SessionEventKind = "spawn_child_session"

	// EventExited fires once when the adapter process terminates.
	EventExited SessionEventKind = "exited"
)

// SessionEvent is the tagged-variant event type emitted by session handles.
// Request is set only for EventSpawnChildSession, Output only for EventOutput.
type SessionEvent struct {
	Kind    SessionEventKind `json:"kind"`
	Status  Status           `json:"status,omitempty"`
	Output  string           `json:"output,omitempty"`
	Request *StartRequest    `json:"request,omitempty"`
}
