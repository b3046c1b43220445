package session

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// eventBufferSize bounds the per-session event channel. Output events are
// dropped when the consumer lags; control events fit well within the bound
// because each session raises at most a handful.
const eventBufferSize = 128

// Session is a live debug session handle: the adapter process plus the
// state the shell renders. Lifecycle decisions are not made here; the
// handle only reports what happened through its event channel.
type Session struct {
	ID         id.SessionID
	ParentID   *id.SessionID
	Adapter    string
	WorktreeID id.WorktreeID
	StartedAt  time.Time

	// Process management
	cmd  *exec.Cmd
	ptmx *os.File

	console  *Buffer
	events   chan types.SessionEvent
	done     chan struct{}
	doneOnce sync.Once

	mu           sync.RWMutex
	label        string
	status       types.Status
	everStopped  bool
	shuttingDown bool
	binary       types.DebugAdapterBinary
	taskCtx      types.TaskContext
	dropped      uint64 // Events discarded because the channel was full
}

// SessionID returns the session's ID
func (s *Session) SessionID() id.SessionID {
	return s.ID
}

// ParentSessionID returns the parent session ID, nil for root sessions
func (s *Session) ParentSessionID() *id.SessionID {
	return s.ParentID
}

// Defunct reports whether the session has reached a terminal state
func (s *Session) Defunct() bool {
	return s.Status().Terminal()
}

// Label returns the display label
func (s *Session) Label() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.label
}

// SetLabel updates the display label
func (s *Session) SetLabel(label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
}

// Status returns the current lifecycle status
func (s *Session) Status() types.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// EverStopped reports whether the debuggee has ever halted at a breakpoint.
// Child sessions of a parent that never stopped take focus on spawn.
func (s *Session) EverStopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.everStopped
}

// Binary returns a deep copy of the launch definition this session booted
// with. Restarts and child spawns derive their binaries from it.
func (s *Session) Binary() types.DebugAdapterBinary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.binary.Clone()
}

// SetBinary caches the resolved launch definition. Sessions are allocated
// before scenario resolution finishes, so the binary arrives late.
func (s *Session) SetBinary(binary types.DebugAdapterBinary) {
	s.mu.Lock()
	s.binary = binary.Clone()
	s.mu.Unlock()
}

// TaskContext returns a copy of the variable context the session resolved
// against.
func (s *Session) TaskContext() types.TaskContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskCtx.Clone()
}

// Events is the stream of lifecycle events the orchestrator consumes.
func (s *Session) Events() <-chan types.SessionEvent {
	return s.events
}

// Done is closed once the adapter process has fully terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Console returns a snapshot of buffered adapter output
func (s *Session) Console() []byte {
	return s.console.Snapshot()
}

// ConsoleWrite appends a line to the console buffer and raises an output
// event. Lifecycle errors land here so the shell shows them inline with the
// adapter's own output.
func (s *Session) ConsoleWrite(p []byte) {
	s.console.Write(p)
	s.emit(types.SessionEvent{Kind: types.EventOutput, Output: string(p)})
}

// finish closes the done channel exactly once. Both the process monitor and
// an early shutdown may reach a session's end of life.
func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// RequestRestart asks the orchestrator to restart this session's tree
func (s *Session) RequestRestart() {
	s.emit(types.SessionEvent{Kind: types.EventRestart})
}

// RequestChildSession asks the orchestrator to boot a child session derived
// from this one with the given reverse-request payload.
func (s *Session) RequestChildSession(req types.StartRequest) {
	s.emit(types.SessionEvent{Kind: types.EventSpawnChildSession, Request: &req})
}

// MarkStopped records a breakpoint halt and raises the stopped event
func (s *Session) MarkStopped() {
	s.setStatus(types.StatusStopped)
}

// Resume moves a stopped session back to running
func (s *Session) Resume() {
	s.setStatus(types.StatusRunning)
}

// setStatus transitions the session and emits the matching event. Terminal
// states are sticky; transitions out of terminated are ignored.
func (s *Session) setStatus(next types.Status) {
	s.mu.Lock()
	if s.status.Terminal() || s.status == next {
		s.mu.Unlock()
		return
	}
	s.status = next
	if next == types.StatusStopped {
		s.everStopped = true
	}
	s.mu.Unlock()

	switch next {
	case types.StatusStopped:
		s.emit(types.SessionEvent{Kind: types.EventStopped, Status: next})
	case types.StatusTerminated:
		s.emit(types.SessionEvent{Kind: types.EventExited, Status: next})
	default:
		s.emit(types.SessionEvent{Kind: types.EventStatusChanged, Status: next})
	}
}

// emit delivers an event without blocking. A full channel drops the event
// and counts it; the ring buffer still holds the console output.
func (s *Session) emit(ev types.SessionEvent) {
	select {
	case s.events <- ev:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Info is the public representation of a session
type Info struct {
	ID           id.SessionID       `json:"id"`
	ParentID     *id.SessionID      `json:"parent_id,omitempty"`
	Label        string             `json:"label"`
	Adapter      string             `json:"adapter"`
	WorktreeID   id.WorktreeID      `json:"worktree_id"`
	Status       types.Status       `json:"status"`
	ThreadStatus types.ThreadStatus `json:"thread_status"`
	EverStopped  bool               `json:"ever_stopped"`
	StartedAt    time.Time          `json:"started_at"`
}

// Snapshot returns the public view of the session
func (s *Session) Snapshot() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Info{
		ID:           s.ID,
		ParentID:     s.ParentID,
		Label:        s.label,
		Adapter:      s.Adapter,
		WorktreeID:   s.WorktreeID,
		Status:       s.status,
		ThreadStatus: types.ThreadStatusFor(s.status),
		EverStopped:  s.everStopped,
		StartedAt:    s.StartedAt,
	}
}
