package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// childSuffix is appended to a parent label to derive a child session label
// when the adapter does not provide one.
const childSuffix = " (child)"

// Adapter describes a registered debug adapter. ChildLabel, when set,
// overrides the derived label for child sessions spawned by this adapter.
type Adapter struct {
	Name       string
	ChildLabel func(req types.StartRequest) string
}

// Store owns session handles and their adapter processes. Spawns go through
// a per-command circuit breaker so a broken adapter binary fails fast.
type Store struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session      // Protected by mu
	adapters map[string]Adapter             // Protected by mu
	breakers map[string]*resilience.Breaker // Keyed by adapter command, protected by mu

	cfg     config.StoreConfig
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewStore creates a session store
func NewStore(cfg config.StoreConfig, log *logging.Logger) *Store {
	return &Store{
		sessions: make(map[id.SessionID]*Session),
		adapters: make(map[string]Adapter),
		breakers: make(map[string]*resilience.Breaker),
		cfg:      cfg,
		log:      log.Named("store"),
	}
}

// WithMetrics adds metrics tracking to the store
func (st *Store) WithMetrics(metrics *monitoring.Metrics) *Store {
	st.metrics = metrics
	return st
}

// RegisterAdapter registers a debug adapter definition
func (st *Store) RegisterAdapter(a Adapter) {
	st.mu.Lock()
	st.adapters[a.Name] = a
	st.mu.Unlock()
}

// NewSession allocates a session handle without spawning anything. The handle
// is held by the store immediately so lookups during boot succeed.
func (st *Store) NewSession(binary types.DebugAdapterBinary, adapter, label string, taskCtx types.TaskContext, parentID *id.SessionID, worktreeID id.WorktreeID) *Session {
	s := &Session{
		ID:         id.NewSessionID(),
		ParentID:   parentID,
		Adapter:    adapter,
		WorktreeID: worktreeID,
		StartedAt:  time.Now(),
		console:    NewBuffer(st.cfg.ConsoleBufferBytes),
		events:     make(chan types.SessionEvent, eventBufferSize),
		done:       make(chan struct{}),
		label:      label,
		status:     types.StatusBooting,
		binary:     binary.Clone(),
		taskCtx:    taskCtx.Clone(),
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()

	return s
}

// Boot spawns the adapter process for a session. On failure the session is
// left in booting state; the caller decides how to report and tear down.
func (st *Store) Boot(ctx context.Context, s *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	binary := s.Binary()
	if binary.Command == "" {
		return fmt.Errorf("adapter %s: no command to spawn", s.Adapter)
	}

	breaker := st.breakerFor(binary.Command)

	// Each spawn attempt gets its own id so retries of the same session can
	// be told apart in the logs.
	attempt := uuid.NewString()

	start := time.Now()
	err := breaker.Execute(func() error {
		return st.spawn(s, binary)
	})
	if err != nil {
		st.log.Warn("adapter spawn failed",
			zap.String("session_id", s.ID.String()),
			zap.String("attempt_id", attempt),
			zap.String("command", binary.Command),
			zap.Error(err))
		if err == resilience.ErrCircuitOpen || err == resilience.ErrTooManyRequests {
			if st.metrics != nil {
				st.metrics.IncBreakerOpen(s.Adapter)
			}
			return fmt.Errorf("adapter %s unavailable: %w", s.Adapter, err)
		}
		return err
	}

	if st.metrics != nil {
		st.metrics.RecordSpawn(s.Adapter, time.Since(start))
	}

	s.setStatus(types.StatusRunning)
	st.log.Info("adapter spawned",
		zap.String("session_id", s.ID.String()),
		zap.String("attempt_id", attempt),
		zap.String("adapter", s.Adapter),
		zap.String("command", binary.Command))

	return nil
}

// spawn starts the adapter process under a PTY and wires the output reader
// and exit monitor.
func (st *Store) spawn(s *Session, binary types.DebugAdapterBinary) error {
	s.mu.RLock()
	gone := s.shuttingDown
	s.mu.RUnlock()
	if gone {
		return fmt.Errorf("session %s is already shut down", s.ID)
	}

	cmd := exec.Command(binary.Command, binary.Args...)

	taskCtx := s.TaskContext()
	cwd := binary.Cwd
	if cwd == "" {
		cwd = taskCtx.Cwd
	}
	cmd.Dir = cwd

	cmd.Env = os.Environ()
	for key, value := range taskCtx.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}
	for key, value := range binary.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to start adapter: %w", err)
	}

	s.mu.Lock()
	if s.shuttingDown {
		// Shutdown won the race while the process was starting; it never
		// saw a cmd to kill, so reap it here.
		s.mu.Unlock()
		cmd.Process.Kill()
		ptmx.Close()
		cmd.Wait()
		return fmt.Errorf("session %s shut down during spawn", s.ID)
	}
	s.cmd = cmd
	s.ptmx = ptmx
	s.mu.Unlock()

	go st.readOutput(s)
	go st.monitorProcess(s)

	return nil
}

// readOutput continuously reads adapter output into the console buffer and
// raises output events.
func (st *Store) readOutput(s *Session) {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.console.Write(buf[:n])
			s.emit(types.SessionEvent{Kind: types.EventOutput, Output: string(buf[:n])})
		}
		if err != nil {
			if err != io.EOF {
				st.log.Debug("adapter output read ended",
					zap.String("session_id", s.ID.String()),
					zap.Error(err))
			}
			return
		}
	}
}

// monitorProcess waits for the adapter process to exit, marks the session
// terminated and closes its done channel.
func (st *Store) monitorProcess(s *Session) {
	s.cmd.Wait()
	s.ptmx.Close()

	s.setStatus(types.StatusTerminated)
	s.finish()
}

// SessionByID retrieves a session handle
func (st *Store) SessionByID(sid id.SessionID) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[sid]
	return s, ok
}

// Sessions returns all held session handles
func (st *Store) Sessions() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// Shutdown terminates a session's adapter process and forgets the handle.
// The returned channel closes once the process has fully exited; callers
// that must sequence work after teardown (restart) wait on it. Shutting
// down an unknown or never-booted session completes immediately.
func (st *Store) Shutdown(sid id.SessionID) <-chan struct{} {
	st.mu.Lock()
	s, ok := st.sessions[sid]
	if ok {
		delete(st.sessions, sid)
	}
	st.mu.Unlock()

	if !ok {
		return closedChan()
	}

	s.mu.Lock()
	s.shuttingDown = true
	cmd := s.cmd
	ptmx := s.ptmx
	s.mu.Unlock()

	if cmd == nil {
		// Never spawned, or the spawn is still in flight and will reap
		// itself; terminate the handle directly.
		s.setStatus(types.StatusTerminated)
		s.finish()
		return s.done
	}

	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	if ptmx != nil {
		ptmx.Close()
	}

	// monitorProcess closes done after Wait returns
	return s.done
}

// ChildLabel derives the label for a child session: the adapter override
// when registered, otherwise the parent label with a child suffix. Already
// suffixed labels are kept as-is so restarted children do not accumulate
// suffixes.
func (st *Store) ChildLabel(adapter, parentLabel string, req types.StartRequest) string {
	st.mu.RLock()
	a, ok := st.adapters[adapter]
	st.mu.RUnlock()

	if ok && a.ChildLabel != nil {
		if label := a.ChildLabel(req); label != "" {
			return label
		}
	}
	if strings.HasSuffix(parentLabel, childSuffix) {
		return parentLabel
	}
	return parentLabel + childSuffix
}

// breakerFor returns the circuit breaker guarding spawns of a command
func (st *Store) breakerFor(command string) *resilience.Breaker {
	st.mu.Lock()
	defer st.mu.Unlock()

	if b, ok := st.breakers[command]; ok {
		return b
	}

	threshold := uint32(st.cfg.SpawnFailureThreshold)
	b := resilience.New(command, resilience.Settings{
		MaxRequests: 1,
		Timeout:     time.Duration(st.cfg.SpawnBreakerSeconds) * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to resilience.State) {
			st.log.Warn("spawn breaker state change",
				zap.String("command", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	st.breakers[command] = b
	return b
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
