package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/registry"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/scenario"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/session"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/worktree"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// Store is the session store surface the orchestrator drives
type Store interface {
	NewSession(binary types.DebugAdapterBinary, adapter, label string, taskCtx types.TaskContext, parentID *id.SessionID, worktreeID id.WorktreeID) *session.Session
	Boot(ctx context.Context, s *session.Session) error
	SessionByID(sid id.SessionID) (*session.Session, bool)
	Shutdown(sid id.SessionID) <-chan struct{}
	ChildLabel(adapter, parentLabel string, req types.StartRequest) string
}

// Layouts is the pane layout lookup applied when sessions register
type Layouts interface {
	Get(adapter string) (types.PaneLayout, bool)
}

// Resolver turns scenarios into launch definitions
type Resolver interface {
	Resolve(ctx context.Context, sc types.DebugScenario, taskCtx types.TaskContext, worktreeRoot string) (types.DebugAdapterBinary, error)
}

// Orchestrator drives the debug session lifecycle: starts, restarts, child
// spawns and confirmed closes. All registry mutations funnel through its
// mutex; async sub-flows re-acquire it before touching shared state, so
// interleaved flows always observe a consistent registry.
type Orchestrator struct {
	registry  *registry.Registry
	store     Store
	layouts   Layouts
	worktrees *worktree.Set
	inventory *scenario.Inventory
	resolver  Resolver
	gate      *Gate
	events    *broadcaster

	log     *logging.Logger
	metrics *monitoring.Metrics
	cfg     config.StoreConfig

	mu         sync.Mutex
	restarting map[id.SessionID]bool // Keyed by root session, protected by mu
}

// New creates an orchestrator
func New(store Store, layouts Layouts, worktrees *worktree.Set, resolver Resolver, cfg config.StoreConfig, log *logging.Logger) *Orchestrator {
	o := &Orchestrator{
		registry:   registry.New(),
		store:      store,
		layouts:    layouts,
		worktrees:  worktrees,
		inventory:  scenario.NewInventory(),
		resolver:   resolver,
		gate:       NewGate(),
		events:     newBroadcaster(),
		log:        log.Named("orchestrator"),
		cfg:        cfg,
		restarting: make(map[id.SessionID]bool),
	}
	return o
}

// WithMetrics adds metrics tracking to the orchestrator
func (o *Orchestrator) WithMetrics(metrics *monitoring.Metrics) *Orchestrator {
	o.metrics = metrics
	return o
}

func (o *Orchestrator) lock()   { o.mu.Lock() }
func (o *Orchestrator) unlock() { o.mu.Unlock() }

// Subscribe returns a stream of lifecycle notifications and a cancel
// function. The WebSocket layer is the primary consumer.
func (o *Orchestrator) Subscribe() (<-chan Notification, func()) {
	return o.events.subscribe()
}

// Inventory exposes the scheduling inventory for the task-facing provider
func (o *Orchestrator) Inventory() *scenario.Inventory {
	return o.inventory
}

// Start schedules a debug scenario. The session boots asynchronously; a
// missing worktree makes the whole request a logged no-op.
func (o *Orchestrator) Start(sc types.DebugScenario, taskCtx types.TaskContext, buffer *types.BufferRef, explicitWT *id.WorktreeID) {
	wt, ok := o.worktrees.Resolve(explicitWT, buffer)
	if !ok {
		o.log.Info("dropping start request, no worktree to run in",
			zap.String("scenario", sc.Label))
		return
	}

	o.inventory.DebugScheduled(scenario.Scheduled{
		Scenario:   sc,
		TaskCtx:    taskCtx,
		WorktreeID: wt.ID,
	})

	go o.startInWorktree(sc, taskCtx, wt, nil)
}

// startInWorktree creates, registers and boots a session for a scenario
// inside a known worktree. The handle registers active before resolution so
// focus follows the new session even while resolution suspends on a build.
func (o *Orchestrator) startInWorktree(sc types.DebugScenario, taskCtx types.TaskContext, wt *worktree.Worktree, parentID *id.SessionID) {
	s := o.store.NewSession(types.DebugAdapterBinary{}, sc.Adapter, sc.Label, taskCtx, parentID, wt.ID)

	o.lock()
	o.registry.Register(s, true)
	o.unlock()
	o.announceRegistered(s)

	ctx, cancel := context.WithTimeout(context.Background(), o.bootTimeout())
	defer cancel()

	binary, err := o.resolver.Resolve(ctx, sc, taskCtx, wt.Root)
	if err != nil {
		o.failSession(s, err)
		return
	}
	s.SetBinary(binary)

	o.bootAndWatch(ctx, s)
}

// bootAndWatch boots a session and starts its event pump. Boot failures are
// written to the session console and tear the session down; the error is
// also returned for flows that propagate it.
func (o *Orchestrator) bootAndWatch(ctx context.Context, s *session.Session) error {
	if err := o.store.Boot(ctx, s); err != nil {
		o.failSession(s, err)
		return err
	}

	if o.metrics != nil {
		o.metrics.IncSessionsStarted()
	}
	o.updateActiveGauge()

	go o.pumpEvents(s)
	return nil
}

// failSession applies the resolution/boot failure policy: the error lands
// on the session's console, then the handle is shut down. The registry
// entry stays until the next registration sweeps it; the failure is
// terminal to this one session only.
func (o *Orchestrator) failSession(s *session.Session, cause error) {
	o.log.Error("session start failed",
		zap.String("session_id", s.ID.String()),
		zap.String("adapter", s.Adapter),
		zap.Error(cause))

	msg := fmt.Sprintf("error: %v\n", cause)
	s.ConsoleWrite([]byte(msg))
	o.events.publish(Notification{
		Type:      NotifyOutput,
		SessionID: s.ID.String(),
		Data:      msg,
	})

	if o.metrics != nil {
		o.metrics.IncBootFailures(s.Adapter)
	}

	o.store.Shutdown(s.ID)
	o.events.publish(Notification{Type: NotifyStatus, SessionID: s.ID.String(), Data: types.StatusTerminated})
	o.updateActiveGauge()
}

// pumpEvents is the single handler consuming a session's event stream
func (o *Orchestrator) pumpEvents(s *session.Session) {
	sid := s.ID.String()
	for {
		select {
		case ev := <-s.Events():
			switch ev.Kind {
			case types.EventOutput:
				o.events.publish(Notification{Type: NotifyOutput, SessionID: sid, Data: ev.Output})
			case types.EventStopped:
				o.events.publish(Notification{Type: NotifyStopped, SessionID: sid, Data: ev.Status})
			case types.EventStatusChanged, types.EventExited:
				o.events.publish(Notification{Type: NotifyStatus, SessionID: sid, Data: ev.Status})
				o.updateActiveGauge()
			case types.EventRestart:
				go func() {
					if err := o.Restart(context.Background(), s.ID); err != nil {
						o.log.Warn("adapter-requested restart failed",
							zap.String("session_id", sid),
							zap.Error(err))
					}
				}()
			case types.EventSpawnChildSession:
				if ev.Request != nil {
					o.SpawnChild(s.ID, *ev.Request)
				}
			}
		case <-s.Done():
			// Drain whatever the handle emitted before exiting
			for {
				select {
				case ev := <-s.Events():
					if ev.Kind == types.EventOutput {
						o.events.publish(Notification{Type: NotifyOutput, SessionID: sid, Data: ev.Output})
					}
				default:
					o.events.publish(Notification{Type: NotifyStatus, SessionID: sid, Data: types.StatusTerminated})
					o.updateActiveGauge()
					return
				}
			}
		}
	}
}

// Restart tears down a session's tree and boots a fresh root with the same
// launch definition. Unlike Start, failures propagate to the caller. At most
// one restart per tree runs at a time.
func (o *Orchestrator) Restart(ctx context.Context, sid id.SessionID) error {
	o.lock()

	rootEntry, ok := o.registry.RootOf(sid)
	if !ok {
		o.unlock()
		return fmt.Errorf("session %s not found", sid)
	}
	rootID := rootEntry.SessionID()

	if o.restarting[rootID] {
		o.unlock()
		return fmt.Errorf("restart already in progress for session %s", rootID)
	}
	o.restarting[rootID] = true

	root, ok := o.store.SessionByID(rootID)
	if !ok {
		delete(o.restarting, rootID)
		o.unlock()
		return fmt.Errorf("session %s has no live handle", rootID)
	}

	binary := root.Binary()
	label := root.Label()
	adapter := root.Adapter
	taskCtx := root.TaskContext()
	worktreeID := root.WorktreeID
	subtree := o.subtreeOf(rootID)

	o.unlock()

	defer func() {
		o.lock()
		delete(o.restarting, rootID)
		o.unlock()
	}()

	if o.metrics != nil {
		o.metrics.Restarts.Inc()
	}

	// The old adapter must be fully gone before the new one boots, or both
	// would contend for the same debuggee.
	for _, member := range subtree {
		if member == rootID {
			continue
		}
		o.store.Shutdown(member)
	}
	select {
	case <-o.store.Shutdown(rootID):
	case <-ctx.Done():
		return fmt.Errorf("restart of %s: %w", rootID, ctx.Err())
	}

	o.lock()
	// Descendants sit after their root, so removing them does not shift
	// the slot the replacement goes back into.
	rootPos, _ := o.registry.IndexOf(rootID)
	for _, member := range subtree {
		o.registry.Remove(member)
		o.gate.CancelSession(member)
	}
	o.unlock()

	for _, member := range subtree {
		o.events.publish(Notification{Type: NotifySessionRemoved, SessionID: member.String()})
	}

	fresh := o.store.NewSession(binary, adapter, label, taskCtx, nil, worktreeID)

	o.lock()
	o.registry.RegisterAt(fresh, rootPos, true)
	o.unlock()

	o.announceRegistered(fresh)

	bootCtx, cancel := context.WithTimeout(ctx, o.bootTimeout())
	defer cancel()

	if err := o.bootAndWatch(bootCtx, fresh); err != nil {
		if o.metrics != nil {
			o.metrics.RestartFailures.Inc()
		}
		return fmt.Errorf("restart of %s: %w", rootID, err)
	}
	return nil
}

// SpawnChild boots a child session derived from a running parent. A missing
// parent abandons the request with a log line.
func (o *Orchestrator) SpawnChild(parentID id.SessionID, req types.StartRequest) {
	parent, ok := o.store.SessionByID(parentID)
	if !ok {
		o.log.Info("dropping child spawn, parent session is gone",
			zap.String("parent_id", parentID.String()))
		return
	}
	if _, ok := o.registry.Find(parentID); !ok {
		o.log.Info("dropping child spawn, parent not registered",
			zap.String("parent_id", parentID.String()))
		return
	}

	binary := parent.Binary()
	binary.RequestArgs = req

	label := o.store.ChildLabel(parent.Adapter, parent.Label(), req)
	pid := parentID
	child := o.store.NewSession(binary, parent.Adapter, label, parent.TaskContext(), &pid, parent.WorktreeID)

	// A child only takes focus while its parent has never hit a breakpoint;
	// once the user is inspecting the parent, focus stays there.
	takeFocus := !parent.EverStopped()

	o.lock()
	o.registry.Register(child, takeFocus)
	o.unlock()

	if o.metrics != nil {
		o.metrics.ChildSpawns.Inc()
	}
	o.announceRegistered(child)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.bootTimeout())
		defer cancel()
		o.bootAndWatch(ctx, child)
	}()
}

// Close removes a session. A still-running session first asks the shell for
// confirmation; declining leaves everything untouched. Unknown sessions are
// a logged no-op.
func (o *Orchestrator) Close(sid id.SessionID) {
	o.lock()
	entry, ok := o.registry.Find(sid)
	o.unlock()

	if !ok {
		o.log.Debug("close requested for unknown session",
			zap.String("session_id", sid.String()))
		return
	}

	// The shell owns pane geometry; ask it to persist the session's layout
	// before anything is torn down.
	if s, ok := o.store.SessionByID(sid); ok {
		o.events.publish(Notification{
			Type:      NotifyLayoutSave,
			SessionID: sid.String(),
			Data:      map[string]string{"adapter": s.Adapter},
		})
	}

	if entry.Defunct() {
		o.removeSession(sid)
		return
	}

	pending := o.gate.Open(sid, closeRunningMessage)
	o.events.publish(Notification{
		Type:      NotifyConfirmPending,
		SessionID: sid.String(),
		Data:      pending,
	})

	go func() {
		confirmed := <-pending.Decision()
		o.events.publish(Notification{
			Type:      NotifyConfirmResolved,
			SessionID: sid.String(),
			Data:      confirmed,
		})

		if !confirmed {
			if o.metrics != nil {
				o.metrics.CloseDeclined.Inc()
			}
			return
		}

		// Teardown runs in the background; the entry leaves the registry
		// right away so the shell does not show a half-closed session.
		o.store.Shutdown(sid)
		o.removeSession(sid)

		if o.metrics != nil {
			o.metrics.SessionsClosed.Inc()
		}
	}()
}

// ResolveConfirm answers an open confirmation prompt
func (o *Orchestrator) ResolveConfirm(cid id.ConfirmID, confirmed bool) bool {
	return o.gate.Resolve(cid, confirmed)
}

// PendingConfirms lists open confirmation prompts
func (o *Orchestrator) PendingConfirms() []Pending {
	return o.gate.List()
}

// Activate focuses a registered session. Unknown IDs are a silent no-op.
func (o *Orchestrator) Activate(sid id.SessionID) {
	o.lock()
	ok := o.registry.Activate(sid)
	o.unlock()

	if !ok {
		o.log.Debug("activate requested for unknown session",
			zap.String("session_id", sid.String()))
		return
	}
	o.events.publish(Notification{Type: NotifySessionActivated, SessionID: sid.String()})
}

// RerunLast reruns the most recently scheduled debug scenario
func (o *Orchestrator) RerunLast() error {
	last, ok := o.inventory.Last()
	if !ok {
		return fmt.Errorf("no debug scenario has been scheduled yet")
	}

	wt, ok := o.worktrees.ByID(last.WorktreeID)
	if !ok {
		return fmt.Errorf("worktree %s of the last scenario is gone", last.WorktreeID)
	}

	o.inventory.DebugScheduled(last)
	go o.startInWorktree(last.Scenario, last.TaskCtx, wt, nil)
	return nil
}

// Sessions returns the registered sessions in display order with the active
// flag set on at most one of them.
func (o *Orchestrator) Sessions() []SessionView {
	o.lock()
	entries := o.registry.Sessions()
	activeID, hasActive := o.registry.ActiveID()
	o.unlock()

	out := make([]SessionView, 0, len(entries))
	for _, e := range entries {
		s, ok := o.store.SessionByID(e.SessionID())
		if !ok {
			continue
		}
		view := SessionView{Info: s.Snapshot()}
		view.Active = hasActive && e.SessionID() == activeID
		out = append(out, view)
	}
	return out
}

// Session returns a single session view
func (o *Orchestrator) Session(sid id.SessionID) (SessionView, bool) {
	o.lock()
	_, registered := o.registry.Find(sid)
	activeID, hasActive := o.registry.ActiveID()
	o.unlock()

	if !registered {
		return SessionView{}, false
	}
	s, ok := o.store.SessionByID(sid)
	if !ok {
		return SessionView{}, false
	}

	view := SessionView{Info: s.Snapshot()}
	view.Active = hasActive && sid == activeID
	return view, true
}

// Console returns a session's buffered adapter output
func (o *Orchestrator) Console(sid id.SessionID) ([]byte, bool) {
	s, ok := o.store.SessionByID(sid)
	if !ok {
		return nil, false
	}
	return s.Console(), true
}

// AdapterArguments renders the launch definition of a session's root as
// pretty-printed JSON, for the copy-to-clipboard command in the shell.
func (o *Orchestrator) AdapterArguments(sid id.SessionID) (string, error) {
	o.lock()
	rootEntry, ok := o.registry.RootOf(sid)
	o.unlock()

	if !ok {
		return "", fmt.Errorf("session %s not found", sid)
	}

	root, ok := o.store.SessionByID(rootEntry.SessionID())
	if !ok {
		return "", fmt.Errorf("session %s has no live handle", rootEntry.SessionID())
	}

	data, err := sonic.MarshalIndent(root.Binary(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ActiveSession returns the active session view
func (o *Orchestrator) ActiveSession() (SessionView, bool) {
	o.lock()
	activeID, ok := o.registry.ActiveID()
	o.unlock()

	if !ok {
		return SessionView{}, false
	}
	return o.Session(activeID)
}

// SessionView is a session snapshot plus its registry state
type SessionView struct {
	session.Info
	Active bool `json:"active"`
}

// removeSession drops a session from the registry and cancels its prompts
func (o *Orchestrator) removeSession(sid id.SessionID) {
	o.gate.CancelSession(sid)

	o.lock()
	removed := o.registry.Remove(sid)
	o.unlock()

	if removed {
		o.events.publish(Notification{Type: NotifySessionRemoved, SessionID: sid.String()})
	}
	o.updateActiveGauge()
}

// subtreeOf collects a root and all registered descendants. Must hold lock.
func (o *Orchestrator) subtreeOf(rootID id.SessionID) []id.SessionID {
	var out []id.SessionID
	for _, e := range o.registry.Sessions() {
		if r, ok := o.registry.RootOf(e.SessionID()); ok && r.SessionID() == rootID {
			out = append(out, e.SessionID())
		}
	}
	return out
}

// announceRegistered publishes the registration and applies the adapter's
// saved pane layout.
func (o *Orchestrator) announceRegistered(s *session.Session) {
	o.events.publish(Notification{
		Type:      NotifySessionRegistered,
		SessionID: s.ID.String(),
		Data:      s.Snapshot(),
	})

	if o.layouts != nil {
		if layout, ok := o.layouts.Get(s.Adapter); ok {
			o.events.publish(Notification{
				Type:      NotifyLayout,
				SessionID: s.ID.String(),
				Data:      layout,
			})
		}
	}
}

func (o *Orchestrator) updateActiveGauge() {
	if o.metrics == nil {
		return
	}
	count := 0
	o.lock()
	for _, e := range o.registry.Sessions() {
		if !e.Defunct() {
			count++
		}
	}
	o.unlock()
	o.metrics.SetSessionsActive(count)
}

func (o *Orchestrator) bootTimeout() time.Duration {
	seconds := o.cfg.BootTimeoutSeconds
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}
