package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/session"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/worktree"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// fakeStore allocates real handles but never spawns adapter processes.
// Boot outcomes are scripted per adapter name.
type fakeStore struct {
	*session.Store
	bootErr map[string]error

	// When set, Shutdown reports this channel as the teardown signal so
	// tests can hold a shutdown open.
	shutdownHold chan struct{}

	mu     sync.Mutex
	booted []id.SessionID
}

func newFakeStore() *fakeStore {
	cfg := config.StoreConfig{
		BootTimeoutSeconds:    5,
		SpawnFailureThreshold: 3,
		SpawnBreakerSeconds:   1,
		ConsoleBufferBytes:    4096,
	}
	return &fakeStore{
		Store:   session.NewStore(cfg, logging.NewNop()),
		bootErr: make(map[string]error),
	}
}

func (f *fakeStore) Boot(ctx context.Context, s *session.Session) error {
	if err := f.bootErr[s.Adapter]; err != nil {
		return err
	}
	f.mu.Lock()
	f.booted = append(f.booted, s.ID)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) bootCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.booted)
}

func (f *fakeStore) Shutdown(sid id.SessionID) <-chan struct{} {
	done := f.Store.Shutdown(sid)
	if f.shutdownHold != nil {
		return f.shutdownHold
	}
	return done
}

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, sc types.DebugScenario, taskCtx types.TaskContext, worktreeRoot string) (types.DebugAdapterBinary, error) {
	if f.err != nil {
		return types.DebugAdapterBinary{}, f.err
	}
	return types.DebugAdapterBinary{
		Command: "fake-adapter",
		RequestArgs: types.StartRequest{
			Request:       "launch",
			Configuration: map[string]interface{}{"name": sc.Label},
		},
	}, nil
}

// blockingResolver suspends resolution until the test releases it, the way
// a real resolution suspends on a build task.
type blockingResolver struct {
	release chan error
}

func (b *blockingResolver) Resolve(ctx context.Context, sc types.DebugScenario, taskCtx types.TaskContext, worktreeRoot string) (types.DebugAdapterBinary, error) {
	if err := <-b.release; err != nil {
		return types.DebugAdapterBinary{}, err
	}
	return types.DebugAdapterBinary{Command: "fake-adapter"}, nil
}

type fixture struct {
	orch      *Orchestrator
	store     *fakeStore
	worktrees *worktree.Set
	wt        *worktree.Worktree
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newFakeStore()
	worktrees := worktree.NewSet()
	wt := worktrees.Add(t.TempDir(), true)

	cfg := config.StoreConfig{BootTimeoutSeconds: 5}
	orch := New(store, nil, worktrees, &fakeResolver{}, cfg, logging.NewNop())

	return &fixture{orch: orch, store: store, worktrees: worktrees, wt: wt}
}

// waitFor polls until the condition holds or the deadline passes
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func scenarioNamed(label string) types.DebugScenario {
	return types.DebugScenario{Label: label, Adapter: "delve"}
}

func TestStartRegistersAndActivates(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)

	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })

	views := f.orch.Sessions()
	if views[0].Label != "run" {
		t.Errorf("expected label 'run', got %q", views[0].Label)
	}
	if !views[0].Active {
		t.Error("started session should be active")
	}
	if f.store.bootCount() != 1 {
		t.Errorf("expected one boot, got %d", f.store.bootCount())
	}
}

func TestStartWithoutWorktreeIsNoop(t *testing.T) {
	store := newFakeStore()
	orch := New(store, nil, worktree.NewSet(), &fakeResolver{}, config.StoreConfig{}, logging.NewNop())

	orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, nil)

	time.Sleep(20 * time.Millisecond)
	if len(orch.Sessions()) != 0 {
		t.Error("start without a worktree should register nothing")
	}
	if store.bootCount() != 0 {
		t.Error("nothing should boot without a worktree")
	}
}

func TestStartRegistersBeforeResolution(t *testing.T) {
	f := newFixture(t)
	resolver := &blockingResolver{release: make(chan error)}
	f.orch.resolver = resolver

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)

	// The handle exists and holds focus while resolution is suspended
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	if !f.orch.Sessions()[0].Active {
		t.Error("new session should hold focus during resolution")
	}
	if f.store.bootCount() != 0 {
		t.Error("boot must wait for resolution")
	}

	resolver.release <- nil
	waitFor(t, func() bool { return f.store.bootCount() == 1 })
}

func TestResolutionFailureWritesConsole(t *testing.T) {
	f := newFixture(t)
	resolver := &blockingResolver{release: make(chan error)}
	f.orch.resolver = resolver

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return f.orch.registry.Len() == 1 })

	resolver.release <- errors.New("build failed")

	// The error lands on the session's own console and the handle is torn
	// down; the registry entry lingers until the next registration.
	waitFor(t, func() bool {
		entries := f.orch.registry.Sessions()
		if len(entries) != 1 {
			return false
		}
		s := entries[0].(*session.Session)
		return s.Defunct() && strings.Contains(string(s.Console()), "error: build failed")
	})
	if f.store.bootCount() != 0 {
		t.Error("nothing should boot after failed resolution")
	}
}

func TestBootFailurePrunedLazily(t *testing.T) {
	f := newFixture(t)
	f.store.bootErr["delve"] = errors.New("adapter not installed")

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)

	waitFor(t, func() bool {
		entries := f.orch.registry.Sessions()
		if len(entries) != 1 {
			return false
		}
		s := entries[0].(*session.Session)
		return s.Defunct() && strings.Contains(string(s.Console()), "error: adapter not installed")
	})
	failedID := f.orch.registry.Sessions()[0].SessionID()

	// The next registration sweeps the dead entry
	f.orch.Start(types.DebugScenario{Label: "next", Adapter: "debugpy"}, types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool {
		entries := f.orch.registry.Sessions()
		return len(entries) == 1 && entries[0].SessionID() != failedID
	})
}

func TestRestartReplacesHandle(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })

	oldID := f.orch.Sessions()[0].ID

	if err := f.orch.Restart(context.Background(), oldID); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	views := f.orch.Sessions()
	if len(views) != 1 {
		t.Fatalf("expected exactly one session after restart, got %d", len(views))
	}
	if views[0].ID == oldID {
		t.Error("restart should produce a fresh session handle")
	}
	if views[0].Label != "run" {
		t.Errorf("restarted session should keep its label, got %q", views[0].Label)
	}
	if _, ok := f.store.SessionByID(oldID); ok {
		t.Error("old handle should be gone from the store")
	}
}

func TestRestartUnknownSessionErrors(t *testing.T) {
	f := newFixture(t)

	if err := f.orch.Restart(context.Background(), id.NewSessionID()); err == nil {
		t.Error("restarting an unknown session should error")
	}
}

func TestRestartPropagatesBootFailure(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })

	sid := f.orch.Sessions()[0].ID
	f.store.bootErr["delve"] = errors.New("spawn exploded")

	if err := f.orch.Restart(context.Background(), sid); err == nil {
		t.Error("restart should propagate the boot failure to the caller")
	}
	if len(f.orch.Sessions()) != 0 {
		t.Error("failed restart should leave no session behind")
	}
}

func TestRestartKeepsTreePosition(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("one"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	f.orch.Start(scenarioNamed("two"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 2 })

	oneID := f.orch.Sessions()[0].ID

	if err := f.orch.Restart(context.Background(), oneID); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	views := f.orch.Sessions()
	if len(views) != 2 {
		t.Fatalf("expected two sessions after restart, got %d", len(views))
	}
	if views[0].Label != "one" {
		t.Errorf("restarted session should keep its slot, got order %q, %q", views[0].Label, views[1].Label)
	}
	if views[0].ID == oneID {
		t.Error("restart should produce a fresh handle in the old slot")
	}
}

func TestRestartFromChildRestartsRoot(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	rootID := f.orch.Sessions()[0].ID

	f.orch.SpawnChild(rootID, types.StartRequest{Request: "launch"})
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 2 })

	var childID id.SessionID
	for _, v := range f.orch.Sessions() {
		if v.ParentID != nil {
			childID = v.ID
		}
	}

	if err := f.orch.Restart(context.Background(), childID); err != nil {
		t.Fatalf("Restart via child failed: %v", err)
	}

	views := f.orch.Sessions()
	if len(views) != 1 {
		t.Fatalf("restart should collapse the tree to one fresh root, got %d", len(views))
	}
	if views[0].ParentID != nil {
		t.Error("restarted session should be a root")
	}
}

func TestSpawnChildOrderingAndLabel(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	parentID := f.orch.Sessions()[0].ID

	f.orch.SpawnChild(parentID, types.StartRequest{Request: "launch"})
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 2 })

	views := f.orch.Sessions()
	if views[0].ID != parentID {
		t.Error("parent should come first in display order")
	}
	child := views[1]
	if child.ParentID == nil || *child.ParentID != parentID {
		t.Error("child should link to its parent")
	}
	if child.Label != "run (child)" {
		t.Errorf("expected derived child label, got %q", child.Label)
	}
}

func TestChildFocusRule(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	parentID := f.orch.Sessions()[0].ID

	// Parent never stopped: child takes focus
	f.orch.SpawnChild(parentID, types.StartRequest{})
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 2 })

	active, _ := f.orch.ActiveSession()
	if active.ID == parentID {
		t.Error("child of a never-stopped parent should take focus")
	}

	// Refocus parent and mark it stopped; the next child must not steal focus
	f.orch.Activate(parentID)
	parent, _ := f.store.SessionByID(parentID)
	parent.MarkStopped()

	f.orch.SpawnChild(parentID, types.StartRequest{})
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 3 })

	active, _ = f.orch.ActiveSession()
	if active.ID != parentID {
		t.Error("child of a stopped parent should not steal focus")
	}
}

func TestSpawnChildMissingParentIsNoop(t *testing.T) {
	f := newFixture(t)

	f.orch.SpawnChild(id.NewSessionID(), types.StartRequest{})

	time.Sleep(20 * time.Millisecond)
	if len(f.orch.Sessions()) != 0 {
		t.Error("child spawn with a vanished parent should register nothing")
	}
}

func TestCloseRunningSessionPrompts(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	sid := f.orch.Sessions()[0].ID

	f.orch.Close(sid)

	pending := f.orch.PendingConfirms()
	if len(pending) != 1 {
		t.Fatalf("expected one open prompt, got %d", len(pending))
	}
	if pending[0].SessionID != sid {
		t.Error("prompt should reference the closing session")
	}

	// Session is untouched while the prompt is open
	if len(f.orch.Sessions()) != 1 {
		t.Error("session should survive while the prompt is open")
	}

	// Decline: everything stays
	if !f.orch.ResolveConfirm(pending[0].ID, false) {
		t.Fatal("ResolveConfirm failed")
	}
	time.Sleep(20 * time.Millisecond)
	if len(f.orch.Sessions()) != 1 {
		t.Error("declining the prompt should leave the session running")
	}

	// Confirm on a second attempt: session goes away
	f.orch.Close(sid)
	pending = f.orch.PendingConfirms()
	if len(pending) != 1 {
		t.Fatalf("expected a fresh prompt, got %d", len(pending))
	}
	f.orch.ResolveConfirm(pending[0].ID, true)

	waitFor(t, func() bool { return len(f.orch.Sessions()) == 0 })
	if _, ok := f.store.SessionByID(sid); ok {
		t.Error("confirmed close should shut the session down")
	}
}

func TestConfirmedCloseRemovesEntryBeforeTeardown(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	sid := f.orch.Sessions()[0].ID

	// Hold the teardown open; the entry must still leave the registry
	f.store.shutdownHold = make(chan struct{})

	f.orch.Close(sid)
	pending := f.orch.PendingConfirms()
	if len(pending) != 1 {
		t.Fatalf("expected one open prompt, got %d", len(pending))
	}
	f.orch.ResolveConfirm(pending[0].ID, true)

	waitFor(t, func() bool {
		_, ok := f.orch.registry.Find(sid)
		return !ok
	})
	close(f.store.shutdownHold)
}

func TestCloseTerminatedSkipsPrompt(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	sid := f.orch.Sessions()[0].ID

	// Terminate out-of-band, then close
	<-f.store.Shutdown(sid)
	f.orch.Close(sid)

	if len(f.orch.PendingConfirms()) != 0 {
		t.Error("closing a terminated session should not prompt")
	}
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 0 })
}

func TestCloseUnknownIsNoop(t *testing.T) {
	f := newFixture(t)

	f.orch.Close(id.NewSessionID())
	if len(f.orch.PendingConfirms()) != 0 {
		t.Error("closing an unknown session should not prompt")
	}
}

func TestActiveFallsBackAfterClose(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("one"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	f.orch.Start(scenarioNamed("two"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 2 })

	var twoID id.SessionID
	for _, v := range f.orch.Sessions() {
		if v.Label == "two" {
			twoID = v.ID
		}
	}

	// "two" is active (registered last); close it with confirmation
	f.orch.Close(twoID)
	pending := f.orch.PendingConfirms()
	f.orch.ResolveConfirm(pending[0].ID, true)

	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })

	active, ok := f.orch.ActiveSession()
	if !ok || active.Label != "one" {
		t.Errorf("active should fall back to the remaining session, got %+v", active)
	}
}

func TestActivateUnknownIsNoop(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	sid := f.orch.Sessions()[0].ID

	f.orch.Activate(id.NewSessionID())

	active, _ := f.orch.ActiveSession()
	if active.ID != sid {
		t.Error("activating an unknown session should not change focus")
	}
}

func TestRerunLast(t *testing.T) {
	f := newFixture(t)

	if err := f.orch.RerunLast(); err == nil {
		t.Error("rerun with empty inventory should error")
	}

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })

	if err := f.orch.RerunLast(); err != nil {
		t.Fatalf("RerunLast failed: %v", err)
	}
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 2 })
}

func TestAdapterArguments(t *testing.T) {
	f := newFixture(t)

	f.orch.Start(scenarioNamed("run"), types.TaskContext{}, nil, &f.wt.ID)
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 1 })
	rootID := f.orch.Sessions()[0].ID

	f.orch.SpawnChild(rootID, types.StartRequest{Request: "attach"})
	waitFor(t, func() bool { return len(f.orch.Sessions()) == 2 })

	var childID id.SessionID
	for _, v := range f.orch.Sessions() {
		if v.ParentID != nil {
			childID = v.ID
		}
	}

	// Arguments come from the root, even when asked via a child
	args, err := f.orch.AdapterArguments(childID)
	if err != nil {
		t.Fatalf("AdapterArguments failed: %v", err)
	}
	if !strings.Contains(args, "fake-adapter") || !strings.Contains(args, "launch") {
		t.Errorf("expected root launch definition, got %s", args)
	}

	if _, err := f.orch.AdapterArguments(id.NewSessionID()); err == nil {
		t.Error("unknown session should error")
	}
}

func TestConfirmGate(t *testing.T) {
	g := NewGate()

	p := g.Open(id.NewSessionID(), "sure?")
	if len(g.List()) != 1 {
		t.Fatal("prompt should be listed")
	}

	if !g.Resolve(p.ID, true) {
		t.Fatal("Resolve failed")
	}
	if <-p.Decision() != true {
		t.Error("expected confirmed decision")
	}
	if g.Resolve(p.ID, true) {
		t.Error("double resolve should report false")
	}
	if len(g.List()) != 0 {
		t.Error("resolved prompt should be delisted")
	}
}
