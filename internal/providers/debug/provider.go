package debug

import (
	"fmt"

	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/orchestrator"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/scenario"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/worktree"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// Provider is the shell-facing surface for scheduling and inspecting debug
// sessions. It adds scenario document handling on top of the orchestrator.
type Provider struct {
	orch      *orchestrator.Orchestrator
	files     *scenario.FileStore
	worktrees *worktree.Set
	log       *logging.Logger
}

// NewProvider creates a debug provider
func NewProvider(orch *orchestrator.Orchestrator, files *scenario.FileStore, worktrees *worktree.Set, log *logging.Logger) *Provider {
	return &Provider{
		orch:      orch,
		files:     files,
		worktrees: worktrees,
		log:       log.Named("debug"),
	}
}

// StartSession schedules an inline scenario
func (p *Provider) StartSession(sc types.DebugScenario, taskCtx types.TaskContext, buffer *types.BufferRef, wt *id.WorktreeID) {
	p.orch.Start(sc, taskCtx, buffer, wt)
}

// StartByLabel starts a scenario saved in the resolved worktree's documents
func (p *Provider) StartByLabel(label string, taskCtx types.TaskContext, buffer *types.BufferRef, wtID *id.WorktreeID) error {
	wt, ok := p.worktrees.Resolve(wtID, buffer)
	if !ok {
		return fmt.Errorf("no worktree to look up scenario %q in", label)
	}

	sc, found, err := p.files.Find(wt.Root, label)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("scenario %q not found in %s", label, wt.Root)
	}

	p.orch.Start(sc, taskCtx, buffer, &wt.ID)
	return nil
}

// TaskScheduled records that a non-debug task ran, so the rerun command
// stops mapping to the debug scenario.
func (p *Provider) TaskScheduled() {
	p.orch.Inventory().TaskScheduled()
}

// DebugScenarioScheduledLast reports whether the rerun command should rerun
// a debug scenario rather than a task.
func (p *Provider) DebugScenarioScheduledLast() bool {
	return p.orch.Inventory().DebugScheduledLast()
}

// Rerun reruns the most recently scheduled debug scenario
func (p *Provider) Rerun() error {
	return p.orch.RerunLast()
}

// ActiveThreadState returns the thread indicator for the active session
func (p *Provider) ActiveThreadState() (types.ThreadStatus, bool) {
	view, ok := p.orch.ActiveSession()
	if !ok {
		return "", false
	}
	return view.ThreadStatus, true
}

// SaveScenario appends a scenario to a worktree's editable document
func (p *Provider) SaveScenario(wtID id.WorktreeID, sc types.DebugScenario) error {
	wt, ok := p.worktrees.ByID(wtID)
	if !ok {
		return fmt.Errorf("worktree %s not found", wtID)
	}
	return p.files.Append(wt.Root, sc)
}

// Scenarios lists the scenarios defined in a worktree
func (p *Provider) Scenarios(wtID id.WorktreeID) ([]types.DebugScenario, error) {
	wt, ok := p.worktrees.ByID(wtID)
	if !ok {
		return nil, fmt.Errorf("worktree %s not found", wtID)
	}
	return p.files.Load(wt.Root)
}

// ScenarioDocuments lists scenario document paths under a worktree
func (p *Provider) ScenarioDocuments(wtID id.WorktreeID) ([]string, error) {
	wt, ok := p.worktrees.ByID(wtID)
	if !ok {
		return nil, fmt.Errorf("worktree %s not found", wtID)
	}
	return p.files.Discover(wt.Root)
}
