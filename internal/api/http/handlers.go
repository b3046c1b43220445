package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/orchestrator"
	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/worktree"
	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/providers/debug"
	"github.com/GriffinCanCode/DebugOS/backend/internal/providers/layout"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// Handlers bundles the HTTP endpoints over the lifecycle services
type Handlers struct {
	orch      *orchestrator.Orchestrator
	provider  *debug.Provider
	worktrees *worktree.Set
	layouts   *layout.Store
	log       *logging.Logger
}

// NewHandlers creates the handler set
func NewHandlers(orch *orchestrator.Orchestrator, provider *debug.Provider, worktrees *worktree.Set, layouts *layout.Store, log *logging.Logger) *Handlers {
	return &Handlers{
		orch:      orch,
		provider:  provider,
		worktrees: worktrees,
		layouts:   layouts,
		log:       log.Named("http"),
	}
}

// Root returns service identity
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "debugos-backend",
		"status":  "running",
	})
}

// Health returns liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// StartSessionRequest is the POST /sessions payload. Either an inline
// scenario or a saved label must be given.
type StartSessionRequest struct {
	Scenario    *types.DebugScenario `json:"scenario,omitempty"`
	Label       string               `json:"label,omitempty"`
	TaskContext types.TaskContext    `json:"task_context"`
	Buffer      *types.BufferRef     `json:"buffer,omitempty"`
	WorktreeID  string               `json:"worktree_id,omitempty"`
}

// StartSession schedules a debug scenario. The response is accepted, not
// completed; boot progress arrives over the event stream.
func (h *Handlers) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start request"})
		return
	}

	var wtID *id.WorktreeID
	if req.WorktreeID != "" {
		parsed := id.WorktreeID(req.WorktreeID)
		wtID = &parsed
	}

	switch {
	case req.Scenario != nil:
		h.provider.StartSession(*req.Scenario, req.TaskContext, req.Buffer, wtID)
	case req.Label != "":
		if err := h.provider.StartByLabel(req.Label, req.TaskContext, req.Buffer, wtID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scenario or label required"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// ListSessions returns sessions in display order
func (h *Handlers) ListSessions(c *gin.Context) {
	views := h.orch.Sessions()
	c.JSON(http.StatusOK, gin.H{"sessions": views, "count": len(views)})
}

// GetSession returns one session view
func (h *Handlers) GetSession(c *gin.Context) {
	view, ok := h.orch.Session(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetConsole returns a session's buffered adapter output
func (h *Handlers) GetConsole(c *gin.Context) {
	data, ok := h.orch.Console(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": string(data), "length": len(data)})
}

// GetAdapterArguments renders the root launch definition as pretty JSON
func (h *Handlers) GetAdapterArguments(c *gin.Context) {
	args, err := h.orch.AdapterArguments(id.SessionID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"arguments": args})
}

// RestartSession restarts a session's tree and reports the outcome
func (h *Handlers) RestartSession(c *gin.Context) {
	sid := id.SessionID(c.Param("id"))
	if err := h.orch.Restart(c.Request.Context(), sid); err != nil {
		h.log.Warn("restart failed", zap.String("session_id", string(sid)), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"restarted": true})
}

// CloseSession requests a close; a running session answers with a prompt
func (h *Handlers) CloseSession(c *gin.Context) {
	h.orch.Close(id.SessionID(c.Param("id")))
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// ActivateSession focuses a session
func (h *Handlers) ActivateSession(c *gin.Context) {
	h.orch.Activate(id.SessionID(c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"activated": true})
}

// ListConfirmations returns open confirmation prompts
func (h *Handlers) ListConfirmations(c *gin.Context) {
	pending := h.orch.PendingConfirms()
	c.JSON(http.StatusOK, gin.H{"confirmations": pending, "count": len(pending)})
}

// ResolveConfirmationRequest answers a prompt
type ResolveConfirmationRequest struct {
	Confirmed bool `json:"confirmed"`
}

// ResolveConfirmation answers an open prompt by ID
func (h *Handlers) ResolveConfirmation(c *gin.Context) {
	var req ResolveConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid confirmation"})
		return
	}

	if !h.orch.ResolveConfirm(id.ConfirmID(c.Param("id")), req.Confirmed) {
		c.JSON(http.StatusNotFound, gin.H{"error": "confirmation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

// Rerun reruns the last debug scenario
func (h *Handlers) Rerun(c *gin.Context) {
	if err := h.provider.Rerun(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// RerunState reports whether rerun maps to a debug scenario
func (h *Handlers) RerunState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"debug_scenario_scheduled_last": h.provider.DebugScenarioScheduledLast(),
	})
}

// TaskScheduled records an out-of-band task run
func (h *Handlers) TaskScheduled(c *gin.Context) {
	h.provider.TaskScheduled()
	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

// ThreadState reports the active session's thread indicator
func (h *Handlers) ThreadState(c *gin.Context) {
	state, ok := h.provider.ActiveThreadState()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"state": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// AddWorktreeRequest registers a worktree root
type AddWorktreeRequest struct {
	Root    string `json:"root" binding:"required"`
	Visible *bool  `json:"visible,omitempty"`
}

// AddWorktree registers a worktree
func (h *Handlers) AddWorktree(c *gin.Context) {
	var req AddWorktreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "root required"})
		return
	}

	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}
	wt := h.worktrees.Add(req.Root, visible)
	c.JSON(http.StatusCreated, wt)
}

// ListWorktrees returns all registered worktrees
func (h *Handlers) ListWorktrees(c *gin.Context) {
	all := h.worktrees.All()
	c.JSON(http.StatusOK, gin.H{"worktrees": all, "count": len(all)})
}

// RemoveWorktree unregisters a worktree
func (h *Handlers) RemoveWorktree(c *gin.Context) {
	if !h.worktrees.Remove(id.WorktreeID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "worktree not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// ListScenarios returns the scenarios saved in a worktree
func (h *Handlers) ListScenarios(c *gin.Context) {
	scenarios, err := h.provider.Scenarios(id.WorktreeID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios, "count": len(scenarios)})
}

// SaveScenario appends a scenario to a worktree's document
func (h *Handlers) SaveScenario(c *gin.Context) {
	var sc types.DebugScenario
	if err := c.ShouldBindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scenario"})
		return
	}

	if err := h.provider.SaveScenario(id.WorktreeID(c.Param("id")), sc); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"saved": true})
}

// DiscoverScenarioDocuments lists scenario documents under a worktree
func (h *Handlers) DiscoverScenarioDocuments(c *gin.Context) {
	docs, err := h.provider.ScenarioDocuments(id.WorktreeID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// GetLayout returns the saved pane layout for an adapter
func (h *Handlers) GetLayout(c *gin.Context) {
	saved, ok := h.layouts.Get(c.Param("adapter"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no layout saved"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// SaveLayout stores a pane layout
func (h *Handlers) SaveLayout(c *gin.Context) {
	var l types.PaneLayout
	if err := c.ShouldBindJSON(&l); err != nil || l.Adapter == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "adapter and layout required"})
		return
	}

	if err := h.layouts.Save(l); err != nil {
		h.log.Error("layout save failed", zap.String("adapter", l.Adapter), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "layout save failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"saved": true})
}
