package scenario

import (
	"sync"

	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// Scheduled is a scenario together with the context it was scheduled in,
// enough to rerun it verbatim.
type Scheduled struct {
	Scenario   types.DebugScenario
	TaskCtx    types.TaskContext
	WorktreeID id.WorktreeID
}

// Inventory remembers the most recently scheduled debug scenario and whether
// a debug scenario or a plain task was scheduled last. The rerun command
// only reruns a debug scenario when nothing else ran in between.
type Inventory struct {
	mu        sync.RWMutex
	last      *Scheduled // Protected by mu
	debugLast bool       // Protected by mu
}

// NewInventory creates an empty inventory
func NewInventory() *Inventory {
	return &Inventory{}
}

// DebugScheduled records a debug scenario as the most recent scheduling
func (i *Inventory) DebugScheduled(s Scheduled) {
	i.mu.Lock()
	copy := s
	copy.Scenario.Args = append([]string(nil), s.Scenario.Args...)
	copy.TaskCtx = s.TaskCtx.Clone()
	i.last = &copy
	i.debugLast = true
	i.mu.Unlock()
}

// TaskScheduled records that a non-debug task ran, clearing the
// debug-scheduled-last flag without forgetting the last scenario.
func (i *Inventory) TaskScheduled() {
	i.mu.Lock()
	i.debugLast = false
	i.mu.Unlock()
}

// Last returns the most recently scheduled debug scenario
func (i *Inventory) Last() (Scheduled, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.last == nil {
		return Scheduled{}, false
	}
	return *i.last, true
}

// DebugScheduledLast reports whether the latest scheduling was a debug
// scenario.
func (i *Inventory) DebugScheduledLast() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.debugLast
}
