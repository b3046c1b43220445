package orchestrator

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
)

// closeRunningMessage is shown when closing a session whose debuggee is
// still alive.
const closeRunningMessage = "This debug session is still running. Closing it will terminate the debuggee process. Close anyway?"

// Pending is an open confirmation prompt. The flow that opened it suspends
// on Decision until the shell answers or the prompt is cancelled.
type Pending struct {
	ID        id.ConfirmID `json:"id"`
	SessionID id.SessionID `json:"session_id"`
	Message   string       `json:"message"`
	CreatedAt time.Time    `json:"created_at"`

	decision chan bool
}

// Decision yields exactly one value: true to proceed, false to decline.
func (p *Pending) Decision() <-chan bool {
	return p.decision
}

// Gate tracks open confirmation prompts. Lifecycle flows that need user
// consent open a prompt, park on its decision channel and resume when the
// shell resolves it.
type Gate struct {
	mu      sync.Mutex
	pending map[id.ConfirmID]*Pending // Protected by mu
}

// NewGate creates an empty confirmation gate
func NewGate() *Gate {
	return &Gate{pending: make(map[id.ConfirmID]*Pending)}
}

// Open registers a new prompt for a session
func (g *Gate) Open(sid id.SessionID, message string) *Pending {
	p := &Pending{
		ID:        id.NewConfirmID(),
		SessionID: sid,
		Message:   message,
		CreatedAt: time.Now(),
		decision:  make(chan bool, 1),
	}

	g.mu.Lock()
	g.pending[p.ID] = p
	g.mu.Unlock()

	return p
}

// Resolve answers a prompt. Resolving an unknown or already answered prompt
// reports false.
func (g *Gate) Resolve(cid id.ConfirmID, confirmed bool) bool {
	g.mu.Lock()
	p, ok := g.pending[cid]
	if ok {
		delete(g.pending, cid)
	}
	g.mu.Unlock()

	if !ok {
		return false
	}
	p.decision <- confirmed
	return true
}

// Cancel declines a prompt, used when its session disappears underneath it
func (g *Gate) Cancel(cid id.ConfirmID) bool {
	return g.Resolve(cid, false)
}

// CancelSession declines every open prompt for a session
func (g *Gate) CancelSession(sid id.SessionID) {
	g.mu.Lock()
	var stale []*Pending
	for cid, p := range g.pending {
		if p.SessionID == sid {
			stale = append(stale, p)
			delete(g.pending, cid)
		}
	}
	g.mu.Unlock()

	for _, p := range stale {
		p.decision <- false
	}
}

// List returns the open prompts
func (g *Gate) List() []Pending {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Pending, 0, len(g.pending))
	for _, p := range g.pending {
		out = append(out, *p)
	}
	return out
}
