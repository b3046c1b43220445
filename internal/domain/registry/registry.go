package registry

import (
	"sync"

	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
)

// Entry is the minimal session view the registry orders. The concrete
// session handle satisfies it.
type Entry interface {
	SessionID() id.SessionID
	ParentSessionID() *id.SessionID
	Defunct() bool
}

// Registry keeps sessions in topological display order: a child always sits
// after its parent, siblings in registration order. At most one entry is
// active at a time.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry         // Display order, protected by mu
	active  *id.SessionID   // Protected by mu
}

// New creates an empty registry
func New() *Registry {
	return &Registry{}
}

// Register inserts a session. A child is placed immediately after its
// parent; a root goes to the end. Terminated entries are swept in the same
// step, sparing the one just added. The caller decides whether the new
// session takes focus; with activate false it only becomes active when
// nothing else is.
func (r *Registry) Register(e Entry, activate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := len(r.entries)
	if parent := e.ParentSessionID(); parent != nil {
		for i, existing := range r.entries {
			if existing.SessionID() == *parent {
				pos = i + 1
				break
			}
		}
	}

	r.insertAt(e, pos, activate)
}

// RegisterAt inserts a session at a fixed position in display order,
// clamped to the current length. Restarts use it to put the fresh root in
// the old root's slot instead of appending.
func (r *Registry) RegisterAt(e Entry, pos int, activate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	if pos > len(r.entries) {
		pos = len(r.entries)
	}
	r.insertAt(e, pos, activate)
}

// insertAt places an entry and runs the registration sweep. Must hold lock.
func (r *Registry) insertAt(e Entry, pos int, activate bool) {
	r.entries = append(r.entries, nil)
	copy(r.entries[pos+1:], r.entries[pos:])
	r.entries[pos] = e

	if activate {
		sid := e.SessionID()
		r.active = &sid
	}

	r.sweep(e.SessionID())
}

// IndexOf returns a session's position in display order
func (r *Registry) IndexOf(sid id.SessionID) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i, e := range r.entries {
		if e.SessionID() == sid {
			return i, true
		}
	}
	return 0, false
}

// sweep drops terminated entries, sparing the given one. Must hold lock.
// Dropping the active entry falls back to the first remaining.
func (r *Registry) sweep(spare id.SessionID) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.SessionID() == spare || !e.Defunct() {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept

	r.fixActive()
}

// fixActive resets the active entry to the first remaining when the current
// one is gone. Must hold lock.
func (r *Registry) fixActive() {
	if r.active != nil {
		for _, e := range r.entries {
			if e.SessionID() == *r.active {
				return
			}
		}
	}
	if len(r.entries) > 0 {
		sid := r.entries[0].SessionID()
		r.active = &sid
	} else {
		r.active = nil
	}
}

// Activate marks a registered session active. Unknown IDs are a silent
// no-op; the caller logs and moves on.
func (r *Registry) Activate(sid id.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.SessionID() == sid {
			r.active = &sid
			return true
		}
	}
	return false
}

// Remove drops a session from the registry. When the removed session was
// active, the first remaining entry becomes active. Children are not
// cascaded; they keep their position and become roots of their own display
// subtree.
func (r *Registry) Remove(sid id.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.SessionID() == sid {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			r.fixActive()
			return true
		}
	}
	return false
}

// Find retrieves a registered session by ID
func (r *Registry) Find(sid id.SessionID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.SessionID() == sid {
			return e, true
		}
	}
	return nil, false
}

// RootOf walks parent links to the topmost registered ancestor. A session
// whose parent is unknown to the registry is its own root.
func (r *Registry) RootOf(sid id.SessionID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.find(sid)
	if !ok {
		return nil, false
	}

	for {
		parent := current.ParentSessionID()
		if parent == nil {
			return current, true
		}
		next, ok := r.find(*parent)
		if !ok {
			return current, true
		}
		current = next
	}
}

// find is the lock-free lookup. Must hold lock.
func (r *Registry) find(sid id.SessionID) (Entry, bool) {
	for _, e := range r.entries {
		if e.SessionID() == sid {
			return e, true
		}
	}
	return nil, false
}

// Sessions returns entries in display order
func (r *Registry) Sessions() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Active returns the active entry
func (r *Registry) Active() (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == nil {
		return nil, false
	}
	return r.find(*r.active)
}

// ActiveID returns the active session ID
func (r *Registry) ActiveID() (id.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.active == nil {
		return "", false
	}
	return *r.active, true
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
