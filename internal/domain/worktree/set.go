package worktree

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// Worktree is a project root the shell has opened. Sessions are pinned to the
// worktree they were started in so scenario paths resolve consistently.
type Worktree struct {
	ID      id.WorktreeID `json:"id"`
	Root    string        `json:"root"`
	Visible bool          `json:"visible"`
}

// Set tracks registered worktrees
type Set struct {
	mu    sync.RWMutex
	byID  map[id.WorktreeID]*Worktree // Protected by mu
	order []id.WorktreeID             // Registration order, protected by mu
}

// NewSet creates an empty worktree set
func NewSet() *Set {
	return &Set{
		byID: make(map[id.WorktreeID]*Worktree),
	}
}

// Add registers a worktree root and returns it. The root is cleaned to an
// absolute-style path so prefix matching is stable.
func (s *Set) Add(root string, visible bool) *Worktree {
	wt := &Worktree{
		ID:      id.NewWorktreeID(),
		Root:    filepath.Clean(root),
		Visible: visible,
	}

	s.mu.Lock()
	s.byID[wt.ID] = wt
	s.order = append(s.order, wt.ID)
	s.mu.Unlock()

	copy := *wt
	return &copy
}

// Remove deletes a worktree by ID
func (s *Set) Remove(wid id.WorktreeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[wid]; !ok {
		return false
	}
	delete(s.byID, wid)
	for i, existing := range s.order {
		if existing == wid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// ByID retrieves a worktree by ID
func (s *Set) ByID(wid id.WorktreeID) (*Worktree, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wt, ok := s.byID[wid]
	if !ok {
		return nil, false
	}
	copy := *wt
	return &copy, true
}

// Visible returns all visible worktrees in registration order
func (s *Set) Visible() []*Worktree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Worktree, 0, len(s.order))
	for _, wid := range s.order {
		if wt, ok := s.byID[wid]; ok && wt.Visible {
			copy := *wt
			out = append(out, &copy)
		}
	}
	return out
}

// All returns every worktree in registration order
func (s *Set) All() []*Worktree {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Worktree, 0, len(s.order))
	for _, wid := range s.order {
		if wt, ok := s.byID[wid]; ok {
			copy := *wt
			out = append(out, &copy)
		}
	}
	return out
}

// ContainingPath finds the worktree whose root is the longest prefix of the
// given path. Returns false when no registered root contains it.
func (s *Set) ContainingPath(path string) (*Worktree, bool) {
	path = filepath.Clean(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Worktree
	for _, wid := range s.order {
		wt, ok := s.byID[wid]
		if !ok {
			continue
		}
		if !contains(wt.Root, path) {
			continue
		}
		if best == nil || len(wt.Root) > len(best.Root) {
			best = wt
		}
	}
	if best == nil {
		return nil, false
	}
	copy := *best
	return &copy, true
}

// Resolve picks the worktree a new session should run in: an explicit ID
// wins, then the worktree containing the active buffer's path, then the
// first visible worktree. Returns false when none applies; callers treat
// that as "nothing to debug".
func (s *Set) Resolve(explicit *id.WorktreeID, buffer *types.BufferRef) (*Worktree, bool) {
	if explicit != nil {
		if wt, ok := s.ByID(*explicit); ok {
			return wt, true
		}
	}
	if buffer != nil && buffer.Path != "" {
		if wt, ok := s.ContainingPath(buffer.Path); ok {
			return wt, true
		}
	}
	visible := s.Visible()
	if len(visible) > 0 {
		return visible[0], true
	}
	return nil, false
}

// contains reports whether path is root itself or lives under it.
func contains(root, path string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
