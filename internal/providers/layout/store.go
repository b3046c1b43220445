package layout

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/paths"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// Store persists pane layouts per adapter name. Layouts are cached in
// memory and written through to the state directory, so a layout saved for
// an adapter is re-applied the next time a session for that adapter
// registers.
type Store struct {
	mu       sync.RWMutex
	cache    map[string]types.PaneLayout // Keyed by adapter, protected by mu
	stateDir string
	log      *logging.Logger
}

// NewStore creates a layout store rooted at the state directory
func NewStore(stateDir string, log *logging.Logger) *Store {
	return &Store{
		cache:    make(map[string]types.PaneLayout),
		stateDir: stateDir,
		log:      log.Named("layout"),
	}
}

// Get returns the layout saved for an adapter, loading it from disk on the
// first request.
func (s *Store) Get(adapter string) (types.PaneLayout, bool) {
	s.mu.RLock()
	layout, ok := s.cache[adapter]
	s.mu.RUnlock()
	if ok {
		return layout, true
	}

	data, err := os.ReadFile(paths.LayoutPath(s.stateDir, adapter))
	if err != nil {
		return types.PaneLayout{}, false
	}

	if err := sonic.Unmarshal(data, &layout); err != nil {
		s.log.Warn("discarding unreadable layout",
			zap.String("adapter", adapter),
			zap.Error(err))
		return types.PaneLayout{}, false
	}

	s.mu.Lock()
	s.cache[adapter] = layout
	s.mu.Unlock()

	return layout, true
}

// Save stores a layout and writes it through to disk
func (s *Store) Save(layout types.PaneLayout) error {
	layout.UpdatedAt = time.Now()

	s.mu.Lock()
	s.cache[layout.Adapter] = layout
	s.mu.Unlock()

	path := paths.LayoutPath(s.stateDir, layout.Adapter)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := sonic.MarshalIndent(layout, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Adapters lists adapter names with a cached layout
func (s *Store) Adapters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.cache))
	for adapter := range s.cache {
		out = append(out, adapter)
	}
	return out
}
