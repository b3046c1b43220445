// Package id provides centralized ID generation for the backend.
//
// This package offers type-safe ULID generation with:
//   - Lexicographic sortability: Enables efficient time-based queries
//   - Prefixed types: Type-specific prefixes for debugging (sess_*, wt_*, conf_*)
//   - Type safety: Separate types prevent ID misuse
//   - Compatibility: Plain strings on the wire, typed in code
//
// Design Principles:
//   - ULIDs only: Single ID format across the entire system
//   - K-sortable: Timeline queries without timestamps
//   - Debuggable: Prefixes make logs readable
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID identifies a debug session handle. It is process-unique and
// immutable for the handle's lifetime.
type SessionID string

// WorktreeID identifies a registered worktree root.
type WorktreeID string

// RequestID identifies an API request.
type RequestID string

// ConfirmID identifies a pending shutdown confirmation.
type ConfirmID string

// ID prefixes, for debugging and type identification.
const (
	SessionPrefix  = "sess"
	WorktreePrefix = "wt"
	RequestPrefix  = "req"
	ConfirmPrefix  = "conf"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewSessionID generates a new session ID
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewWorktreeID generates a new worktree ID
func NewWorktreeID() WorktreeID {
	return WorktreeID(Default().GenerateWithPrefix(WorktreePrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewConfirmID generates a new confirmation ID
func NewConfirmID() ConfirmID {
	return ConfirmID(Default().GenerateWithPrefix(ConfirmPrefix))
}

// String methods for ID types
func (id SessionID) String() string  { return string(id) }
func (id WorktreeID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }
func (id ConfirmID) String() string  { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Parse parses a ULID string
func Parse(id string) (ulid.ULID, error) {
	return ulid.Parse(id)
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
