// Package testutil provides testing utilities and helpers for backend tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/DebugOS/backend/internal/domain/session"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/id"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
)

// MockResolver is a mock implementation of the scenario resolver for testing.
type MockResolver struct {
	mock.Mock
}

// Resolve mocks resolving a scenario into a launch definition.
func (m *MockResolver) Resolve(ctx context.Context, sc types.DebugScenario, taskCtx types.TaskContext, worktreeRoot string) (types.DebugAdapterBinary, error) {
	args := m.Called(ctx, sc, taskCtx, worktreeRoot)
	return args.Get(0).(types.DebugAdapterBinary), args.Error(1)
}

// MockLayouts is a mock implementation of the pane layout lookup.
type MockLayouts struct {
	mock.Mock
}

// Get mocks the layout lookup by adapter name.
func (m *MockLayouts) Get(adapter string) (types.PaneLayout, bool) {
	args := m.Called(adapter)
	return args.Get(0).(types.PaneLayout), args.Bool(1)
}

// NewMockResolver creates a mock resolver with a passthrough default: every
// scenario resolves to a binary whose command is the adapter name.
func NewMockResolver(t *testing.T) *MockResolver {
	t.Helper()
	m := new(MockResolver)
	m.On("Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(types.DebugAdapterBinary{Command: "fake-adapter"}, nil).
		Maybe()
	return m
}

// NewMockLayouts creates a mock layout lookup that misses by default.
func NewMockLayouts(t *testing.T) *MockLayouts {
	t.Helper()
	m := new(MockLayouts)
	m.On("Get", mock.Anything).
		Return(types.PaneLayout{}, false).
		Maybe()
	return m
}

// CreateTestScenario creates a scenario with default values. Overrides apply
// on top.
func CreateTestScenario(t *testing.T, overrides map[string]interface{}) types.DebugScenario {
	t.Helper()

	sc := types.DebugScenario{
		Label:   "test-scenario",
		Adapter: "delve",
		Request: "launch",
		Program: "/bin/true",
	}

	if label, ok := overrides["label"].(string); ok {
		sc.Label = label
	}
	if adapter, ok := overrides["adapter"].(string); ok {
		sc.Adapter = adapter
	}
	if program, ok := overrides["program"].(string); ok {
		sc.Program = program
	}
	if build, ok := overrides["build"].(string); ok {
		sc.Build = build
	}

	return sc
}

// CreateTestBinary creates a launch definition with default values.
func CreateTestBinary(t *testing.T, command string) types.DebugAdapterBinary {
	t.Helper()

	return types.DebugAdapterBinary{
		Command: command,
		Args:    []string{"dap"},
		RequestArgs: types.StartRequest{
			Request:       "launch",
			Configuration: map[string]interface{}{"program": "/bin/true"},
		},
	}
}

// WaitFor polls cond until it returns true or the deadline passes.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// AssertStatus is a helper to assert a session's current status.
func AssertStatus(t *testing.T, s *session.Session, want types.Status) {
	t.Helper()
	if got := s.Status(); got != want {
		t.Fatalf("Session %s: expected status %s, got %s", s.ID, want, got)
	}
}

// AssertOrdering is a helper to assert registry ordering by session id.
func AssertOrdering(t *testing.T, got []id.SessionID, want []id.SessionID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d sessions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
