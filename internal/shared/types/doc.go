// Package types provides shared data structures for the DebugOS backend.
//
// This package defines core types used across all backend components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - DebugScenario: Named, reusable launch configuration
//   - TaskContext: Variable context used to resolve a scenario
//   - DebugAdapterBinary: Concrete launch definition for an adapter process
//   - StartRequest: Payload of a child-session spawn request
//   - SessionEvent: Tagged lifecycle event emitted by a session handle
//   - PaneLayout: Serialized per-adapter pane layout
//
// State Management:
//   - Status: Session lifecycle state enum
//   - ThreadStatus: Debuggee thread state surfaced to the shell
package types
