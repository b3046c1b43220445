// Package main is the entry point for the DebugOS backend server.
//
// The server owns the debug session lifecycle for the shell: it boots debug
// adapter processes, tracks them in a display-ordered registry, and streams
// lifecycle events back over WebSocket.
//
// The server provides:
//   - REST API for sessions, worktrees, scenarios and pane layouts
//   - WebSocket streaming for lifecycle notifications
//   - Confirmation prompts for closing running sessions
//   - Rate limiting and request tracing
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8200
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
