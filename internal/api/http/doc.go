// Package http exposes the session lifecycle over a REST surface: starting,
// restarting, activating and closing sessions, answering confirmation
// prompts, worktree and scenario management, and pane layout persistence.
//
// Mutating lifecycle endpoints answer 202 Accepted; the actual boot or
// shutdown progress is reported over the WebSocket stream.
package http
