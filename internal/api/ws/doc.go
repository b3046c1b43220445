// Package ws exposes the session lifecycle over a WebSocket stream.
//
// Each connection subscribes to the orchestrator's notification feed and
// forwards every event to the peer as JSON. The read side accepts a small
// command vocabulary (activate, close, confirm, ping) so the shell can
// drive the common interactions without a round trip through the REST API.
package ws
