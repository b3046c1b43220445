/*
Package session owns debug session handles and their adapter processes.

The Store allocates handles, spawns adapter binaries under a PTY, buffers
their console output in a ring buffer and reports lifecycle transitions as
tagged events on a per-session channel. It makes no lifecycle decisions of
its own; the orchestrator consumes the events and drives restarts, child
spawns and teardown.

Adapter spawns are guarded by a per-command circuit breaker so a missing or
broken adapter binary fails fast instead of being retried on every start.
*/
package session
