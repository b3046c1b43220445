/*
Package orchestrator drives the debug session lifecycle.

It is the only writer of the session registry: start, restart, child spawn,
close and activate all funnel through it. Sessions report what happened
through their event channels; the orchestrator's pump is the single handler
that turns those events into registry updates and shell notifications.

Failure policy differs by flow. Boot failures land on the session console
and tear the session down; restart additionally propagates the error to the
caller. Precondition failures (no worktree, vanished parent, unknown
session) abandon the request with a log line and touch nothing.

Closing a still-running session suspends on a confirmation prompt; the flow
resumes only when the shell answers, and declining leaves the session
exactly as it was.
*/
package orchestrator
