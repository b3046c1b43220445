/*
Package worktree tracks the project roots the shell has open.

Every debug session is pinned to a worktree so relative scenario paths and
saved-scenario files resolve against a stable root. Resolution order for a
new session is explicit worktree ID, then the worktree containing the active
buffer, then the first visible worktree; when all three miss the session
request is dropped.
*/
package worktree
