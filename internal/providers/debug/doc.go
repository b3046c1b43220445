// Package debug exposes scenario scheduling and session inspection to the
// shell, including the rerun bookkeeping shared with plain task runs.
package debug
