/*
Package registry keeps debug sessions in topological display order.

A child session is always placed immediately after its parent, so the shell
can render the session list as an indented forest without sorting. Exactly
one entry is active whenever the registry is non-empty; removing the active
entry falls back to the first remaining one. Terminated entries are swept
opportunistically whenever a new session registers.
*/
package registry
