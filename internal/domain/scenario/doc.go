/*
Package scenario handles debug launch configurations.

A scenario is a named, reusable launch definition stored per worktree in
.debug/scenarios.json (editable) or .debug/scenarios.yaml (read-only). The
Resolver turns a scenario plus its task context into a concrete adapter
binary, running the scenario's build task first when one is set. The
Inventory remembers the most recently scheduled scenario for the rerun
command.
*/
package scenario
