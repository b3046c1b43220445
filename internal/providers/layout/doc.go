// Package layout persists the shell's debug pane layout per adapter name.
package layout
