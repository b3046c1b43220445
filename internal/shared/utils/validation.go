// Package utils provides small shared helpers for the backend.
package utils

import (
	"fmt"
	"os"
	"strings"
)

// MaxLabelLength bounds session labels to keep logs and UI sane.
const MaxLabelLength = 256

// ValidateScenario checks the fields a scenario must carry before it can be
// scheduled.
func ValidateScenario(label, adapter string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("scenario label is required")
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("scenario label exceeds %d characters", MaxLabelLength)
	}
	if strings.TrimSpace(adapter) == "" {
		return fmt.Errorf("scenario adapter is required")
	}
	return nil
}

// ExpandVars expands $VAR and ${VAR} references against the provided map,
// falling back to the process environment. Unknown variables expand to the
// empty string, matching shell semantics.
func ExpandVars(s string, vars map[string]string) string {
	return os.Expand(s, func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

// ExpandAll applies ExpandVars to every element of args.
func ExpandAll(args []string, vars map[string]string) []string {
	if len(args) == 0 {
		return nil
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = ExpandVars(a, vars)
	}
	return out
}
