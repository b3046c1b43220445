// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Session lifecycle flows log through WithSession so every line carries the
// session id; precondition failures (unresolvable worktree, missing parent
// binary) log and return without surfacing a user-facing error.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.WithSession(id).Error("Boot failed", zap.Error(err))
package logging
