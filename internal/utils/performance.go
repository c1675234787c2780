package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer provides a defer-friendly way to measure operation duration.
// Operations slower than slow are logged at warn level, the rest at debug.
//
// Usage:
//
//	func Solve() {
//	    defer utils.OperationTimer("risk_parity_solve", 5*time.Second, log)()
//	}
func OperationTimer(operation string, slow time.Duration, log zerolog.Logger) func() time.Duration {
	start := time.Now()

	return func() time.Duration {
		duration := time.Since(start)

		event := log.Debug()
		msg := "Operation completed"
		if slow > 0 && duration > slow {
			event = log.Warn()
			msg = "Slow operation detected"
		}
		event.
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg(msg)

		return duration
	}
}
