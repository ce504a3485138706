// Package monitoring provides the pipeline's progress logging hook.
package monitoring

import "log"

// Logf is the package-level progress logger used by the pipeline stages.
// It defaults to log.Printf but may be replaced by SetLogger, so tests and
// batch runs can redirect or mute stage output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
