// Package monitoring holds the process-wide diagnostic logger used by the
// scan, store and report adapters. The statistics engine itself never logs.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags every line with "[component] " and
// forwards to whatever Logf is at call time.
func Prefixed(component string) func(format string, v ...any) {
	tag := fmt.Sprintf("[%s] ", component)
	return func(format string, v ...any) {
		Logf(tag+format, v...)
	}
}
