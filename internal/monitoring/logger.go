// Package monitoring holds the package-level diagnostic logger shared by the
// pipeline components.
package monitoring

import (
	"log"
	"sync/atomic"
)

// LogFunc is a printf-style logging function.
type LogFunc func(format string, v ...interface{})

var logger atomic.Pointer[LogFunc]

func init() {
	SetLogger(log.Printf)
}

// Logf writes a diagnostic line through the current logger. It is safe to
// call from any goroutine, including while SetLogger runs.
func Logf(format string, v ...interface{}) {
	(*logger.Load())(format, v...)
}

// SetLogger replaces the logger and returns a function that restores the
// previous one. Passing nil installs a no-op logger.
func SetLogger(f LogFunc) (restore func()) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	prev := logger.Swap(&f)
	return func() {
		if prev != nil {
			logger.Store(prev)
		}
	}
}
