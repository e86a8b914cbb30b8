// Package monitoring holds the process-wide diagnostic logger shared by the
// ingestion loop, session manager and HTTP layer.
package monitoring

import (
	"log"
	"sync/atomic"
)

type logFunc = func(format string, v ...interface{})

var current atomic.Pointer[logFunc]

func init() {
	f := logFunc(log.Printf)
	current.Store(&f)
}

// Logf writes a diagnostic line through the installed logger. It is safe to
// call from the ingestion goroutine while tests swap the logger.
func Logf(format string, v ...interface{}) {
	(*current.Load())(format, v...)
}

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	current.Store(&f)
}

// Prefixed returns a logger that prepends prefix to every format string.
func Prefixed(prefix string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
