// Package debug provides opt-in diagnostic logging for the engine
// internals. Disabled by default so the tick loop stays silent in
// production; EnableLogging turns it on for development.
package debug

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

var (
	enabled atomic.Bool
	logger  = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
)

// EnableLogging enables debug logging.
func EnableLogging() {
	enabled.Store(true)
}

// Enabled reports whether debug logging is on.
func Enabled() bool {
	return enabled.Load()
}

// Log logs a message when debug logging is enabled.
func Log(args ...interface{}) {
	if enabled.Load() {
		logger.Println(args...)
	}
}

// Logf logs a formatted message when debug logging is enabled.
func Logf(format string, args ...interface{}) {
	if enabled.Load() {
		logger.Output(2, fmt.Sprintf(format, args...))
	}
}
