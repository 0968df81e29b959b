// Package logging provides structured key=value logging helpers shared by
// every component of the client, plus a debug-level toggle.
package logging

import (
	"log"
	"sync/atomic"
)

var debug int32

// SetDebug toggles debug-level logging on or off.
func SetDebug(enabled bool) {
	if enabled {
		atomic.StoreInt32(&debug, 1)
		log.Printf("log_level=debug")
		return
	}
	atomic.StoreInt32(&debug, 0)
	log.Printf("log_level=info")
}

// IsDebug reports whether debug-level logging is enabled.
func IsDebug() bool { return atomic.LoadInt32(&debug) == 1 }

// Infof logs an informational message.
func Infof(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...interface{}) {
	log.Printf("WARNING "+format, args...)
}

// Errorf logs an error.
func Errorf(format string, args ...interface{}) {
	log.Printf("ERROR "+format, args...)
}

// Debugf logs a message only when debug logging is enabled.
func Debugf(format string, args ...interface{}) {
	if IsDebug() {
		log.Printf("DEBUG "+format, args...)
	}
}
