// Package internal carries small cross-cutting helpers shared by the
// commands and adapters.
package internal

import (
	"log"
	"os"
)

// LogLevel controls logging verbosity
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelInfo
	LogLevelDebug
)

var level = levelFromEnv()

func levelFromEnv() LogLevel {
	switch os.Getenv("EMKM_LOG_LEVEL") {
	case "ERROR":
		return LogLevelError
	case "DEBUG":
		return LogLevelDebug
	default:
		return LogLevelInfo
	}
}

// SetVerbose raises the level to DEBUG; the --verbose flag maps here
func SetVerbose(on bool) {
	if on {
		level = LogLevelDebug
	}
}

// Verbose reports whether debug logging is active
func Verbose() bool {
	return level >= LogLevelDebug
}

// Errorf logs unconditionally
func Errorf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Infof logs at INFO and above
func Infof(format string, args ...interface{}) {
	if level >= LogLevelInfo {
		log.Printf(format, args...)
	}
}

// Debugf logs only when verbose
func Debugf(format string, args ...interface{}) {
	if level >= LogLevelDebug {
		log.Printf(format, args...)
	}
}
