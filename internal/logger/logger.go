package logger

import (
	"strings"
	"sync"
)

// Log levels accepted by log.level.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. The first call fixes the level;
// later calls return the same instance.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = New(level)
	})
	return globalLogger
}

// New builds an independent stdout logger. Components receive their logger by
// injection, so tests can construct isolated instances.
func New(level string) *Logger {
	return newZapLogger(level, stdoutSink())
}

// ValidLevel reports whether level names one of the known levels.
func ValidLevel(level string) bool {
	switch normalizeLevel(level) {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return true
	}
	return false
}

func normalizeLevel(level string) string {
	l := strings.ToLower(strings.TrimSpace(level))
	if l == "warning" {
		return WarnLevel
	}
	return l
}
