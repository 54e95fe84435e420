package logger

import (
	"log"
	"sync"
)

// Logger writes leveled lines tagged by component. The zero value logs to
// the standard logger; nil loggers discard everything.
type Logger struct {
	MinLevel LogLevel
	mu       sync.Mutex
	out      *log.Logger
}

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)
