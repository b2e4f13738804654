package logger

import (
	"io"
	"sync"
)

// Logger provides levelled logging tagged by component

type Logger struct {
	MinLevel LogLevel
	out      io.Writer
	mu       sync.Mutex
}

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)
