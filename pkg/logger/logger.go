// pkg/logger/logger.go

package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log *zap.Logger
)

// L returns the process logger, or nil before initialization.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the process logger and zap's globals.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
	zap.ReplaceGlobals(l)
}

// GetLogger returns the process logger, falling back to a console logger
// when nothing has been initialized yet.
func GetLogger() *zap.Logger {
	if l := L(); l != nil {
		return l
	}
	InitFallback()
	return L()
}

// Sync flushes any buffered log entries. Should be called before the application exits.
func Sync() error {
	l := L()
	if l == nil {
		return nil
	}
	return l.Sync()
}
