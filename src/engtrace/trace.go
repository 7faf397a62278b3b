/*
 * classjit - a JIT compiler front end for a JVM-class-file-shaped bytecode format
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package engtrace is the module's internal diagnostic logger, wrapping
// go.uber.org/zap behind a package-level Init plus a package-global
// sugared logger safe to call before Init (a no-op logger is the
// zero-value default), so decoding and lowering code never has to thread
// a logger through every call.
package engtrace

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init installs a production zap logger at the given level. Safe to call
// more than once; the last call wins.
func Init(level zap.AtomicLevel) error {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// SetLogger installs an already-constructed logger, primarily for tests
// that want to assert on emitted log lines.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Sugar returns the current package-global sugared logger.
func Sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.Sugar()
}
