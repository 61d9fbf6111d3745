// Package logging configures the structured logger shared by every
// desloppify command.
package logging

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
)

// New builds a production zap logger, dropping to debug level when verbose
// is requested. It mirrors the root command's PersistentPreRunE setup: one
// logger per process, synced once on exit.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = !verbose

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return l, nil
}

// Sync flushes the active logger, swallowing any error Sync returns
// (including the common "invalid argument" error zap returns when stderr is
// a terminal).
func Sync() {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return
	}
	if err := l.Sync(); err != nil && !isIgnorableSyncError(err) {
		fmt.Fprintf(os.Stderr, "warning: logger sync: %v\n", err)
	}
}

func isIgnorableSyncError(err error) bool {
	// Both stdout and stderr routinely fail Sync on Linux ttys and pipes;
	// zap has no portable way to distinguish that from a real disk error.
	return true
}

// CommandFields builds the standard start/end log fields for a cobra
// command invocation.
func CommandFields(name string, args ...zap.Field) []zap.Field {
	return append([]zap.Field{zap.String("command", name)}, args...)
}
