// Package logger owns the process-wide slog logger.
//
// The shell writes to a size-rotated file under the state directory. The
// worker writes to stderr, which the shell captures as diagnostics.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	rotator  *lumberjack.Logger
	mu       sync.Mutex
	logPath  string
	initDone bool
)

// Options tunes file rotation. Zero values fall back to lumberjack defaults.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
}

// SetDebug enables or disables debug level logging
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init points the logger at a rotating file. Later calls are no-ops until Reset.
func Init(path string, opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	rotator = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     28,
		Compress:   true,
	}
	logPath = path
	root = slog.New(slog.NewTextHandler(rotator, &slog.HandlerOptions{Level: levelVar}))
	initDone = true

	root.Info("logger initialized", "path", path)
	return nil
}

// InitWriter sends all log output to w. The worker uses this with os.Stderr.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return
	}
	root = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
	initDone = true
}

// Path returns the active log file path, or "" when logging to a writer.
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Get returns the root logger instance.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if root == nil {
		return slog.Default()
	}
	return root
}

// WithComponent returns a logger with the component name attached.
//
//	log := logger.WithComponent("supervisor")
//	log.Info("worker spawned", "pid", pid)
//	// Output: level=INFO msg="worker spawned" component=supervisor pid=4242
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// Close flushes and closes the log file, if any.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	root = nil
}

// Reset resets the logger state, allowing reinitialization.
// This is primarily for testing purposes.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	initDone = false
	logPath = ""
	root = nil
	levelVar = new(slog.LevelVar)
}
