// Package supervisor spawns the worker process and watches it for its whole
// lifetime: one reader per output stream plus an exit watcher, all running
// independently.
package supervisor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// drainGrace bounds how long the exit watcher waits for buffered output
// after the process is gone, so lines written just before exit are delivered
// before the exit notification.
const drainGrace = 2 * time.Second

// Config describes the worker command.
type Config struct {
	Path string
	Args []string
	Env  []string // nil inherits the shell's environment
	Dir  string
}

// Callbacks receive worker output and the exit notification. OnStdout and
// OnStderr are each called from their own goroutine, in line order. OnExit
// is called exactly once.
type Callbacks struct {
	OnStdout func(line string)
	OnStderr func(line string)
	OnExit   func(code *int, err error)
}

// SpawnError means the worker could not be started at all.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn worker %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WorkerHandle is a running worker process.
type WorkerHandle struct {
	cmd *exec.Cmd
	log *slog.Logger
	cb  Callbacks

	alive    atomic.Bool
	readers  sync.WaitGroup
	waitDone chan struct{} // closed by monitorExit once cmd.Wait returns
	exited   chan struct{} // closed after OnExit has run

	mu       sync.Mutex
	exitCode *int
	exitErr  error
	stopping bool
}

// Spawn starts the worker and its stream readers.
func Spawn(cfg Config, cb Callbacks, log *slog.Logger) (*WorkerHandle, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Path == "" {
		return nil, &SpawnError{Path: cfg.Path, Err: errors.New("no executable configured")}
	}

	cmd := exec.Command(cfg.Path, cfg.Args...)
	cmd.Env = cfg.Env
	cmd.Dir = cfg.Dir

	// Plain OS pipes keep cmd.Wait independent of our readers: exit is seen
	// as soon as the process is gone, even if a grandchild holds a pipe open.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Path: cfg.Path, Err: err}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, &SpawnError{Path: cfg.Path, Err: err}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{stdoutR, stdoutW, stderrR, stderrW} {
			f.Close()
		}
		return nil, &SpawnError{Path: cfg.Path, Err: err}
	}
	stdoutW.Close()
	stderrW.Close()

	h := &WorkerHandle{
		cmd:      cmd,
		log:      log.With("pid", cmd.Process.Pid),
		cb:       cb,
		waitDone: make(chan struct{}),
		exited:   make(chan struct{}),
	}
	h.alive.Store(true)
	h.log.Info("worker spawned", "path", cfg.Path, "args", cfg.Args, "elapsed", time.Since(startTime))

	h.readers.Add(2)
	go func() {
		defer h.readers.Done()
		h.readLines(stdoutR, "stdout", cb.OnStdout)
	}()
	go func() {
		defer h.readers.Done()
		h.readLines(stderrR, "stderr", cb.OnStderr)
	}()
	go h.monitorExit()

	return h, nil
}

// readLines scans one stream until EOF. An over-long line stops the scanner,
// after which the rest of the stream is discarded so the worker never blocks
// on a full pipe.
func (h *WorkerHandle) readLines(r *os.File, stream string, fn func(string)) {
	defer r.Close()

	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		if fn != nil {
			fn(scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		h.log.Warn("worker stream read failed", "stream", stream, "error", err)
		io.Copy(io.Discard, r)
	}
}

// monitorExit is the sole caller of cmd.Wait.
func (h *WorkerHandle) monitorExit() {
	err := h.cmd.Wait()
	h.alive.Store(false)

	var code *int
	if ps := h.cmd.ProcessState; ps != nil && ps.ExitCode() >= 0 {
		c := ps.ExitCode()
		code = &c
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// A non-zero status is carried by code.
		err = nil
	}

	h.mu.Lock()
	h.exitCode = code
	h.exitErr = err
	stopping := h.stopping
	h.mu.Unlock()
	close(h.waitDone)

	readersDone := make(chan struct{})
	go func() {
		h.readers.Wait()
		close(readersDone)
	}()
	select {
	case <-readersDone:
	case <-time.After(drainGrace):
		h.log.Warn("worker output still open after exit")
	}

	attrs := []any{"stopped", stopping}
	if code != nil {
		attrs = append(attrs, "code", *code)
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	h.log.Info("worker exited", attrs...)

	if h.cb.OnExit != nil {
		h.cb.OnExit(code, err)
	}
	close(h.exited)
}

// PID returns the worker's process id.
func (h *WorkerHandle) PID() int {
	return h.cmd.Process.Pid
}

// Alive reports whether the process is still running.
func (h *WorkerHandle) Alive() bool {
	return h.alive.Load()
}

// Done is closed after the exit notification has been delivered.
func (h *WorkerHandle) Done() <-chan struct{} {
	return h.exited
}

// ExitCode returns the exit code once the process has exited.
// code is nil if the process was killed by a signal.
func (h *WorkerHandle) ExitCode() (code *int, exited bool) {
	select {
	case <-h.waitDone:
	default:
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, true
}

// Stop terminates the worker and its children, escalating to a kill after
// grace. It returns once the exit notification has been delivered. Safe to
// call more than once.
func (h *WorkerHandle) Stop(grace time.Duration) error {
	h.mu.Lock()
	h.stopping = true
	h.mu.Unlock()

	if h.Alive() {
		h.log.Debug("stopping worker", "grace", grace)
		tree := processTree(h.PID())
		signalTree(tree, false)

		select {
		case <-h.waitDone:
			h.log.Debug("worker exited gracefully")
		case <-time.After(grace):
			h.log.Warn("force killing worker")
			signalTree(tree, true)
			if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				h.log.Warn("kill worker failed", "error", err)
			}
			<-h.waitDone
		}
	}

	<-h.exited
	return nil
}
