// Package orchestrator composes the shell side of vidnote: it spawns the
// worker, wires its stdout into the handshake extractor and its stderr into
// the severity classifier, and folds every outcome into a small set of
// UI-visible states.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harshul/vidnote/internal/handshake"
	"github.com/harshul/vidnote/internal/portclient"
	"github.com/harshul/vidnote/internal/severity"
	"github.com/harshul/vidnote/internal/supervisor"
)

// Options controls how the shell runs the worker.
type Options struct {
	Worker    supervisor.Config
	Handshake portclient.Options
	StopGrace time.Duration
}

// Shell owns one worker at a time. Restart replaces the worker together with
// its PortOracle, since the port latch lives exactly as long as one process.
type Shell struct {
	opts  Options
	log   *slog.Logger
	sinks []severity.Sink

	mu         sync.Mutex
	generation int
	oracle     *handshake.PortOracle
	client     *portclient.Client
	handle     *supervisor.WorkerHandle
	classifier *severity.Classifier
	status     Status
	listeners  []func(Status)
}

// New returns a shell that has not spawned anything yet. Diagnostics from the
// worker's stderr go to the log and to every extra sink.
func New(opts Options, log *slog.Logger, sinks ...severity.Sink) *Shell {
	if log == nil {
		log = slog.Default()
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = 2 * time.Second
	}
	return &Shell{
		opts:   opts,
		log:    log,
		sinks:  sinks,
		oracle: handshake.NewPortOracle(),
		status: Status{Phase: PhaseInitializing},
	}
}

// OnStatus registers fn for every status change. fn runs on the goroutine
// that caused the change and must not block.
func (s *Shell) OnStatus(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Status returns the current UI-visible state.
func (s *Shell) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Oracle returns the port oracle of the current worker.
func (s *Shell) Oracle() *handshake.PortOracle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oracle
}

// Start spawns a worker. A SpawnError is returned and also recorded as the
// Failed state; there is no fallback worker.
func (s *Shell) Start() error {
	oracle := handshake.NewPortOracle()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.oracle = oracle
	s.client = portclient.NewClient(oracle, s.opts.Handshake)
	s.handle = nil
	s.mu.Unlock()

	s.update(gen, func(Status) Status {
		return Status{Phase: PhaseInitializing, Generation: gen}
	})

	workerLog := s.log.With("component", "worker", "generation", gen)
	extractor := handshake.NewExtractor(oracle, workerLog.With("stream", "stdout"))
	sinks := append([]severity.Sink{severity.LogSink{Log: workerLog}}, s.sinks...)
	classifier := severity.NewClassifier(sinks...)

	callbacks := supervisor.Callbacks{
		OnStdout: func(line string) {
			if extractor.Consume(line) {
				port, _ := oracle.TryGetPort()
				s.update(gen, func(cur Status) Status {
					if cur.Phase != PhaseInitializing && !isTimeout(cur) {
						return cur
					}
					return Status{Phase: PhaseReady, Port: port, Generation: gen}
				})
			}
		},
		OnStderr: func(line string) {
			classifier.Consume(line)
		},
		OnExit: func(code *int, err error) {
			oracle.MarkTerminated(code)
			s.update(gen, func(cur Status) Status {
				if cur.Phase == PhaseReady {
					return Status{Phase: PhaseTerminated, Port: cur.Port, ExitCode: code, Generation: gen}
				}
				return Status{Phase: PhaseFailed, Reason: &handshake.TerminatedError{Code: code}, ExitCode: code, Generation: gen}
			})
		},
	}

	handle, err := supervisor.Spawn(s.opts.Worker, callbacks, s.log.With("component", "supervisor"))
	if err != nil {
		oracle.Fail(err)
		s.update(gen, func(Status) Status {
			return Status{Phase: PhaseFailed, Reason: err, Generation: gen}
		})
		return err
	}

	s.mu.Lock()
	if s.generation == gen {
		s.handle = handle
		s.classifier = classifier
	}
	s.mu.Unlock()
	return nil
}

// WaitReady resolves the current worker's port, racing the push, poll and
// termination paths with the configured ceiling. Failures are recorded as the
// Failed state; a context cancellation leaves the state untouched.
func (s *Shell) WaitReady(ctx context.Context) (uint16, error) {
	s.mu.Lock()
	gen := s.generation
	client := s.client
	s.mu.Unlock()

	if client == nil {
		return 0, errors.New("worker not started")
	}

	port, err := client.Port(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		reason := err
		var failed *portclient.WorkerFailedError
		if errors.As(err, &failed) {
			reason = failed.Reason
		}
		s.update(gen, func(cur Status) Status {
			if cur.Phase == PhaseTerminated || cur.Phase == PhaseFailed {
				return cur
			}
			return Status{Phase: PhaseFailed, Reason: reason, Generation: gen}
		})
		return 0, err
	}

	s.update(gen, func(cur Status) Status {
		if cur.Phase == PhaseInitializing || isTimeout(cur) {
			return Status{Phase: PhaseReady, Port: port, Generation: gen}
		}
		return cur
	})
	return port, nil
}

// BaseURL is the HTTP root of a ready worker. A worker that has exited since
// its handshake yields a *portclient.WorkerFailedError.
func (s *Shell) BaseURL(ctx context.Context) (string, error) {
	if _, err := s.WaitReady(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	client := s.client
	st := s.status
	s.mu.Unlock()

	if st.Phase == PhaseTerminated {
		return "", &portclient.WorkerFailedError{Reason: &handshake.TerminatedError{Code: st.ExitCode}}
	}
	return client.BaseURL(ctx)
}

// Restart stops the current worker, if any, and spawns a new one.
func (s *Shell) Restart() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.log.Info("restarting worker")
	return s.Start()
}

// Stop terminates the current worker and waits for its exit notification.
func (s *Shell) Stop() error {
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()

	if handle == nil {
		return nil
	}
	if err := handle.Stop(s.opts.StopGrace); err != nil {
		return fmt.Errorf("stop worker: %w", err)
	}
	return nil
}

// WorkerStats samples the running worker's resource usage.
func (s *Shell) WorkerStats() (supervisor.Stats, error) {
	s.mu.Lock()
	handle := s.handle
	s.mu.Unlock()

	if handle == nil {
		return supervisor.Stats{}, errors.New("worker not running")
	}
	return handle.Stats()
}

// DiagnosticCounts returns how many worker stderr lines were seen and how many were elevated.
func (s *Shell) DiagnosticCounts() (total, elevated int) {
	s.mu.Lock()
	classifier := s.classifier
	s.mu.Unlock()

	if classifier == nil {
		return 0, 0
	}
	return classifier.Counts()
}

// update applies fn to the status if gen is still current, then notifies listeners.
func (s *Shell) update(gen int, fn func(Status) Status) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	prev := s.status
	next := fn(prev)
	s.status = next
	listeners := make([]func(Status), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if next.equal(prev) {
		return
	}
	s.log.Info("worker status", "phase", next.Phase, "port", next.Port, "generation", gen)
	for _, fn := range listeners {
		fn(next)
	}
}

func isTimeout(st Status) bool {
	return st.Phase == PhaseFailed && errors.Is(st.Reason, portclient.ErrHandshakeTimeout)
}
