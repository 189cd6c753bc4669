package orchestrator

import (
	"errors"
	"fmt"

	"github.com/harshul/vidnote/internal/handshake"
	"github.com/harshul/vidnote/internal/portclient"
	"github.com/harshul/vidnote/internal/supervisor"
)

// Phase is the UI-visible lifecycle of the worker.
type Phase string

const (
	PhaseInitializing Phase = "Initializing"
	PhaseReady        Phase = "Ready"
	PhaseFailed       Phase = "Failed"
	PhaseTerminated   Phase = "Terminated"
)

// Status is everything the UI needs to render the worker's state.
type Status struct {
	Phase      Phase
	Port       uint16 // set in Ready, kept in Terminated
	Reason     error  // set in Failed
	ExitCode   *int   // set when the worker has exited, nil if unknown
	Generation int
}

func (s Status) equal(o Status) bool {
	return s.Phase == o.Phase && s.Port == o.Port && s.Reason == o.Reason &&
		s.ExitCode == o.ExitCode && s.Generation == o.Generation
}

// StillStarting reports the timeout case: no announcement and no exit yet.
func (s Status) StillStarting() bool {
	return isTimeout(s)
}

// CanRestart reports whether offering a restart makes sense.
func (s Status) CanRestart() bool {
	return s.Phase == PhaseFailed || s.Phase == PhaseTerminated
}

// Message renders the status for people.
func (s Status) Message() string {
	switch s.Phase {
	case PhaseInitializing:
		return "Starting worker..."
	case PhaseReady:
		return fmt.Sprintf("Worker ready on 127.0.0.1:%d", s.Port)
	case PhaseTerminated:
		return "Worker stopped " + exitText(s.ExitCode) + "; restart to continue"
	}

	var spawnErr *supervisor.SpawnError
	var term *handshake.TerminatedError
	switch {
	case errors.Is(s.Reason, portclient.ErrHandshakeTimeout):
		return "Worker is still starting and taking unusually long; wait or restart"
	case errors.As(s.Reason, &spawnErr):
		return fmt.Sprintf("Could not start worker: %v", spawnErr.Err)
	case errors.As(s.Reason, &term):
		return "Worker exited before it was ready " + exitText(term.Code)
	case s.Reason != nil:
		return fmt.Sprintf("Worker failed: %v", s.Reason)
	default:
		return "Worker failed"
	}
}

func exitText(code *int) string {
	if code == nil {
		return "(no exit code)"
	}
	return fmt.Sprintf("(exit code %d)", *code)
}
