package handshake

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPortUnknown is what a port query yields before the worker has announced.
var ErrPortUnknown = errors.New("worker port not yet available")

// TerminatedError reports that the worker process exited.
type TerminatedError struct {
	Code *int // nil when the exit code is unavailable (e.g. killed by a signal)
}

func (e *TerminatedError) Error() string {
	if e.Code == nil {
		return "worker terminated"
	}
	return fmt.Sprintf("worker terminated with exit code %d", *e.Code)
}

// State is the lifecycle of the discovered port.
type State int

const (
	StateUnknown State = iota
	StateKnown
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateKnown:
		return "known"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is delivered to subscribers exactly once.
type Result struct {
	Port uint16
	Err  error
}

// Snapshot is a point-in-time copy of the oracle.
type Snapshot struct {
	State  State
	Port   uint16
	Reason error
}

// PortOracle holds the worker's port as a one-shot latch.
//
// The state moves from Unknown to Known or Failed at most once. Worker
// termination is tracked separately and is also delivered exactly once.
// One PortOracle serves one worker lifetime.
type PortOracle struct {
	mu     sync.Mutex
	state  State
	port   uint16
	reason error

	nextID      int
	subscribers map[int]func(Result)

	terminated     chan struct{}
	terminatedOnce bool
	exitCode       *int
}

// NewPortOracle returns an oracle in the Unknown state.
func NewPortOracle() *PortOracle {
	return &PortOracle{
		subscribers: make(map[int]func(Result)),
		terminated:  make(chan struct{}),
	}
}

// TryGetPort never blocks.
func (o *PortOracle) TryGetPort() (uint16, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.port, o.state == StateKnown
}

// Port is TryGetPort with an error for the not-yet-known and failed cases.
func (o *PortOracle) Port() (uint16, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case StateKnown:
		return o.port, nil
	case StateFailed:
		return 0, o.reason
	default:
		return 0, ErrPortUnknown
	}
}

// Snapshot returns the current state.
func (o *PortOracle) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{State: o.state, Port: o.port, Reason: o.reason}
}

// Publish latches port. It returns false if the oracle already left Unknown.
func (o *PortOracle) Publish(port uint16) bool {
	return o.settle(Result{Port: port})
}

// Fail latches a failure. It returns false if the oracle already left Unknown.
func (o *PortOracle) Fail(reason error) bool {
	if reason == nil {
		reason = errors.New("worker failed")
	}
	return o.settle(Result{Err: reason})
}

func (o *PortOracle) settle(r Result) bool {
	o.mu.Lock()
	if o.state != StateUnknown {
		o.mu.Unlock()
		return false
	}
	if r.Err != nil {
		o.state, o.reason = StateFailed, r.Err
	} else {
		o.state, o.port = StateKnown, r.Port
	}
	subs := o.subscribers
	o.subscribers = nil
	o.mu.Unlock()

	for _, fn := range subs {
		fn(r)
	}
	return true
}

// Subscribe registers fn to receive the outcome exactly once. If the oracle
// has already settled, fn is invoked immediately on a new goroutine. fn must
// not block. The returned cancel removes a pending subscription.
func (o *PortOracle) Subscribe(fn func(Result)) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateUnknown {
		r := Result{Port: o.port, Err: o.reason}
		go fn(r)
		return func() {}
	}

	id := o.nextID
	o.nextID++
	o.subscribers[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subscribers, id)
	}
}

// MarkTerminated records the worker's exit. The first call closes the
// Terminated channel and, if no port was announced, fails the oracle with a
// TerminatedError. Later calls return false and change nothing.
func (o *PortOracle) MarkTerminated(code *int) bool {
	o.mu.Lock()
	if o.terminatedOnce {
		o.mu.Unlock()
		return false
	}
	o.terminatedOnce = true
	o.exitCode = code
	close(o.terminated)
	o.mu.Unlock()

	o.Fail(&TerminatedError{Code: code})
	return true
}

// Terminated is closed once the worker has exited.
func (o *PortOracle) Terminated() <-chan struct{} {
	return o.terminated
}

// ExitCode returns the worker's exit code after termination.
// ok is false while the worker runs; code is nil if the OS did not report one.
func (o *PortOracle) ExitCode() (code *int, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.exitCode, o.terminatedOnce
}
