// Package portclient resolves the worker port for UI code.
//
// Resolve races three paths: an immediate query, a one-shot subscription and
// a short polling loop. The first to produce a port wins. Worker failure or
// termination ends the wait at once; otherwise it gives up at the timeout.
package portclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harshul/vidnote/internal/handshake"
)

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = 250 * time.Millisecond

// ErrHandshakeTimeout means the worker neither announced nor died in time.
// The worker may still be starting.
var ErrHandshakeTimeout = errors.New("handshake timed out: worker is still starting")

// WorkerFailedError means the worker failed or exited, so its port is unusable.
type WorkerFailedError struct {
	Reason error
}

func (e *WorkerFailedError) Error() string {
	return fmt.Sprintf("worker unavailable: %v", e.Reason)
}

func (e *WorkerFailedError) Unwrap() error { return e.Reason }

// Source is the shell side of the handshake. *handshake.PortOracle implements it.
type Source interface {
	TryGetPort() (uint16, bool)
	Subscribe(fn func(handshake.Result)) (cancel func())
	Terminated() <-chan struct{}
	ExitCode() (code *int, ok bool)
}

// Options bound the wait.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Resolve waits for the worker port.
//
// It returns ErrHandshakeTimeout at the ceiling, a *WorkerFailedError as soon
// as the worker fails or terminates, or ctx.Err() on cancellation. Timers and
// the subscription are released before it returns.
func Resolve(ctx context.Context, src Source, opts Options) (uint16, error) {
	if port, ok := src.TryGetPort(); ok {
		return port, nil
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	pushed := make(chan handshake.Result, 1)
	unsubscribe := src.Subscribe(func(r handshake.Result) {
		select {
		case pushed <- r:
		default:
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case r := <-pushed:
			if r.Err != nil {
				return 0, &WorkerFailedError{Reason: r.Err}
			}
			return r.Port, nil

		case <-ticker.C:
			if port, ok := src.TryGetPort(); ok {
				return port, nil
			}

		case <-src.Terminated():
			if port, ok := src.TryGetPort(); ok {
				// Announced, then died. The port is dead already.
				code, _ := src.ExitCode()
				return 0, &WorkerFailedError{Reason: fmt.Errorf("port %d: %w", port, &handshake.TerminatedError{Code: code})}
			}
			code, _ := src.ExitCode()
			return 0, &WorkerFailedError{Reason: &handshake.TerminatedError{Code: code}}

		case <-deadline:
			return 0, ErrHandshakeTimeout

		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Client caches the first successful resolution for the rest of the session.
type Client struct {
	src  Source
	opts Options

	mu   sync.Mutex
	port uint16
}

// NewClient returns a client resolving against src.
func NewClient(src Source, opts Options) *Client {
	return &Client{src: src, opts: opts}
}

// Port resolves once and returns the cached port afterwards. Failed attempts
// are not cached, so a timed-out caller may try again.
func (c *Client) Port(ctx context.Context) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != 0 {
		return c.port, nil
	}
	port, err := Resolve(ctx, c.src, c.opts)
	if err != nil {
		return 0, err
	}
	c.port = port
	return port, nil
}

// BaseURL resolves the port and returns the worker's HTTP base URL.
func (c *Client) BaseURL(ctx context.Context) (string, error) {
	port, err := c.Port(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://127.0.0.1:%d", port), nil
}
