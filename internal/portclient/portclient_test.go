package portclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harshul/vidnote/internal/handshake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deafSource drops subscriptions on the floor, so only polling can see the port.
type deafSource struct {
	mu         sync.Mutex
	port       uint16
	queries    int
	subscribed int
	cancelled  int
	terminated chan struct{}
}

func newDeafSource() *deafSource {
	return &deafSource{terminated: make(chan struct{})}
}

func (s *deafSource) TryGetPort() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	return s.port, s.port != 0
}

func (s *deafSource) Subscribe(func(handshake.Result)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.cancelled++
	}
}

func (s *deafSource) Terminated() <-chan struct{} { return s.terminated }

func (s *deafSource) ExitCode() (*int, bool) { return nil, false }

func (s *deafSource) set(port uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.port = port
}

func TestResolveAlreadyKnown(t *testing.T) {
	o := handshake.NewPortOracle()
	o.Publish(5173)

	start := time.Now()
	port, err := Resolve(context.Background(), o, Options{Timeout: 5 * time.Second, PollInterval: 900 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, uint16(5173), port)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestResolveViaSubscription(t *testing.T) {
	o := handshake.NewPortOracle()
	go func() {
		time.Sleep(50 * time.Millisecond)
		o.Publish(8080)
	}()

	start := time.Now()
	port, err := Resolve(context.Background(), o, Options{Timeout: 5 * time.Second, PollInterval: 900 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, uint16(8080), port)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "push path should win well before the first poll")
}

func TestResolveViaPolling(t *testing.T) {
	src := newDeafSource()
	go func() {
		time.Sleep(30 * time.Millisecond)
		src.set(4000)
	}()

	port, err := Resolve(context.Background(), src, Options{Timeout: 5 * time.Second, PollInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, uint16(4000), port)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 1, src.subscribed)
	assert.Equal(t, 1, src.cancelled, "losing subscription must be cancelled")
	assert.GreaterOrEqual(t, src.queries, 2)
}

func TestResolveFastFailOnTermination(t *testing.T) {
	o := handshake.NewPortOracle()
	code := 1
	go func() {
		time.Sleep(20 * time.Millisecond)
		o.MarkTerminated(&code)
	}()

	start := time.Now()
	_, err := Resolve(context.Background(), o, Options{Timeout: 5 * time.Second, PollInterval: 100 * time.Millisecond})
	elapsed := time.Since(start)

	var failed *WorkerFailedError
	require.ErrorAs(t, err, &failed)
	var term *handshake.TerminatedError
	require.ErrorAs(t, err, &term)
	require.NotNil(t, term.Code)
	assert.Equal(t, 1, *term.Code)
	assert.Less(t, elapsed, time.Second)
}

func TestResolveTerminationChannelWithoutPush(t *testing.T) {
	src := newDeafSource()
	close(src.terminated)

	_, err := Resolve(context.Background(), src, Options{Timeout: 5 * time.Second, PollInterval: time.Second / 2})
	var term *handshake.TerminatedError
	assert.ErrorAs(t, err, &term)
}

func TestResolveFailurePushed(t *testing.T) {
	o := handshake.NewPortOracle()
	cause := errors.New("spawn refused")
	go func() {
		time.Sleep(10 * time.Millisecond)
		o.Fail(cause)
	}()

	_, err := Resolve(context.Background(), o, Options{Timeout: 5 * time.Second})
	assert.ErrorIs(t, err, cause)
}

func TestResolveTimeoutCeiling(t *testing.T) {
	o := handshake.NewPortOracle()
	timeout := 300 * time.Millisecond
	poll := 50 * time.Millisecond

	start := time.Now()
	_, err := Resolve(context.Background(), o, Options{Timeout: timeout, PollInterval: poll})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrHandshakeTimeout)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+poll+200*time.Millisecond)
}

func TestResolveContextCancelled(t *testing.T) {
	src := newDeafSource()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Resolve(ctx, src, Options{Timeout: 5 * time.Second, PollInterval: 50 * time.Millisecond})
	require.ErrorIs(t, err, context.Canceled)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, src.subscribed, src.cancelled)
}

func TestClientCachesPort(t *testing.T) {
	src := newDeafSource()
	src.set(6000)
	c := NewClient(src, Options{Timeout: time.Second, PollInterval: 50 * time.Millisecond})

	port, err := c.Port(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(6000), port)

	// A re-announcement upstream must not move an established session.
	src.set(7000)
	port, err = c.Port(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(6000), port)

	url, err := c.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:6000", url)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 1, src.queries)
}

func TestClientRetriesAfterTimeout(t *testing.T) {
	src := newDeafSource()
	c := NewClient(src, Options{Timeout: 100 * time.Millisecond, PollInterval: 20 * time.Millisecond})

	_, err := c.Port(context.Background())
	require.ErrorIs(t, err, ErrHandshakeTimeout)

	src.set(4321)
	port, err := c.Port(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(4321), port)
}
