package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harshul/vidnote/internal/handshake"
	"github.com/harshul/vidnote/internal/portclient"
	"github.com/harshul/vidnote/internal/severity"
	"github.com/harshul/vidnote/internal/stubworker"
	"github.com/harshul/vidnote/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	stubworker.MaybeRun()
	os.Exit(m.Run())
}

func newShell(t *testing.T, mode string, timeout time.Duration, sinks ...severity.Sink) *Shell {
	t.Helper()
	path, env := stubworker.Command(mode)
	s := New(Options{
		Worker:    supervisor.Config{Path: path, Env: env},
		Handshake: portclient.Options{Timeout: timeout, PollInterval: 100 * time.Millisecond},
		StopGrace: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), sinks...)
	t.Cleanup(func() { s.Stop() })
	return s
}

type collector struct {
	mu    sync.Mutex
	diags []severity.Diagnostic
}

func (c *collector) Emit(d severity.Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, d)
}

func (c *collector) elevated() []severity.Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []severity.Diagnostic
	for _, d := range c.diags {
		if d.Severity == severity.Elevated {
			out = append(out, d)
		}
	}
	return out
}

// Scenario A: the worker announces after 500ms.
func TestScenarioLateAnnouncement(t *testing.T) {
	s := newShell(t, stubworker.AnnounceLate, 5*time.Second)
	require.NoError(t, s.Start())

	start := time.Now()
	port, err := s.WaitReady(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, uint16(54321), port)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	st := s.Status()
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Equal(t, uint16(54321), st.Port)
}

// Scenario B: the worker exits with code 1 without a word.
func TestScenarioImmediateExit(t *testing.T) {
	s := newShell(t, stubworker.ExitOne, 5*time.Second)
	require.NoError(t, s.Start())

	start := time.Now()
	_, err := s.WaitReady(context.Background())
	elapsed := time.Since(start)

	var term *handshake.TerminatedError
	require.ErrorAs(t, err, &term)
	require.NotNil(t, term.Code)
	assert.Equal(t, 1, *term.Code)
	assert.Less(t, elapsed, 3*time.Second, "must fail fast, not wait for the 5s ceiling")

	st := s.Status()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.True(t, st.CanRestart())
	assert.Contains(t, st.Message(), "exit code 1")
}

// Scenario C: an error on stderr does not disturb the handshake on stdout.
func TestScenarioStderrErrorThenAnnounce(t *testing.T) {
	diags := &collector{}
	s := newShell(t, stubworker.CrashLogThenAnnounce, 5*time.Second, diags)
	require.NoError(t, s.Start())

	port, err := s.WaitReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(9999), port)

	require.Eventually(t, func() bool { return len(diags.elevated()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "ERROR: simulated crash", diags.elevated()[0].Line)

	total, elevated := s.DiagnosticCounts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, elevated)
}

func TestMalformedAnnouncementIsSkipped(t *testing.T) {
	s := newShell(t, stubworker.Garbage, 5*time.Second)
	require.NoError(t, s.Start())

	port, err := s.WaitReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(5173), port)
}

func TestHandshakeTimeoutIsStillStarting(t *testing.T) {
	s := newShell(t, stubworker.Silent, 300*time.Millisecond)
	require.NoError(t, s.Start())

	_, err := s.WaitReady(context.Background())
	require.ErrorIs(t, err, portclient.ErrHandshakeTimeout)

	st := s.Status()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.True(t, st.StillStarting())
	assert.Contains(t, st.Message(), "still starting")
}

func TestTerminatedAfterReady(t *testing.T) {
	s := newShell(t, stubworker.AnnounceThenExit, 5*time.Second)

	statuses := make(chan Status, 10)
	s.OnStatus(func(st Status) { statuses <- st })
	require.NoError(t, s.Start())

	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-statuses:
			if st.Phase == PhaseTerminated {
				assert.Equal(t, uint16(7000), st.Port)
				require.NotNil(t, st.ExitCode)
				assert.Equal(t, 0, *st.ExitCode)
				return
			}
		case <-deadline:
			t.Fatalf("never reached Terminated, last status %+v", s.Status())
		}
	}
}

func TestSpawnFailure(t *testing.T) {
	s := New(Options{
		Worker:    supervisor.Config{Path: filepath.Join(t.TempDir(), "missing-worker")},
		Handshake: portclient.Options{Timeout: 5 * time.Second},
	}, nil)

	err := s.Start()
	var spawnErr *supervisor.SpawnError
	require.True(t, errors.As(err, &spawnErr))

	_, err = s.WaitReady(context.Background())
	require.ErrorAs(t, err, &spawnErr)

	st := s.Status()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Contains(t, st.Message(), "Could not start worker")
}

func TestRestartUsesFreshOracle(t *testing.T) {
	s := newShell(t, stubworker.CrashLogThenAnnounce, 5*time.Second)
	require.NoError(t, s.Start())
	_, err := s.WaitReady(context.Background())
	require.NoError(t, err)
	first := s.Oracle()

	require.NoError(t, s.Restart())
	assert.NotSame(t, first, s.Oracle())

	port, err := s.WaitReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(9999), port)
	assert.Equal(t, 2, s.Status().Generation)
}

func TestLateAnnouncementAfterTimeoutBecomesReady(t *testing.T) {
	s := newShell(t, stubworker.AnnounceLate, 200*time.Millisecond)
	require.NoError(t, s.Start())

	_, err := s.WaitReady(context.Background())
	require.ErrorIs(t, err, portclient.ErrHandshakeTimeout)
	assert.True(t, s.Status().StillStarting())

	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseReady
	}, 3*time.Second, 20*time.Millisecond, "late announcement must move the shell to Ready")
	assert.Equal(t, uint16(54321), s.Status().Port)
}

func TestBaseURLAfterWorkerExit(t *testing.T) {
	s := newShell(t, stubworker.AnnounceThenExit, 5*time.Second)
	require.NoError(t, s.Start())

	port, err := s.WaitReady(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(7000), port)

	require.Eventually(t, func() bool {
		return s.Status().Phase == PhaseTerminated
	}, 5*time.Second, 20*time.Millisecond)

	_, err = s.BaseURL(context.Background())
	var failed *portclient.WorkerFailedError
	require.ErrorAs(t, err, &failed)
	var term *handshake.TerminatedError
	require.ErrorAs(t, err, &term)
	require.NotNil(t, term.Code)
	assert.Equal(t, 0, *term.Code)
}
