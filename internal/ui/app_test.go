package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harshul/vidnote/internal/api"
	"github.com/harshul/vidnote/internal/orchestrator"
	"github.com/harshul/vidnote/internal/portclient"
	"github.com/harshul/vidnote/internal/severity"
	"github.com/harshul/vidnote/internal/supervisor"
)

type fakeShell struct {
	mu       sync.Mutex
	status   orchestrator.Status
	restarts int
}

func (f *fakeShell) Status() orchestrator.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeShell) WaitReady(context.Context) (uint16, error) { return 0, nil }

func (f *fakeShell) BaseURL(context.Context) (string, error) {
	return "", errors.New("not wired in tests")
}

func (f *fakeShell) Restart() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	return nil
}

func (f *fakeShell) WorkerStats() (supervisor.Stats, error) {
	return supervisor.Stats{}, errors.New("worker not running")
}

func newTestApp(st orchestrator.Status) (*AppModel, *fakeShell) {
	shell := &fakeShell{status: st}
	app := NewApp(context.Background(), shell, NewDiagnostics(10), AppConfig{DownloadDir: "/tmp/videos"})
	return app, shell
}

func update(t *testing.T, m *AppModel, msg tea.Msg) (*AppModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	app, ok := next.(*AppModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return app, cmd
}

func typeText(t *testing.T, m *AppModel, s string) *AppModel {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func TestNewAppDefaults(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseInitializing})

	if app.dirInput.Value() != "/tmp/videos" {
		t.Errorf("expected dir input prefilled, got %q", app.dirInput.Value())
	}
	if app.focus != focusURL {
		t.Errorf("expected URL field focused, got %d", app.focus)
	}
	if app.cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("expected default poll interval, got %v", app.cfg.PollInterval)
	}
}

func TestSubmitBeforeReadyShowsStatus(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseInitializing})
	app = typeText(t, app, "https://example.com/v")

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("expected no command while the worker is starting")
	}
	if app.notice != "Starting worker..." {
		t.Errorf("unexpected notice %q", app.notice)
	}
	if app.submitting {
		t.Error("expected no submission")
	}
}

func TestSubmitRequiresURL(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: 5000})

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("expected no command without a URL")
	}
	if app.notice != "Enter a video URL" {
		t.Errorf("unexpected notice %q", app.notice)
	}
}

func TestSubmitWhenReady(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: 5000})
	app = typeText(t, app, "https://example.com/v")

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a submit command")
	}
	if !app.submitting {
		t.Error("expected submitting to be set")
	}

	msg := cmd()
	result, ok := msg.(submitResultMsg)
	if !ok {
		t.Fatalf("expected submitResultMsg, got %T", msg)
	}
	app, _ = update(t, app, result)
	if app.submitting {
		t.Error("expected submitting cleared")
	}
	if !strings.Contains(app.notice, "not wired in tests") {
		t.Errorf("expected error notice, got %q", app.notice)
	}
}

func TestStatusMessageUpdatesView(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseInitializing})

	app, _ = update(t, app, statusMsg(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: 6123}))
	if app.status.Phase != orchestrator.PhaseReady {
		t.Errorf("expected Ready, got %s", app.status.Phase)
	}
	if !strings.Contains(app.View(), "Worker ready on 127.0.0.1:6123") {
		t.Error("expected ready message in view")
	}
}

func TestTimeoutOffersRestart(t *testing.T) {
	st := orchestrator.Status{Phase: orchestrator.PhaseFailed, Reason: portclient.ErrHandshakeTimeout}
	app, shell := newTestApp(st)
	app, _ = update(t, app, tea.WindowSizeMsg{Width: 200, Height: 50})

	view := app.View()
	if !strings.Contains(view, "still starting") {
		t.Error("expected still-starting message")
	}
	if !strings.Contains(view, "restart worker") {
		t.Error("expected restart hint in footer")
	}

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd == nil {
		t.Fatal("expected restart command")
	}
	if msg := cmd(); msg != (restartResultMsg{}) {
		t.Errorf("unexpected restart result %#v", msg)
	}
	if shell.restarts != 1 {
		t.Errorf("expected 1 restart, got %d", shell.restarts)
	}
	if !app.restarting {
		t.Error("expected restarting flag")
	}
}

func TestRestartIgnoredWhileReady(t *testing.T) {
	app, shell := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: 5000})

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyCtrlR})
	if cmd != nil {
		t.Error("expected no restart while ready")
	}
	if shell.restarts != 0 {
		t.Errorf("expected no restarts, got %d", shell.restarts)
	}
	if app.notice != "Worker is running" {
		t.Errorf("unexpected notice %q", app.notice)
	}
}

func TestTaskProgressRendering(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: 5000})
	app, _ = update(t, app, submitResultMsg{taskID: "t1"})

	task := api.Task{
		TaskID: "t1",
		Title:  "Big Buck Bunny",
		Status: api.TaskDownloading,
		Progress: api.Progress{
			Status:  api.TaskDownloading,
			Percent: 50,
			Speed:   2 * 1024 * 1024,
			ETA:     12,
		},
	}
	app, cmd := update(t, app, taskMsg{task: task})
	if cmd == nil {
		t.Error("expected another poll while downloading")
	}
	view := app.View()
	if !strings.Contains(view, "Big Buck Bunny") {
		t.Error("expected title in view")
	}
	if !strings.Contains(view, "2.0 MiB/s") {
		t.Error("expected speed in view")
	}

	task.Status = api.TaskCompleted
	task.FilePath = "/tmp/videos/Big Buck Bunny.mp4"
	app, _ = update(t, app, taskMsg{task: task})
	if !strings.Contains(app.View(), "Saved to /tmp/videos/Big Buck Bunny.mp4") {
		t.Error("expected completion line in view")
	}
}

func TestStaleTaskIgnored(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: 5000})
	app, _ = update(t, app, submitResultMsg{taskID: "current"})

	app, _ = update(t, app, taskMsg{task: api.Task{TaskID: "old", Status: api.TaskCompleted}})
	if app.task != nil {
		t.Error("expected task from another submission to be ignored")
	}
}

func TestDiagnosticsRendering(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: 5000})

	app.diagnostics.Emit(severity.Diagnostic{Line: "[INIT] worker starting", Severity: severity.Normal, At: time.Now()})
	app.diagnostics.Emit(severity.Diagnostic{Line: "Server startup failed", Severity: severity.Elevated, At: time.Now()})
	app, _ = update(t, app, diagnosticMsg{})

	view := app.View()
	if !strings.Contains(view, "2 lines, 1 elevated") {
		t.Error("expected diagnostic counts in view")
	}
	if !strings.Contains(view, "Server startup failed") {
		t.Error("expected diagnostic line in view")
	}
}

func TestSendStatusNeverBlocks(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseInitializing})

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(app.updateChan)+10; i++ {
			app.SendStatus(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: uint16(i + 1)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendStatus blocked on a full channel")
	}
}

func TestQuitKey(t *testing.T) {
	app, _ := newTestApp(orchestrator.Status{Phase: orchestrator.PhaseReady, Port: 5000})

	app, cmd := update(t, app, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !app.quitting {
		t.Error("expected quitting")
	}
}
