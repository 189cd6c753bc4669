package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harshul/vidnote/internal/api"
	"github.com/harshul/vidnote/internal/orchestrator"
	"github.com/harshul/vidnote/internal/severity"
	"github.com/harshul/vidnote/internal/supervisor"
)

// Shell is the part of the orchestrator the app drives.
type Shell interface {
	Status() orchestrator.Status
	WaitReady(ctx context.Context) (uint16, error)
	BaseURL(ctx context.Context) (string, error)
	Restart() error
	WorkerStats() (supervisor.Stats, error)
}

// AppConfig holds the form defaults and polling cadence.
type AppConfig struct {
	DownloadDir  string
	Format       string
	PollInterval time.Duration
}

const (
	focusURL = iota
	focusDir
)

// AppModel is the bubbletea model of the vidnote shell.
type AppModel struct {
	ctx         context.Context
	shell       Shell
	diagnostics *Diagnostics
	cfg         AppConfig

	status    orchestrator.Status
	resources ResourceStats

	urlInput textinput.Model
	dirInput textinput.Model
	focus    int
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model

	taskID     string
	task       *api.Task
	submitting bool
	restarting bool
	notice     string

	width    int
	height   int
	quitting bool

	updateChan chan tea.Msg
	keys       keyMap
	styles     *Styles
}

type keyMap struct {
	Submit     key.Binding
	NextField  key.Binding
	Restart    key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "download"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "next field"),
		),
		Restart: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "restart worker"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// Messages for bubbletea
type tickMsg time.Time
type resourceUpdateMsg ResourceStats
type statusMsg orchestrator.Status
type diagnosticMsg severity.Diagnostic
type submitResultMsg struct {
	taskID string
	err    error
}
type taskMsg struct {
	task api.Task
	err  error
}
type pollTaskMsg struct{ taskID string }
type restartResultMsg struct{ err error }
type quitMsg struct{}

// NewApp creates the app model. diagnostics may be nil.
func NewApp(ctx context.Context, shell Shell, diagnostics *Diagnostics, cfg AppConfig) *AppModel {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	urlInput := textinput.New()
	urlInput.Prompt = ""
	urlInput.Placeholder = "https://www.youtube.com/watch?v=..."
	urlInput.CharLimit = 2048
	urlInput.Width = 60
	urlInput.Focus()

	dirInput := textinput.New()
	dirInput.Prompt = ""
	dirInput.Placeholder = "download directory"
	dirInput.CharLimit = 1024
	dirInput.Width = 60
	dirInput.SetValue(cfg.DownloadDir)

	vp := viewport.New(80, 8)
	vp.SetContent("")
	vp.MouseWheelEnabled = true

	return &AppModel{
		ctx:         ctx,
		shell:       shell,
		diagnostics: diagnostics,
		cfg:         cfg,
		status:      shell.Status(),
		urlInput:    urlInput,
		dirInput:    dirInput,
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		viewport:    vp,
		updateChan:  make(chan tea.Msg, 100),
		keys:        defaultKeyMap(),
		styles:      DefaultStyles(),
	}
}

// Init implements tea.Model
func (m *AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(),
		m.listenForUpdates(),
		m.spinner.Tick,
		textinput.Blink,
		m.fetchResourceStats(),
	}
	if m.diagnostics != nil {
		cmds = append(cmds, m.listenForDiagnostics())
	}
	return tea.Batch(cmds...)
}

// tickCmd returns a command that ticks every second
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *AppModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updateChan
	}
}

func (m *AppModel) listenForDiagnostics() tea.Cmd {
	updates := m.diagnostics.Updates()
	return func() tea.Msg {
		return diagnosticMsg(<-updates)
	}
}

func (m *AppModel) fetchResourceStats() tea.Cmd {
	shell := m.shell
	return func() tea.Msg {
		return resourceUpdateMsg(GetResourceStats(shell))
	}
}

// Update implements tea.Model
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Restart):
			return m, m.restart()
		case key.Matches(msg, m.keys.NextField):
			return m, m.toggleFocus()
		case key.Matches(msg, m.keys.Submit):
			return m, m.submit()
		case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		if m.focus == focusURL {
			m.urlInput, cmd = m.urlInput.Update(msg)
		} else {
			m.dirInput, cmd = m.dirInput.Update(msg)
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		inner := msg.Width - 8
		if inner < 40 {
			inner = 40
		}
		m.urlInput.Width = inner - 12
		m.dirInput.Width = inner - 12
		m.progress.Width = inner - 20
		m.viewport.Width = inner
		logHeight := msg.Height - 22
		if logHeight < 4 {
			logHeight = 4
		}
		m.viewport.Height = logHeight
		m.refreshDiagnostics()

	case tickMsg:
		m.status = m.shell.Status()
		cmds = append(cmds, tickCmd(), m.fetchResourceStats())

	case resourceUpdateMsg:
		m.resources = ResourceStats(msg)

	case statusMsg:
		m.status = orchestrator.Status(msg)
		cmds = append(cmds, m.listenForUpdates())

	case quitMsg:
		m.quitting = true
		return m, tea.Quit

	case diagnosticMsg:
		m.refreshDiagnostics()
		cmds = append(cmds, m.listenForDiagnostics())

	case submitResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.notice = fmt.Sprintf("Download failed to start: %v", msg.err)
			break
		}
		m.taskID = msg.taskID
		m.task = nil
		m.notice = ""
		cmds = append(cmds, m.fetchTask(msg.taskID))

	case pollTaskMsg:
		if msg.taskID != "" && msg.taskID == m.taskID {
			cmds = append(cmds, m.fetchTask(msg.taskID))
		}

	case taskMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("Lost track of download: %v", msg.err)
			if m.taskID != "" && m.status.Phase == orchestrator.PhaseReady {
				cmds = append(cmds, m.schedulePoll(m.taskID))
			}
			break
		}
		if msg.task.TaskID != m.taskID {
			break
		}
		task := msg.task
		m.task = &task
		if !task.Status.IsFinished() {
			cmds = append(cmds, m.schedulePoll(task.TaskID))
		}

	case restartResultMsg:
		m.restarting = false
		if msg.err != nil {
			m.notice = fmt.Sprintf("Restart failed: %v", msg.err)
		} else {
			m.notice = ""
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		if m.focus == focusURL {
			m.urlInput, cmd = m.urlInput.Update(msg)
		} else {
			m.dirInput, cmd = m.dirInput.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *AppModel) toggleFocus() tea.Cmd {
	if m.focus == focusURL {
		m.focus = focusDir
		m.urlInput.Blur()
		return m.dirInput.Focus()
	}
	m.focus = focusURL
	m.dirInput.Blur()
	return m.urlInput.Focus()
}

// submit starts a download if the worker is ready. Before that the user only
// sees why it is not.
func (m *AppModel) submit() tea.Cmd {
	url := strings.TrimSpace(m.urlInput.Value())
	dir := strings.TrimSpace(m.dirInput.Value())
	switch {
	case url == "":
		m.notice = "Enter a video URL"
		return nil
	case dir == "":
		m.notice = "Enter a download directory"
		return nil
	case m.status.Phase != orchestrator.PhaseReady:
		m.notice = m.status.Message()
		return nil
	case m.submitting:
		return nil
	}

	m.submitting = true
	m.notice = ""
	req := api.DownloadRequest{URL: url, SavePath: dir, FormatPreference: m.cfg.Format}
	ctx, shell := m.ctx, m.shell
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		base, err := shell.BaseURL(ctx)
		if err != nil {
			return submitResultMsg{err: err}
		}
		resp, err := api.NewClient(base).SubmitDownload(ctx, req)
		if err != nil {
			return submitResultMsg{err: err}
		}
		return submitResultMsg{taskID: resp.TaskID}
	}
}

func (m *AppModel) fetchTask(id string) tea.Cmd {
	ctx, shell := m.ctx, m.shell
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		base, err := shell.BaseURL(ctx)
		if err != nil {
			return taskMsg{err: err}
		}
		task, err := api.NewClient(base).GetDownload(ctx, id)
		return taskMsg{task: task, err: err}
	}
}

func (m *AppModel) schedulePoll(id string) tea.Cmd {
	return tea.Tick(m.cfg.PollInterval, func(time.Time) tea.Msg {
		return pollTaskMsg{taskID: id}
	})
}

// restart is offered once the worker failed, stopped, or is taking unusually
// long to announce.
func (m *AppModel) restart() tea.Cmd {
	if m.restarting {
		return nil
	}
	if !m.status.CanRestart() {
		m.notice = "Worker is running"
		return nil
	}

	m.restarting = true
	m.notice = "Restarting worker..."
	m.taskID = ""
	m.task = nil
	ctx, shell := m.ctx, m.shell
	return func() tea.Msg {
		if err := shell.Restart(); err != nil {
			return restartResultMsg{err: err}
		}
		_, err := shell.WaitReady(ctx)
		return restartResultMsg{err: err}
	}
}

func (m *AppModel) refreshDiagnostics() {
	if m.diagnostics == nil {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderDiagnostics(m.diagnostics.Lines()))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *AppModel) renderDiagnostics(lines []severity.Diagnostic) string {
	var b strings.Builder
	for i, d := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		line := d.At.Format("15:04:05") + " " + d.Line
		if d.Severity == severity.Elevated {
			b.WriteString(m.styles.LogError.Render(line))
		} else {
			b.WriteString(m.styles.LogLine.Render(line))
		}
	}
	return b.String()
}

// View implements tea.Model
func (m *AppModel) View() string {
	if m.quitting {
		return "Stopping worker...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderForm())
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(m.styles.Notice.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(m.renderTask())
	b.WriteString("\n")
	b.WriteString(m.renderDiagnosticsPanel())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return m.styles.App.Render(b.String())
}

func (m *AppModel) renderHeader() string {
	title := "vidnote"

	status := fmt.Sprintf("CPU: %.1f%% | Mem: %s/%s",
		m.resources.CPUPercent, FormatBytes(m.resources.MemoryUsed), FormatBytes(m.resources.MemoryTotal))

	headerWidth := m.width - 4
	if headerWidth < 40 {
		headerWidth = 40
	}

	padding := headerWidth - lipgloss.Width(title) - lipgloss.Width(status)
	if padding < 1 {
		padding = 1
	}

	return m.styles.Header.Width(headerWidth).Render(
		title + strings.Repeat(" ", padding) + status,
	)
}

func (m *AppModel) renderStatus() string {
	var style lipgloss.Style
	icon := ""
	switch m.status.Phase {
	case orchestrator.PhaseReady:
		style = m.styles.PhaseReady
		icon = "●"
	case orchestrator.PhaseTerminated:
		style = m.styles.PhaseTerminated
		icon = "■"
	case orchestrator.PhaseFailed:
		style = m.styles.PhaseFailed
		icon = "✗"
	default:
		style = m.styles.PhaseInitializing
		icon = m.spinner.View()
	}
	if m.status.StillStarting() {
		style = m.styles.PhaseInitializing
		icon = m.spinner.View()
	}

	line := style.Render(icon + " " + m.status.Message())
	if m.resources.WorkerUp {
		line += "\n" + m.styles.Dim.Render(FormatWorkerStats(m.resources))
	}
	return line
}

func (m *AppModel) renderForm() string {
	label := func(text string, focused bool) string {
		if focused {
			return m.styles.LabelFocused.Render(text)
		}
		return m.styles.Label.Render(text)
	}
	return label("URL", m.focus == focusURL) + m.urlInput.View() + "\n" +
		label("Save to", m.focus == focusDir) + m.dirInput.View()
}

func (m *AppModel) renderTask() string {
	if m.task == nil {
		if m.submitting || m.taskID != "" {
			return m.styles.MonitorBox.Render(m.spinner.View() + " Submitting download...")
		}
		return ""
	}

	t := m.task
	var b strings.Builder
	name := t.Title
	if name == "" {
		name = t.URL
	}
	b.WriteString(m.styles.TaskTitle.Render(name))
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(t.Progress.Percent / 100))
	b.WriteString("\n")

	switch t.Status {
	case api.TaskCompleted:
		b.WriteString(m.styles.TaskDone.Render("Saved to " + t.FilePath))
	case api.TaskFailed:
		b.WriteString(m.styles.TaskFailed.Render(t.Message))
	default:
		b.WriteString(m.styles.Dim.Render(fmt.Sprintf("%s  %s  eta %s",
			t.Status, FormatSpeed(t.Progress.Speed), FormatETA(t.Progress.ETA))))
	}
	return m.styles.MonitorBox.Render(b.String())
}

func (m *AppModel) renderDiagnosticsPanel() string {
	total, elevated := 0, 0
	if m.diagnostics != nil {
		for _, d := range m.diagnostics.Lines() {
			total++
			if d.Severity == severity.Elevated {
				elevated++
			}
		}
	}
	title := m.styles.Dim.Render(fmt.Sprintf("Worker output (%d lines, %d elevated)", total, elevated))
	return title + "\n" + m.styles.LogViewport.Render(m.viewport.View())
}

func (m *AppModel) renderFooter() string {
	help := fmt.Sprintf("%s download • %s next field • %s scroll • %s quit",
		m.styles.HelpKey.Render("enter"),
		m.styles.HelpKey.Render("tab"),
		m.styles.HelpKey.Render("pgup/pgdn"),
		m.styles.HelpKey.Render("esc"))
	if m.status.CanRestart() || m.status.StillStarting() {
		help += fmt.Sprintf(" • %s restart worker", m.styles.HelpKey.Render("ctrl+r"))
	}

	footerWidth := m.width - 4
	if footerWidth < 40 {
		footerWidth = 40
	}
	return m.styles.Footer.Width(footerWidth).Render(help)
}

// Public methods for external updates

// SendStatus forwards a shell status change. The tick refreshes the status
// anyway, so a full channel only delays it.
func (m *AppModel) SendStatus(st orchestrator.Status) {
	select {
	case m.updateChan <- statusMsg(st):
	default:
	}
}

// SendQuit sends a quit signal to the app
func (m *AppModel) SendQuit() {
	select {
	case m.updateChan <- quitMsg{}:
	default:
	}
}
