// Package ui is the terminal front end of the vidnote shell: the bubbletea
// app plus the plain print helpers used by the headless commands.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00AA00", Dark: "#00FF00"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#00AAFF"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#AAAA00", Dark: "#FFFF00"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#AA0000", Dark: "#FF0000"}).Bold(true)
)

// Out is where the print helpers write.
var Out io.Writer = os.Stdout

func Success(msg string) {
	fmt.Fprintln(Out, successStyle.Render("✔"), msg)
}

func Info(msg string) {
	fmt.Fprintln(Out, infoStyle.Render("•"), msg)
}

func Warn(msg string) {
	fmt.Fprintln(Out, warnStyle.Render("!"), msg)
}

func Error(msg string) {
	fmt.Fprintln(Out, errorStyle.Render("✗"), msg)
}

// Spinner animates a one-line message on a terminal until stopped.
type Spinner struct {
	msg     string
	w       io.Writer
	frames  []string
	fps     time.Duration
	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

func NewSpinner(message string) *Spinner {
	return &Spinner{
		msg:    message,
		w:      os.Stderr,
		frames: spinner.MiniDot.Frames,
		fps:    spinner.MiniDot.FPS,
	}
}

func (s *Spinner) Start() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go func(done, stopped chan struct{}) {
		defer close(stopped)
		ticker := time.NewTicker(s.fps)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.msg)
			select {
			case <-done:
				fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}(s.done, s.stopped)
}

func (s *Spinner) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
	<-s.stopped
}
