package ui

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harshul/vidnote/internal/orchestrator"
)

// WorkerShell is the shell lifecycle the runner owns.
type WorkerShell interface {
	Shell
	OnStatus(fn func(orchestrator.Status))
	Start() error
	Stop() error
}

// Run starts the worker, runs the app until the user quits, ctx ends or a
// termination signal arrives, and stops the worker on every path.
func Run(ctx context.Context, shell WorkerShell, diagnostics *Diagnostics, cfg AppConfig) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp(ctx, shell, diagnostics, cfg)
	shell.OnStatus(app.SendStatus)

	defer func() {
		if stopErr := shell.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
	}()

	// A spawn failure is already the shell's Failed status; the app shows it
	// and offers a restart.
	if shell.Start() == nil {
		go func() {
			_, _ = shell.WaitReady(ctx)
		}()
	}

	program := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	go func() {
		<-ctx.Done()
		app.SendQuit()
		program.Quit()
	}()

	_, err = program.Run()
	return err
}
