// Package worker is the download worker: it binds a loopback port, announces
// it on stdout and serves the download API until cancelled.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/harshul/vidnote/internal/doctor"
	"github.com/harshul/vidnote/internal/handshake"
	"github.com/harshul/vidnote/internal/ports"
	"github.com/harshul/vidnote/internal/thermal"
)

const shutdownTimeout = 5 * time.Second

// Options configures Run.
type Options struct {
	// Port 0 claims an ephemeral port; anything else is a fixed debug port.
	Port uint16
	// Stdout receives the announcement and nothing else.
	Stdout io.Writer
	// Format is the default format preference.
	Format string
	// Concurrency 0 sizes the pool from the hardware.
	Concurrency int
	// Fetcher defaults to yt-dlp.
	Fetcher Fetcher
	// ExitWithParent stops the worker once the spawning process is gone.
	ExitWithParent bool
}

// Run serves until ctx is cancelled. A bind failure is returned before
// anything is announced.
func Run(ctx context.Context, opts Options, log *slog.Logger) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	port := opts.Port
	if port == 0 {
		claimed, err := ports.ClaimEphemeral()
		if err != nil {
			return fmt.Errorf("claim port: %w", err)
		}
		port = claimed
		log.Info("claimed ephemeral port", "port", port)
	}

	ln, err := ports.Listen(port)
	if err != nil {
		return err
	}

	ffmpeg, ok := doctor.LocateFFmpeg()
	if !ok {
		log.Warn("ffmpeg not found next to the worker or on PATH; merged formats will fall back to single files")
	}

	hw := thermal.DetectHardware()
	concurrency := thermal.AdjustForThermal(
		thermal.GetOptimalConcurrency(hw, opts.Concurrency),
		thermal.GetThermalStatus(hw),
	)

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewYTDLP(log)
	}

	store := NewStore()
	manager := NewManager(store, fetcher, ManagerOptions{
		Concurrency:   concurrency,
		DefaultFormat: opts.Format,
		FFmpegPath:    ffmpeg,
	}, log)
	defer manager.Close()

	srv := &http.Server{
		Handler:           NewRouter(manager, store, log),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	// The listener is bound, so connections queue even before Serve runs.
	if err := handshake.Announce(opts.Stdout, port); err != nil {
		_ = srv.Close()
		return fmt.Errorf("announce port: %w", err)
	}
	log.Info("worker listening", "addr", ln.Addr().String(), "concurrency", concurrency, "host", thermal.FormatHardwareInfo(hw))

	if opts.ExitWithParent {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go watchParent(ctx, cancel, log)
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// watchParent cancels once the worker is re-parented, which happens when the
// shell dies without stopping it.
func watchParent(ctx context.Context, cancel context.CancelFunc, log *slog.Logger) {
	parent := os.Getppid()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if os.Getppid() != parent {
				log.Warn("parent process exited; stopping worker", "parent", parent)
				cancel()
				return
			}
		}
	}
}
