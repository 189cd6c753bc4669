package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/harshul/vidnote/internal/api"
	"github.com/harshul/vidnote/internal/logger"
	"github.com/harshul/vidnote/internal/severity"
	"github.com/harshul/vidnote/internal/ui"
	"github.com/spf13/cobra"
)

// fetchCmd downloads one URL through a worker without the terminal UI
var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download one video without the interactive UI",
	Long: `The fetch command starts a worker, waits for its port announcement,
submits one download and prints progress until it finishes. The worker is
stopped afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringP("dir", "d", "", "Directory or file path to save to (default: downloads.dir)")
	fetchCmd.Flags().StringP("format", "f", "", "yt-dlp format selector (default: downloads.format)")
	fetchCmd.Flags().BoolP("verbose", "v", false, "Print all worker output, not only errors")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initShellLogging(cfg); err != nil {
		return err
	}
	defer logger.Close()

	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Downloads.Dir
	}
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		format = cfg.Downloads.Format
	}
	verbose, _ := cmd.Flags().GetBool("verbose")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	echo := severity.SinkFunc(func(d severity.Diagnostic) {
		if verbose || d.Severity == severity.Elevated {
			fmt.Fprintln(os.Stderr, "\r\033[Kworker:", d.Line)
		}
	})
	shell, err := newShell(cfg, echo)
	if err != nil {
		return err
	}
	if err := shell.Start(); err != nil {
		ui.Error(shell.Status().Message())
		return err
	}
	defer shell.Stop()

	spin := ui.NewSpinner("Starting worker...")
	spin.Start()
	base, err := shell.BaseURL(ctx)
	spin.Stop()
	if err != nil {
		ui.Error(shell.Status().Message())
		return err
	}
	ui.Success(shell.Status().Message())

	client := api.NewClient(base)
	resp, err := client.SubmitDownload(ctx, api.DownloadRequest{
		URL:              args[0],
		SavePath:         dir,
		FormatPreference: format,
	})
	if err != nil {
		return fmt.Errorf("submit download: %w", err)
	}
	ui.Info("Download started: " + resp.TaskID)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	terminated := shell.Oracle().Terminated()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr)
			return ctx.Err()
		case <-terminated:
			fmt.Fprintln(os.Stderr)
			return errors.New(shell.Status().Message())
		case <-ticker.C:
		}

		task, err := client.GetDownload(ctx, resp.TaskID)
		if err != nil {
			fmt.Fprintln(os.Stderr)
			return fmt.Errorf("poll download: %w", err)
		}

		switch task.Status {
		case api.TaskCompleted:
			fmt.Fprint(os.Stderr, "\r\033[K")
			ui.Success("Saved " + describeFile(task.FilePath))
			return nil
		case api.TaskFailed:
			fmt.Fprint(os.Stderr, "\r\033[K")
			ui.Error(task.Message)
			return errors.New("download failed")
		default:
			fmt.Fprintf(os.Stderr, "\r\033[K%-11s %5.1f%%  %s  eta %s",
				task.Status, task.Progress.Percent, ui.FormatSpeed(task.Progress.Speed), ui.FormatETA(task.Progress.ETA))
		}
	}
}

// describeFile appends the size of path when it can be read.
func describeFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(info.Size())))
}
