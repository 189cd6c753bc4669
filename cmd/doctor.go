package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/harshul/vidnote/internal/api"
	"github.com/harshul/vidnote/internal/doctor"
	"github.com/harshul/vidnote/internal/logger"
	"github.com/harshul/vidnote/internal/ports"
	"github.com/harshul/vidnote/internal/thermal"
	"github.com/harshul/vidnote/internal/ui"
	"github.com/spf13/cobra"
)

// doctorCmd checks the download toolchain
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check yt-dlp, ffmpeg and the worker",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().Bool("handshake", false, "Also start the worker and check that it announces a port")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workerPath, _, err := cfg.Worker.Command()
	if err != nil {
		return err
	}

	d := doctor.Diagnose(workerPath)
	for _, tool := range []doctor.ToolStatus{d.Worker, d.YTDLP, d.FFmpeg} {
		printTool(tool)
	}

	hw := thermal.DetectHardware()
	concurrency := thermal.GetOptimalConcurrency(hw, cfg.Downloads.Concurrency)
	ui.Info(fmt.Sprintf("Hardware: %s, %d parallel download(s)", thermal.FormatHardwareInfo(hw), concurrency))
	if status := thermal.GetThermalStatus(hw); status.Level != "cool" {
		ui.Warn(status.Message)
	}

	if cfg.Worker.Port != 0 {
		ui.Info(ports.GetPortStatus(cfg.Worker.Port))
	}

	for _, w := range d.Warnings {
		ui.Warn(w)
	}
	for _, issue := range d.Issues {
		ui.Error(issue)
	}

	if check, _ := cmd.Flags().GetBool("handshake"); check && d.Healthy {
		if err := checkHandshake(cmd.Context()); err != nil {
			return err
		}
	}

	if !d.Healthy {
		return errors.New("doctor found problems")
	}
	ui.Success("Ready to download")
	return nil
}

func printTool(t doctor.ToolStatus) {
	if !t.Installed {
		ui.Warn(t.Name + ": not found")
		return
	}
	line := t.Name + ": " + t.Path
	if t.Version != "" {
		line += " (" + t.Version + ")"
	}
	ui.Success(line)
}

// checkHandshake runs one full worker start, announcement and health check.
func checkHandshake(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initShellLogging(cfg); err != nil {
		return err
	}
	defer logger.Close()

	shell, err := newShell(cfg)
	if err != nil {
		return err
	}
	if err := shell.Start(); err != nil {
		ui.Error(shell.Status().Message())
		return err
	}
	defer shell.Stop()

	spin := ui.NewSpinner("Waiting for the worker to announce its port...")
	spin.Start()
	base, err := shell.BaseURL(ctx)
	spin.Stop()
	if err != nil {
		ui.Error(shell.Status().Message())
		return err
	}

	status, err := api.NewClient(base).Health(ctx)
	if err != nil {
		return fmt.Errorf("worker health check: %w", err)
	}
	ui.Success(fmt.Sprintf("%s (%s)", shell.Status().Message(), status.Message))
	return nil
}
