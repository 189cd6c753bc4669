package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/harshul/vidnote/internal/logger"
	"github.com/harshul/vidnote/internal/worker"
	"github.com/spf13/cobra"
)

// workerCmd represents the download worker
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the download worker (started by the shell)",
	Long: `The worker command serves the download API on 127.0.0.1.

With --port 0 (the default) it picks a free port and prints exactly one line,
SERVER_PORT=<port>, on stdout once it is listening. Everything else goes to
stderr. A nonzero --port binds that fixed port instead, for debugging.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().Uint16P("port", "p", 0, "Port to listen on (0 = pick a free port)")
	workerCmd.Flags().Int("concurrency", 0, "Parallel downloads (0 = size from hardware)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	// stdout carries only the port announcement.
	logger.InitWriter(os.Stderr)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger.SetDebug(cfg.Log.Debug)

	port, _ := cmd.Flags().GetUint16("port")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency == 0 {
		concurrency = cfg.Downloads.Concurrency
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("worker")
	err = worker.Run(ctx, worker.Options{
		Port:           port,
		Stdout:         os.Stdout,
		Format:         cfg.Downloads.Format,
		Concurrency:    concurrency,
		ExitWithParent: true,
	}, log)
	if err != nil {
		log.Error("worker failed", "error", err)
	}
	return err
}
