package main

import (
	"github.com/harshul/vidnote/internal/logger"
	"github.com/harshul/vidnote/internal/ui"
	"github.com/spf13/cobra"
)

// appCmd represents the interactive shell
var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Open the interactive downloader",
	Long: `The app command starts the download worker in the background, waits
for it to announce its port and opens a terminal UI for downloading.

Worker output is shown in the diagnostics panel; lines mentioning errors or
failures are highlighted. If the worker stops or takes unusually long to
start, press ctrl+r to restart it.`,
	RunE: runApp,
}

func runApp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initShellLogging(cfg); err != nil {
		return err
	}
	defer logger.Close()

	diagnostics := ui.NewDiagnostics(500)
	shell, err := newShell(cfg, diagnostics)
	if err != nil {
		return err
	}

	return ui.Run(cmd.Context(), shell, diagnostics, ui.AppConfig{
		DownloadDir: cfg.Downloads.Dir,
		Format:      cfg.Downloads.Format,
	})
}
