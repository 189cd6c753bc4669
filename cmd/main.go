package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Version information (can be set at build time)
var (
	version = "0.1.0"
)

// Global flags
var (
	configPath       string
	debug            bool
	handshakeTimeout time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vidnote",
	Short: "Download videos through a supervised local worker",
	Long: `vidnote downloads videos with yt-dlp. The interactive shell starts a
private download worker on a free loopback port, watches its output and
talks to it over HTTP.

Usage:
  vidnote app            Open the interactive downloader (default)
  vidnote fetch <url>    Download one video without the interactive UI
  vidnote doctor         Check yt-dlp, ffmpeg and the worker
  vidnote worker         Run the download worker (started by the shell)
  vidnote config init    Write the default configuration file`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runApp,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file (default: user config dir)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&handshakeTimeout, "timeout", 0, "Override how long to wait for the worker to announce its port")

	rootCmd.AddCommand(appCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
