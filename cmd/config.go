package main

import (
	"fmt"
	"os"

	"github.com/harshul/vidnote/internal/config"
	"github.com/harshul/vidnote/internal/ui"
	"github.com/spf13/cobra"
)

// configCmd groups configuration file helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the vidnote configuration file",
}

// configInitCmd writes the default configuration
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Long: `The init command writes the default settings to the configuration file
(--config, or the user config dir) so they can be edited by hand.

The worker path, handshake timeout and poll interval, download directory,
format and concurrency, and log rotation are all included.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing configuration file")
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path, err := writeDefaultConfig(configPath, force)
	if err != nil {
		return err
	}
	ui.Success("Wrote configuration to " + path)
	return nil
}

// writeDefaultConfig writes config.Default to path, or to the default
// location when path is empty, and returns where it was written.
func writeDefaultConfig(path string, force bool) (string, error) {
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return "", fmt.Errorf("failed to locate config dir: %w", err)
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("configuration file already exists at %s. Use --force to overwrite", path)
	}

	if err := config.Write(path, config.Default()); err != nil {
		return "", fmt.Errorf("failed to write configuration: %w", err)
	}
	return path, nil
}
