package main

import (
	"fmt"

	"github.com/harshul/vidnote/internal/config"
	"github.com/harshul/vidnote/internal/logger"
	"github.com/harshul/vidnote/internal/orchestrator"
	"github.com/harshul/vidnote/internal/portclient"
	"github.com/harshul/vidnote/internal/severity"
	"github.com/harshul/vidnote/internal/supervisor"
)

// loadConfig reads the configuration and applies the global flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	if debug {
		cfg.Log.Debug = true
	}
	if handshakeTimeout > 0 {
		cfg.Handshake.Timeout = handshakeTimeout
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// initShellLogging sends the shell's own logs to the rotating log file so
// they never interleave with the terminal UI.
func initShellLogging(cfg config.Config) error {
	logger.SetDebug(cfg.Log.Debug)

	path := cfg.Log.Path
	if path == "" {
		p, err := config.DefaultLogPath()
		if err != nil {
			return err
		}
		path = p
	}
	return logger.Init(path, logger.Options{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
}

// newShell builds an orchestrator for the configured worker. The worker
// inherits --config so both sides agree on download settings.
func newShell(cfg config.Config, sinks ...severity.Sink) (*orchestrator.Shell, error) {
	path, args, err := cfg.Worker.Command()
	if err != nil {
		return nil, err
	}
	if len(cfg.Worker.Args) == 0 {
		if configPath != "" {
			args = append(args, "--config", configPath)
		}
		if cfg.Log.Debug {
			args = append(args, "--debug")
		}
	}

	opts := orchestrator.Options{
		Worker: supervisor.Config{Path: path, Args: args},
		Handshake: portclient.Options{
			Timeout:      cfg.Handshake.Timeout,
			PollInterval: cfg.Handshake.PollInterval,
		},
		StopGrace: cfg.Handshake.StopGrace,
	}
	return orchestrator.New(opts, logger.WithComponent("shell"), sinks...), nil
}
