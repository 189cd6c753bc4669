package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the handshake window. Cold starts of a bundled worker can take
// tens of seconds, so the ceiling is generous.
const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultStopGrace        = 2 * time.Second
	DefaultFormat           = "best"
)

// Config is the on-disk configuration of vidnote.
type Config struct {
	Worker    WorkerConfig    `yaml:"worker"`
	Handshake HandshakeConfig `yaml:"handshake"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Log       LogConfig       `yaml:"log"`
}

// WorkerConfig describes how the shell launches the worker.
type WorkerConfig struct {
	// Path to the worker executable. Empty means this binary.
	Path string `yaml:"path,omitempty"`
	// Args replaces the default "worker --port <port>" invocation.
	Args []string `yaml:"args,omitempty"`
	// Port is passed to the worker; 0 asks for an ephemeral port.
	Port uint16 `yaml:"port,omitempty"`
}

// HandshakeConfig bounds how long the UI waits for the port announcement.
type HandshakeConfig struct {
	Timeout      time.Duration `yaml:"timeout,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	StopGrace    time.Duration `yaml:"stop_grace,omitempty"`
}

// DownloadsConfig holds worker download defaults.
type DownloadsConfig struct {
	Dir         string `yaml:"dir,omitempty"`
	Format      string `yaml:"format,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
}

// LogConfig controls the shell's rotating log file.
type LogConfig struct {
	Path       string `yaml:"path,omitempty"`
	Debug      bool   `yaml:"debug,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Handshake: HandshakeConfig{
			Timeout:      DefaultHandshakeTimeout,
			PollInterval: DefaultPollInterval,
			StopGrace:    DefaultStopGrace,
		},
		Downloads: DownloadsConfig{
			Dir:    DefaultDownloadDir(),
			Format: DefaultFormat,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Validate reports the first inconsistency in cfg.
func (c Config) Validate() error {
	if c.Handshake.Timeout <= 0 {
		return errors.New("invalid configuration: handshake.timeout must be positive")
	}
	if c.Handshake.PollInterval <= 0 || c.Handshake.PollInterval >= time.Second {
		return errors.New("invalid configuration: handshake.poll_interval must be between 0 and 1s")
	}
	if c.Handshake.PollInterval >= c.Handshake.Timeout {
		return errors.New("invalid configuration: handshake.poll_interval must be shorter than handshake.timeout")
	}
	if c.Downloads.Concurrency < 0 {
		return errors.New("invalid configuration: downloads.concurrency cannot be negative")
	}
	return nil
}

// Command resolves the executable and arguments used to spawn the worker.
func (w WorkerConfig) Command() (string, []string, error) {
	path := w.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", nil, fmt.Errorf("locate own executable: %w", err)
		}
		path = exe
	}

	args := w.Args
	if len(args) == 0 {
		args = []string{"worker", "--port", strconv.Itoa(int(w.Port))}
	}
	return path, args, nil
}

// Write writes the configuration as a YAML file, creating parent directories.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Read reads a YAML configuration file on top of the defaults and validates it.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads path, or the default config path when path is empty.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Default(), nil
		}
		path = p
	}

	cfg, err := Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}
