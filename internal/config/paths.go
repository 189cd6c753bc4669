package config

import (
	"os"
	"path/filepath"
)

const appDir = "vidnote"

// ConfigDir returns the directory holding config.yaml.
//
// XDG_CONFIG_HOME wins when set; otherwise everything lives under ~/.vidnote.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	return legacyDir()
}

// StateDir returns the directory for logs and other transient state.
func StateDir() (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	return legacyDir()
}

// LogsDir returns the directory for log files.
func LogsDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// DefaultPath returns the full path to config.yaml.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultLogPath returns the shell's log file path.
func DefaultLogPath() (string, error) {
	dir, err := LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vidnote.log"), nil
}

// DefaultDownloadDir returns ~/Downloads, or the working directory if the
// home directory cannot be determined.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func legacyDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+appDir), nil
}
