package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/harshul/vidnote/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withFlags(t *testing.T, path string, dbg bool, timeout time.Duration) {
	t.Helper()
	oldPath, oldDebug, oldTimeout := configPath, debug, handshakeTimeout
	configPath, debug, handshakeTimeout = path, dbg, timeout
	t.Cleanup(func() {
		configPath, debug, handshakeTimeout = oldPath, oldDebug, oldTimeout
	})
}

func TestLoadConfigAppliesFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := config.Default()
	cfg.Downloads.Format = "worst"
	require.NoError(t, config.Write(path, cfg))

	withFlags(t, path, true, 5*time.Second)

	got, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "worst", got.Downloads.Format)
	assert.True(t, got.Log.Debug)
	assert.Equal(t, 5*time.Second, got.Handshake.Timeout)
}

func TestLoadConfigRejectsTimeoutBelowPoll(t *testing.T) {
	withFlags(t, filepath.Join(t.TempDir(), "missing.yaml"), false, 100*time.Millisecond)

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestNewShellStartsInitializing(t *testing.T) {
	withFlags(t, "", false, 0)

	cfg := config.Default()
	cfg.Worker.Path = "/bin/true"
	shell, err := newShell(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Starting worker...", shell.Status().Message())
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	got, err := writeDefaultConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	cfg, err := config.Read(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = writeDefaultConfig(path, false)
	assert.ErrorContains(t, err, "already exists")

	_, err = writeDefaultConfig(path, true)
	assert.NoError(t, err)
}
