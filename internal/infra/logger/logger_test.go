package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sifan077/utmlink/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_InvalidSettings(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.ErrorContains(t, err, "invalid level")

	_, err = New(Config{Encoding: "xml"})
	assert.ErrorContains(t, err, "unknown encoding")
}

func TestNew_DefaultLevels(t *testing.T) {
	dev, err := New(Config{Development: true})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))

	prod, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, prod.Core().Enabled(zapcore.InfoLevel))
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utmlink.log")

	l, err := New(Config{Level: "info", Encoding: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("link created")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"link created"`)
	assert.Contains(t, string(data), `"service":"utmlink"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.LogConfig{
		Level:      "warn",
		Encoding:   "console",
		File:       "/var/log/utmlink.log",
		MaxSizeMB:  10,
		MaxBackups: 2,
		MaxAgeDays: 7,
	}, true)

	assert.Equal(t, Config{
		Development: true,
		Level:       "warn",
		Encoding:    "console",
		File:        "/var/log/utmlink.log",
		MaxSizeMB:   10,
		MaxBackups:  2,
		MaxAgeDays:  7,
	}, cfg)
}

func TestInit_SyncFlushesInstalledLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utmlink.log")

	l, err := Init(Config{Encoding: "json", File: path})
	require.NoError(t, err)
	l.Info("installed")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "installed")
}
