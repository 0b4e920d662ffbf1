package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Config{DBPath: "chronicle.db", LogLevel: "warn", LogFormat: "text"}, cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHRONICLE_DB", "/tmp/games.db")
	t.Setenv("CHRONICLE_LOG_LEVEL", "DEBUG")
	t.Setenv("CHRONICLE_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/games.db", cfg.DBPath)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("level", func(t *testing.T) {
		t.Setenv("CHRONICLE_LOG_LEVEL", "loud")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid log level "loud"`)
	})
	t.Run("format", func(t *testing.T) {
		t.Setenv("CHRONICLE_LOG_FORMAT", "xml")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid log format "xml"`)
	})
}

type envTestConfig struct {
	Port int `env:"CHRONICLE_TEST_PORT" envDefault:"123"`
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CHRONICLE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"Info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Config{LogLevel: "info", LogFormat: "json"}.NewLogger(&buf)

	logger.Debug("hidden")
	logger.Info("checkpoint created", "event", "checkpoint_created", "turn", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "checkpoint created", line["msg"])
	assert.Equal(t, "checkpoint_created", line["event"])
	assert.EqualValues(t, 2, line["turn"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := Config{LogLevel: "warn", LogFormat: "text"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("attribution failed", "rule", "recruit")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "rule=recruit")
	assert.NotContains(t, buf.String(), "hidden")
}
