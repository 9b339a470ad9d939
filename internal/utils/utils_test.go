package utils

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"error", slog.LevelError},
		{"warn", slog.LevelWarn},
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseLogLevel(tt.name)
			require.NoError(t, err)
			require.NotNil(t, level)
			assert.Equal(t, tt.want, *level)
		})
	}

	level, err := ParseLogLevel("none")
	assert.NoError(t, err)
	assert.Nil(t, level)

	_, err = ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestConfigureDefaultLoggerWritesFile(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	path := filepath.Join(t.TempDir(), "log.json")
	f, err := ConfigureDefaultLogger("warn", path, slog.HandlerOptions{})
	require.NoError(t, err)
	require.NotNil(t, f)

	slog.Info("dropped")
	slog.Warn("kept", "key", "value")
	require.NoError(t, f.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "dropped")
	assert.Contains(t, string(content), `"msg":"kept"`)
}

func TestConfigureDefaultLoggerRejectsUnknownLevel(t *testing.T) {
	f, err := ConfigureDefaultLogger("loud", "", slog.HandlerOptions{})
	assert.Error(t, err)
	assert.Nil(t, f)
}

func TestSetViperDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetViperDefaults()
	assert.Equal(t, "dummy", viper.GetString("driver"))
	assert.Equal(t, 256, viper.GetInt("buffersize"))
	assert.Equal(t, "f32", viper.GetString("sampleformat"))
}
