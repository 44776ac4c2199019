package utils

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureDefaultLoggerLevels(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	for _, level := range []string{"none", "error", "warn", "info", "debug"} {
		level := level
		t.Run(level, func(t *testing.T) {
			logFilePointer, err := ConfigureDefaultLogger(level, "", slog.HandlerOptions{})
			require.NoError(t, err)
			assert.Nil(t, logFilePointer)
		})
	}

	_, err := ConfigureDefaultLogger("verbose", "", slog.HandlerOptions{})
	assert.ErrorIs(t, err, ErrUnknownLogLevel)
}

func TestConfigureDefaultLoggerFile(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	logFile := filepath.Join(t.TempDir(), "bridge.log")
	logFilePointer, err := ConfigureDefaultLogger("info", logFile, slog.HandlerOptions{})
	require.NoError(t, err)
	require.NotNil(t, logFilePointer)

	slog.Debug("hidden")
	slog.Info("capture started", "sampleRate", 48000)
	require.NoError(t, logFilePointer.Close())

	contents, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(contents, &record))
	assert.Equal(t, "capture started", record["msg"])
	assert.EqualValues(t, 48000, record["sampleRate"])

	_, err = ConfigureDefaultLogger("info", filepath.Join(t.TempDir(), "missing", "bridge.log"), slog.HandlerOptions{})
	assert.Error(t, err)
}

func TestSetViperDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetViperDefaults()
	assert.Equal(t, "info", viper.GetString("loglevel"))
	assert.Equal(t, 44100, viper.GetInt("samplerate"))
	assert.Equal(t, 64, viper.GetInt("streambuffer"))
	assert.Equal(t, "r6ebridge.audio", viper.GetString("nats.subject"))
	assert.Equal(t, "CodecPCMU8000Mono", viper.GetString("webrtc.codec"))
	assert.Empty(t, viper.GetString("backend"))
}
