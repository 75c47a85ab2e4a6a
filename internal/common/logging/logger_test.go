package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{
		Level:  level,
		Output: &buf,
	})
	require.NoError(t, err)
	return logger, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARN", WarnLevel},
		{"WARNING", WarnLevel},
		{"ERROR", ErrorLevel},
		{"garbage", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}

func TestZapAdapter_Levels(t *testing.T) {
	t.Run("respects minimum level", func(t *testing.T) {
		logger, buf := newBufferLogger(t, WarnLevel)

		logger.Debug("debug message")
		logger.Info("info message")
		logger.Warn("warn message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warn message")
	})

	t.Run("error includes cause", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel)

		logger.Error("operation failed", assert.AnError)

		output := buf.String()
		assert.Contains(t, output, "operation failed")
		assert.Contains(t, output, assert.AnError.Error())
	})
}

func TestZapAdapter_WithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	scoped := logger.WithFields(Field{"tier", "short-term"}, Field{"namespace", "session"})
	scoped.Info("instance created")

	output := buf.String()
	assert.Contains(t, output, "instance created")
	assert.Contains(t, output, "short-term")
	assert.Contains(t, output, "session")
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	logger, buf := newBufferLogger(t, InfoLevel)
	SetGlobalLogger(logger)

	Info("global message", String("key", "value"))

	assert.Contains(t, buf.String(), "global message")
}
