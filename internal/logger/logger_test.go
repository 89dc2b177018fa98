package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextHelpers verifies that loggers travel through contexts and fall back to the global one.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	require.Same(t, global, FromContext(context.Background()))

	var buffer bytes.Buffer

	l := NewWithSink(zapcore.DebugLevel, zapcore.AddSync(&buffer), false)
	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "batect")
	ctx = WithKV(ctx, "version", "0.79.1")

	InfoKV(ctx, "Cache hit", "path", "/tmp/cache")

	output := buffer.String()
	require.Contains(t, output, "INFO")
	require.Contains(t, output, "batect")
	require.Contains(t, output, "Cache hit")
	require.Contains(t, output, `"version": "0.79.1"`)
	require.NotContains(t, output, "\x1b[")
}

// TestNewWithSink_RespectsLevel checks that entries below the configured level are dropped.
func TestNewWithSink_RespectsLevel(t *testing.T) {
	t.Parallel()

	var buffer bytes.Buffer

	l := NewWithSink(zapcore.WarnLevel, zapcore.AddSync(&buffer), false)
	ctx := ToContext(context.Background(), l)

	InfoKV(ctx, "hidden")
	WarnKV(ctx, "visible")

	require.NotContains(t, buffer.String(), "hidden")
	require.Contains(t, buffer.String(), "visible")
}
