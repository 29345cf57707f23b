package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetupLogger_SplitsByLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out, errOut bytes.Buffer
	logger, closers, err := setupLogger("debug", "", &out, &errOut)
	require.NoError(t, err)
	assert.Empty(t, closers)

	logger.Log(context.Background(), LevelTrace, "hidden")
	logger.Debug("dbg")
	logger.Info("hello")
	logger.Error("boom")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "dbg")
	assert.Contains(t, out.String(), "hello")
	assert.NotContains(t, out.String(), "boom")
	assert.Contains(t, errOut.String(), "boom")
	assert.NotContains(t, errOut.String(), "hello")
	assert.Same(t, logger, slog.Default())
}

func TestSetupLogger_TraceLevelName(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var out bytes.Buffer
	logger, _, err := setupLogger("trace", "", &out, &out)
	require.NoError(t, err)
	logger.Log(context.Background(), LevelTrace, "frame")
	assert.Contains(t, out.String(), "level=TRACE")
}

func TestSetupLogger_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "nscon.log")
	var console bytes.Buffer
	logger, closers, err := setupLogger("info", path, &console, &console)
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Info("to both")
	require.NoError(t, closers[0].Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "to both")
	assert.Contains(t, console.String(), "to both")

	_, _, err = setupLogger("info", filepath.Join(t.TempDir(), "missing", "x.log"), &console, &console)
	assert.Error(t, err)
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	r := NewRaw(&buf)

	frame := make([]byte, 64)
	frame[0], frame[1] = 0x81, 0x03
	r.Log(false, frame)
	r.Log(true, []byte{0x80, 0x01})
	r.Log(true, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "ctrl->host 64 bytes: 8103"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "host->ctrl 2 bytes: 8001"), lines[1])

	assert.NotPanics(t, func() { NewRaw(nil).Log(true, frame) })
}
