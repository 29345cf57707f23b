package trace_test

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/nscon/device/procon"
	th "github.com/Alia5/nscon/internal/testing"
	"github.com/Alia5/nscon/internal/trace"
)

var _ procon.FrameObserver = (*trace.Recorder)(nil)

func openRecorder(t *testing.T, cfg trace.Config) *trace.Recorder {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "trace.sqlite3")
	}
	r, err := trace.Open(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func frame(b ...byte) []byte {
	f := make([]byte, 64)
	copy(f, b)
	return f
}

func TestRecorder_StoresFrames(t *testing.T) {
	r := openRecorder(t, trace.Config{BatchSize: 100, FlushInterval: time.Hour})

	req := frame(0x01, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0x3d, 0x60, 0, 0, 0x12)
	r.ObserveFrame("s1", true, req, "sub:spi_flash_read")
	reply := frame(0x21, 0x05, 0x81, 0, 0, 0, 0xff, 0xf7, 0x7f, 0xff, 0xf7, 0x7f, 0, 0x90, 0x10)
	r.ObserveFrame("s1", false, reply, "reply")
	r.ObserveFrame("s2", false, frame(0x30, 0x07, 0x81), "input")

	frames, err := r.Recent(10)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, "s2", frames[0].Session)
	assert.Equal(t, byte(0x30), frames[0].ReportID)
	assert.Equal(t, -1, frames[0].Sub)
	assert.Equal(t, "300781", frames[0].Hex)
	assert.False(t, frames[0].In)

	assert.Equal(t, 0x10, frames[1].Sub)
	assert.Equal(t, byte(0x21), frames[1].ReportID)

	assert.True(t, frames[2].In)
	assert.Equal(t, 0x10, frames[2].Sub)
	assert.Equal(t, "sub:spi_flash_read", frames[2].Label)
	assert.WithinDuration(t, time.Now(), frames[2].Time, time.Minute)

	n, err := r.Count("s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = r.Count("")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRecorder_FlushesInBackground(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.sqlite3")
	r := openRecorder(t, trace.Config{Path: path, BatchSize: 2, FlushInterval: time.Hour})

	r.ObserveFrame("s", true, frame(0x80, 0x01), "cmd")
	r.ObserveFrame("s", false, frame(0x81, 0x01), "reply")

	other := openRecorder(t, trace.Config{Path: path, BatchSize: 1000, FlushInterval: time.Hour})
	assert.Eventually(t, func() bool {
		n, err := other.Count("s")
		return err == nil && n == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRecorder_CloseFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "close.sqlite3")
	r, err := trace.Open(trace.Config{Path: path, BatchSize: 1000, FlushInterval: time.Hour}, nil)
	require.NoError(t, err)
	r.ObserveFrame("s", true, frame(0x80, 0x02), "cmd")
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	again := openRecorder(t, trace.Config{Path: path})
	n, err := again.Count("s")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := trace.Open(trace.Config{}, nil)
	assert.Error(t, err)
}

func TestRecorder_TracesSession(t *testing.T) {
	r := openRecorder(t, trace.Config{BatchSize: 1000, FlushInterval: time.Hour})
	tr := th.NewPipeTransport()
	ctrl := procon.New(tr, &procon.Options{
		Observer: r,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	done := make(chan error, 1)
	go func() { done <- ctrl.Serve(t.Context()) }()
	tr.In <- frame(0x80, 0x01)
	for i := 0; i < 3; i++ {
		select {
		case <-tr.Out:
		case <-time.After(time.Second):
			t.Fatal("no reply")
		}
	}
	_ = tr.Close()
	<-done

	n, err := r.Count(ctrl.ID())
	require.NoError(t, err)
	assert.Equal(t, 4, n, "two connect frames, one request and its reply")
}
