package transport_test

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Alia5/nscon/transport"
)

// choppySink accepts at most chunk bytes per Write and yields in between, so
// unserialized writers would interleave.
type choppySink struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	chunk int
}

func (s *choppySink) Write(p []byte) (int, error) {
	n := len(p)
	if n > s.chunk {
		n = s.chunk
	}
	s.mu.Lock()
	s.buf.Write(p[:n])
	s.mu.Unlock()
	runtime.Gosched()
	return n, nil
}

func (s *choppySink) Read(p []byte) (int, error) { return 0, io.EOF }
func (s *choppySink) Close() error                { return nil }

func TestLocked_ConcurrentWritersNeverInterleave(t *testing.T) {
	const (
		writers   = 8
		perWriter = 50
		frameSize = 64
	)
	sink := &choppySink{chunk: 7}
	l := transport.NewLocked(sink)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			frame := bytes.Repeat([]byte{id}, frameSize)
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, l.WriteFrame(frame))
			}
		}(byte(w + 1))
	}
	wg.Wait()

	out := sink.buf.Bytes()
	require.Len(t, out, writers*perWriter*frameSize)
	for off := 0; off < len(out); off += frameSize {
		frame := out[off : off+frameSize]
		assert.Equal(t, bytes.Repeat(frame[:1], frameSize), frame, "frame at offset %d interleaved", off)
	}
}

func TestLocked_WriteErrorIsReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := transport.NewMockTransport(ctrl)
	boom := errors.New("boom")
	m.EXPECT().Write(gomock.Any()).Return(0, boom)

	err := transport.NewLocked(m).WriteFrame(make([]byte, 64))
	assert.ErrorIs(t, err, boom)
}

func TestLocked_ZeroWriteIsShortWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := transport.NewMockTransport(ctrl)
	m.EXPECT().Write(gomock.Any()).Return(0, nil)

	err := transport.NewLocked(m).WriteFrame(make([]byte, 64))
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestOpen(t *testing.T) {
	t.Run("empty spec", func(t *testing.T) {
		_, err := transport.Open("", transport.Config{})
		assert.Error(t, err)
	})

	t.Run("unknown scheme", func(t *testing.T) {
		_, err := transport.Open("udp://127.0.0.1:1", transport.Config{})
		assert.ErrorContains(t, err, "unsupported transport scheme")
	})

	t.Run("missing device", func(t *testing.T) {
		_, err := transport.Open(filepath.Join(t.TempDir(), "nope"), transport.Config{})
		assert.Error(t, err)
	})

	t.Run("plain file", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "hidg")
		require.NoError(t, os.WriteFile(p, nil, 0o600))
		tr, err := transport.Open(p, transport.Config{})
		require.NoError(t, err)
		defer tr.Close()

		n, err := tr.Write([]byte{0x81, 0x03})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("tcp", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		accepted := make(chan []byte, 1)
		go func() {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			defer c.Close()
			b := make([]byte, 2)
			_, _ = io.ReadFull(c, b)
			accepted <- b
		}()

		tr, err := transport.Open("tcp://"+ln.Addr().String(), transport.Config{})
		require.NoError(t, err)
		defer tr.Close()
		require.NoError(t, transport.NewLocked(tr).WriteFrame([]byte{0x81, 0x01}))
		assert.Equal(t, []byte{0x81, 0x01}, <-accepted)
	})

	t.Run("bad baud", func(t *testing.T) {
		_, err := transport.Open("serial:///dev/ttyACM0?baud=fast", transport.Config{})
		assert.ErrorContains(t, err, "bad baud")
	})
}
