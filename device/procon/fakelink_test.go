package procon_test

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alia5/nscon/device/procon"
)

// fakeLink plays the console side of a transport.
type fakeLink struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once

	failWrites atomic.Bool

	// holdInput, when set, stalls the first input report write until it is
	// closed. held reports that the write is stalled.
	holdInput chan struct{}
	held      atomic.Bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 4096),
		closed: make(chan struct{}),
	}
}

func (l *fakeLink) Read(p []byte) (int, error) {
	select {
	case b := <-l.in:
		return copy(p, b), nil
	case <-l.closed:
		return 0, io.EOF
	}
}

func (l *fakeLink) Write(p []byte) (int, error) {
	select {
	case <-l.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	if l.failWrites.Load() {
		return 0, errors.New("device unplugged")
	}
	if l.holdInput != nil && len(p) > 0 && p[0] == procon.AckFullInputReport && l.held.CompareAndSwap(false, true) {
		select {
		case <-l.holdInput:
		case <-l.closed:
			return 0, io.ErrClosedPipe
		}
	}
	l.out <- append([]byte(nil), p...)
	return len(p), nil
}

func (l *fakeLink) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *fakeLink) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// next returns the next written frame whose ack byte is ack. Other frames are
// discarded.
func (l *fakeLink) next(t *testing.T, ack byte) []byte {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case f := <-l.out:
			if f[0] != ack {
				continue
			}
			return f
		case <-deadline:
			t.Fatalf("no frame with ack 0x%02x", ack)
			return nil
		}
	}
}

func (l *fakeLink) drain() {
	for {
		select {
		case <-l.out:
		default:
			return
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(l *fakeLink) *procon.Controller {
	return procon.New(l, &procon.Options{Logger: quietLogger()})
}

func subcommand(sub byte, rest ...byte) []byte {
	b := make([]byte, 64)
	b[0] = procon.ReportIDSubcommand
	b[procon.SubcommandOffset] = sub
	copy(b[procon.SubcommandOffset+1:], rest)
	return b
}

func spiRequest(selector, offset, length byte) []byte {
	return subcommand(procon.SubSPIFlashRead, offset, selector, 0x00, 0x00, length)
}
