package testing

import (
	"io"
	"sync"
)

// PipeTransport plays the console end of a transport. Frames pushed to In are
// returned by Read; every Write lands on Out.
type PipeTransport struct {
	In  chan []byte
	Out chan []byte

	closed chan struct{}
	once   sync.Once
}

// NewPipeTransport returns an open PipeTransport.
func NewPipeTransport() *PipeTransport {
	return &PipeTransport{
		In:     make(chan []byte, 16),
		Out:    make(chan []byte, 4096),
		closed: make(chan struct{}),
	}
}

func (p *PipeTransport) Read(b []byte) (int, error) {
	select {
	case f := <-p.In:
		return copy(b, f), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *PipeTransport) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	select {
	case p.Out <- append([]byte(nil), b...):
	default:
		// Dropped when the buffer is full.
	}
	return len(b), nil
}

func (p *PipeTransport) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
