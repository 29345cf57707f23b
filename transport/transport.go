// Package transport provides the byte-duplex channels a controller session
// runs over, and a frame-atomic writer shared by every session loop.
package transport

//go:generate mockgen -destination "mock_transport.go" -package transport -write_package_comment=false github.com/Alia5/nscon/transport Transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Transport is a blocking duplex byte channel. Close must unblock a pending Read.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// Locked serializes writes so each frame reaches the transport without
// interleaving another writer's bytes. Reads are not locked; a session has a
// single reader.
type Locked struct {
	t  Transport
	mu sync.Mutex
}

// NewLocked wraps t.
func NewLocked(t Transport) *Locked {
	return &Locked{t: t}
}

// Read reads from the underlying transport.
func (l *Locked) Read(p []byte) (int, error) {
	return l.t.Read(p)
}

// WriteFrame writes the whole frame while holding the write lock.
func (l *Locked) WriteFrame(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for off := 0; off < len(frame); {
		n, err := l.t.Write(frame[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		off += n
	}
	return nil
}

// Close closes the underlying transport.
func (l *Locked) Close() error {
	return l.t.Close()
}

// Config selects a transport. Device is the spec passed to Open.
type Config struct {
	Device      string        `help:"Device path, serial://<dev>?baud=N or tcp://host:port" default:"/dev/hidg0" env:"NSCON_TRANSPORT"`
	Baud        int           `help:"Default baud rate for serial:// transports" default:"115200" env:"NSCON_TRANSPORT_BAUD"`
	DialTimeout time.Duration `help:"Dial timeout for tcp:// transports" default:"3s" env:"NSCON_TRANSPORT_DIAL_TIMEOUT"`
}

// Open resolves a transport spec:
//
//	/dev/hidg0                   HID gadget (or any character device / file)
//	serial:///dev/ttyACM0?baud=N UART bridge
//	tcp://host:port              TCP tunnel, e.g. to an emulator
func Open(spec string, cfg Config) (Transport, error) {
	if spec == "" {
		return nil, fmt.Errorf("empty transport spec")
	}
	if !strings.Contains(spec, "://") {
		return OpenDevice(spec)
	}
	u, err := url.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse transport %q: %w", spec, err)
	}
	switch u.Scheme {
	case "file", "hidg":
		return OpenDevice(u.Host + u.Path)
	case "serial":
		baud := cfg.Baud
		if b := u.Query().Get("baud"); b != "" {
			baud, err = strconv.Atoi(b)
			if err != nil {
				return nil, fmt.Errorf("bad baud %q: %w", b, err)
			}
		}
		return OpenSerial(u.Host+u.Path, baud)
	case "tcp":
		timeout := cfg.DialTimeout
		if timeout <= 0 {
			timeout = 3 * time.Second
		}
		conn, err := net.DialTimeout("tcp", u.Host, timeout)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", u.Host, err)
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("unsupported transport scheme %q", u.Scheme)
	}
}
