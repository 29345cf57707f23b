// Package testing holds helpers shared by the API and client tests.
package testing

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/Alia5/nscon/device/procon"
	"github.com/Alia5/nscon/internal/server/api"
)

// StartAPIServer starts an API server on a free loopback port, lets register
// add the routes under test and returns the address. The server is closed
// when the test ends.
func StartAPIServer(t *testing.T, cfg api.ServerConfig, register func(r *api.Router)) string {
	t.Helper()
	srv, err := api.New("127.0.0.1:0", cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("api new failed: %v", err)
	}
	if register != nil {
		register(srv.Router())
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("api start failed: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv.Addr()
}

// ExecCmd dials addr, sends cmd with the null terminator and returns the
// response line without its newline.
func ExecCmd(t *testing.T, addr string, cmd string) string {
	t.Helper()
	c, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer c.Close()

	if _, err := fmt.Fprintf(c, "%s\x00", cmd); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil && err != io.EOF {
		t.Fatalf("read failed: %v", err)
	}
	return strings.TrimSuffix(line, "\n")
}

// FakeEmulator is an in-memory stand-in for a running controller.
type FakeEmulator struct {
	mu    sync.Mutex
	state procon.InputState
	Info  procon.SessionInfo
}

func (f *FakeEmulator) Snapshot() procon.InputState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FakeEmulator) Session() procon.SessionInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Info
}

func (f *FakeEmulator) Update(fn func(*procon.InputState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.state)
}
