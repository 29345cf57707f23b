package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/nscon/apiclient"
	"github.com/Alia5/nscon/device/procon"
	"github.com/Alia5/nscon/internal/log"
	"github.com/Alia5/nscon/internal/server/api"
	"github.com/Alia5/nscon/internal/server/api/handler"
	th "github.com/Alia5/nscon/internal/testing"
	"github.com/Alia5/nscon/transport"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestJoinAssignments(t *testing.T) {
	got, err := joinAssignments([]string{"a=1", "100ms", "lx=-1", " ", "b=0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a=1 100ms", "lx=-1", "b=0"}, got)

	_, err = joinAssignments([]string{"100ms"})
	assert.Error(t, err)
	_, err = joinAssignments([]string{"a=1", "1s", "2s"})
	assert.Error(t, err)
}

func TestConfigInit_Formats(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "emulate.json")
	require.NoError(t, (&ConfigInit{Command: "emulate", Format: "json", Output: jsonPath}).Run())
	b, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var root map[string]any
	require.NoError(t, json.Unmarshal(b, &root))
	tr, ok := root["transport"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/dev/hidg0", tr["device"])
	assert.Equal(t, "3s", tr["dial_timeout"])
	assert.Equal(t, float64(115200), tr["baud"])
	assert.Equal(t, "30ms", root["input_interval"])
	apiSection, ok := root["api"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:3243", apiSection["addr"])
	assert.Equal(t, false, apiSection["require_auth"])
	assert.NotContains(t, apiSection, "password")
	assert.NotContains(t, root, "help")
	assert.Contains(t, root, "monitor")
	assert.Contains(t, root, "trace")

	yamlPath := filepath.Join(dir, "set.yaml")
	require.NoError(t, (&ConfigInit{Command: "set", Format: "yml", Output: yamlPath}).Run())
	b, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	root = nil
	require.NoError(t, yaml.Unmarshal(b, &root))
	assert.NotContains(t, root, "assignments")
	assert.Equal(t, false, root["reset"])

	tomlPath := filepath.Join(dir, "state.toml")
	require.NoError(t, (&ConfigInit{Command: "state", Format: "toml", Output: tomlPath}).Run())
	tree, err := toml.LoadFile(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "5s", tree.Get("api.timeout"))

	err = (&ConfigInit{Command: "state", Format: "toml", Output: tomlPath}).Run()
	assert.ErrorContains(t, err, "--force")
	require.NoError(t, (&ConfigInit{Command: "state", Format: "toml", Output: tomlPath, Force: true}).Run())

	assert.Error(t, (&ConfigInit{Command: "state", Format: "ini", Output: tomlPath}).Run())
}

func startControlAPI(t *testing.T) (*th.FakeEmulator, string) {
	t.Helper()
	emu := &th.FakeEmulator{Info: procon.SessionInfo{ID: "sess", State: "streaming", Counter: 4}}
	asg := procon.NewAssigner(emu)
	t.Cleanup(asg.Stop)
	addr := th.StartAPIServer(t, api.ServerConfig{}, func(r *api.Router) {
		handler.Register(r, emu, asg)
	})
	return emu, addr
}

func TestSet_AppliesAssignments(t *testing.T) {
	emu, addr := startControlAPI(t)
	out := captureStdout(t)

	s := &Set{
		ClientOptions: ClientOptions{Addr: addr, Timeout: time.Second},
		Assignments:   []string{"a=1", "ly=1"},
	}
	require.NoError(t, s.Run(quietLogger()))
	assert.True(t, emu.Snapshot().Buttons.A)
	assert.Equal(t, 1.0, emu.Snapshot().LeftStick.Y)
	assert.Contains(t, out.String(), `"applied": 2`)

	s = &Set{ClientOptions: ClientOptions{Addr: addr, Timeout: time.Second}, Reset: true}
	require.NoError(t, s.Run(quietLogger()))
	assert.Equal(t, procon.InputState{}, emu.Snapshot())
}

func TestSet_Errors(t *testing.T) {
	_, addr := startControlAPI(t)
	captureStdout(t)

	s := &Set{ClientOptions: ClientOptions{Addr: addr, Timeout: time.Second}}
	assert.ErrorContains(t, s.Run(quietLogger()), "nothing to do")

	s.Assignments = []string{"turbo=1"}
	assert.ErrorContains(t, s.Run(quietLogger()), "unknown key")

	t.Setenv("NSCON_CONFIG_DIR", t.TempDir())
	s.UseKeyFile = true
	s.Assignments = []string{"a=1"}
	assert.ErrorContains(t, s.Run(quietLogger()), "no key file")
}

func TestState_Prints(t *testing.T) {
	emu, addr := startControlAPI(t)
	emu.Update(func(s *procon.InputState) { s.Buttons.Home = true })
	out := captureStdout(t)

	s := &State{ClientOptions: ClientOptions{Addr: addr, Timeout: time.Second}}
	require.NoError(t, s.run(t.Context(), quietLogger()))

	var got stateOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.State.State.Buttons.Home)
	assert.Equal(t, "sess", got.Session.ID)
	assert.Equal(t, uint8(4), got.Session.Counter)
}

func TestState_Watch(t *testing.T) {
	_, addr := startControlAPI(t)
	out := captureStdout(t)

	ctx, cancel := context.WithTimeout(t.Context(), 120*time.Millisecond)
	defer cancel()
	s := &State{ClientOptions: ClientOptions{Addr: addr, Timeout: time.Second}, Watch: 20 * time.Millisecond}
	require.NoError(t, s.run(ctx, quietLogger()))

	dec := json.NewDecoder(out)
	n := 0
	for dec.More() {
		var v stateOutput
		require.NoError(t, dec.Decode(&v))
		n++
	}
	assert.GreaterOrEqual(t, n, 2)
}

// consoleEnd accepts the emulator's TCP transport connection.
func consoleEnd(t *testing.T) (string, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	conns := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			conns <- c
		}
	}()
	return "tcp://" + ln.Addr().String(), conns
}

func readFrame(t *testing.T, c net.Conn) []byte {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	f := make([]byte, procon.FrameSize)
	_, err := io.ReadFull(c, f)
	require.NoError(t, err)
	return f
}

func TestEmulate_ServesOverTCP(t *testing.T) {
	t.Setenv("NSCON_CONFIG_DIR", t.TempDir())
	spec, conns := consoleEnd(t)
	apiAddr := freeAddr(t)

	e := &Emulate{
		Transport:       transport.Config{Device: spec},
		ApiServerConfig: api.ServerConfig{Addr: apiAddr, RequireAuth: true, ConnectionTimeout: time.Second},
	}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx, quietLogger(), log.NewRaw(nil)) }()

	var console net.Conn
	select {
	case console = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("emulator did not connect")
	}
	defer console.Close()

	assert.Equal(t, []byte{0x81, 0x03}, readFrame(t, console)[:2])
	assert.Equal(t, []byte{0x81, 0x01, 0x00, 0x03}, readFrame(t, console)[:4])

	req := make([]byte, procon.FrameSize)
	req[0], req[1] = 0x80, 0x02
	_, err := console.Write(req)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x02}, readFrame(t, console)[:2])

	key, err := os.ReadFile(filepath.Join(os.Getenv("NSCON_CONFIG_DIR"), "nscon.key.txt"))
	require.NoError(t, err, "auth generates a key file")
	c := apiclient.NewWithPassword(apiAddr, string(key))
	assert.Eventually(t, func() bool {
		s, err := c.Session()
		return err == nil && s.State == "handshaking"
	}, 2*time.Second, 20*time.Millisecond)

	_, err = apiclient.New(apiAddr).Session()
	assert.Error(t, err, "password required")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("emulate did not stop")
	}
}

func TestEmulate_PeerCloseEndsCleanly(t *testing.T) {
	spec, conns := consoleEnd(t)
	e := &Emulate{Transport: transport.Config{Device: spec}}

	done := make(chan error, 1)
	go func() { done <- e.Start(t.Context(), quietLogger(), log.NewRaw(nil)) }()

	console := <-conns
	readFrame(t, console)
	readFrame(t, console)
	require.NoError(t, console.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("emulate did not stop")
	}
}

func TestEmulate_BadTransport(t *testing.T) {
	e := &Emulate{Transport: transport.Config{Device: "bogus://x"}}
	assert.ErrorContains(t, e.Start(t.Context(), quietLogger(), log.NewRaw(nil)), "open transport")
}
