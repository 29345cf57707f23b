package apiclient_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/nscon/apiclient"
)

// startTestServer accepts one connection, records the request up to the null
// terminator and answers with response.
func startTestServer(t *testing.T, response string) (addr string, got <-chan string) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		var buf []byte
		var tmp [1]byte
		for {
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, err := conn.Read(tmp[:]); err != nil {
				break
			}
			buf = append(buf, tmp[0])
			if tmp[0] == 0 {
				break
			}
		}
		ch <- string(buf)
		_, _ = conn.Write([]byte(response))
	}()
	return ln.Addr().String(), ch
}

func TestTransport_Framing(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		payload any
		params  map[string]string
		wantReq string
	}{
		{name: "no payload", path: "State", wantReq: "state\x00"},
		{name: "string payload", path: "state/set", payload: "a=1\nb=1 50ms", wantReq: "state/set a=1\nb=1 50ms\x00"},
		{name: "bytes payload", path: "state/set", payload: []byte("x=1"), wantReq: "state/set x=1\x00"},
		{name: "json payload", path: "echo", payload: map[string]int{"n": 1}, wantReq: "echo {\"n\":1}\x00"},
		{name: "path params", path: "route/{name}", params: map[string]string{"name": "Left Stick"}, wantReq: "route/left%20stick\x00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, got := startTestServer(t, "{}\n")
			line, err := apiclient.NewTransport(addr).Do(tt.path, tt.payload, tt.params)
			require.NoError(t, err)
			assert.Equal(t, "{}", line)
			assert.Equal(t, tt.wantReq, <-got)
		})
	}
}

func TestTransport_DialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = apiclient.NewTransportWithConfig(addr, &apiclient.Config{DialTimeout: 200 * time.Millisecond}).Do("ping", nil, nil)
	assert.ErrorContains(t, err, "dial:")
}
