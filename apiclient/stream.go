package apiclient

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// InputStream is a long-lived connection to the "input" stream route.
type InputStream struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// OpenInputStream opens the input stream. Each Send is acknowledged before
// it returns.
func (c *Client) OpenInputStream(ctx context.Context) (*InputStream, error) {
	if c.transport.mock != nil {
		return nil, errMockStream
	}
	conn, err := c.transport.dial(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write([]byte("input\x00")); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write stream path: %w", err)
	}
	return &InputStream{conn: conn, r: bufio.NewReader(conn), timeout: c.transport.cfg.ReadTimeout}, nil
}

// Send applies one assignment line and waits for the server's answer.
func (s *InputStream) Send(assignment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream closed")
	}
	line := strings.TrimSpace(assignment)
	if line == "" || strings.ContainsAny(line, "\n;") {
		return fmt.Errorf("send one assignment per call")
	}
	if s.timeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(s.timeout))
	}
	if _, err := fmt.Fprintf(s.conn, "%s\n", line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	resp, err := s.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	resp = strings.TrimSuffix(resp, "\n")
	if resp == "ok" {
		return nil
	}
	if err := parseProblem(resp); err != nil {
		return err
	}
	return fmt.Errorf("unexpected stream reply: %q", resp)
}

// Close ends the stream.
func (s *InputStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
