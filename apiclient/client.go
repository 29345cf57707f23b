// Package apiclient is the Go client of the emulator's control API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Alia5/nscon/apitypes"
)

// Client wraps a Transport with typed calls.
type Client struct{ transport *Transport }

// New returns a Client for the API at addr.
func New(addr string) *Client { return &Client{transport: NewTransport(addr)} }

// NewWithPassword returns a Client that authenticates with password.
func NewWithPassword(addr, password string) *Client {
	return &Client{transport: NewTransportWithPassword(addr, password)}
}

// NewWithConfig returns a Client with custom timeouts.
func NewWithConfig(addr string, cfg *Config) *Client {
	return &Client{transport: NewTransportWithConfig(addr, cfg)}
}

// WithTransport returns a Client over t; mostly for tests.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

// Ping returns the identity and version of the server.
func (c *Client) Ping() (*apitypes.PingResponse, error) {
	return c.PingCtx(context.Background())
}

func (c *Client) PingCtx(ctx context.Context) (*apitypes.PingResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "ping", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.PingResponse](raw)
}

// State returns the live input state.
func (c *Client) State() (*apitypes.StateResponse, error) {
	return c.StateCtx(context.Background())
}

func (c *Client) StateCtx(ctx context.Context) (*apitypes.StateResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "state", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.StateResponse](raw)
}

// StateSet applies `Key=Value [duration]` assignments. Either all of them
// are applied or none.
func (c *Client) StateSet(assignments ...string) (*apitypes.StateSetResponse, error) {
	return c.StateSetCtx(context.Background(), assignments...)
}

func (c *Client) StateSetCtx(ctx context.Context, assignments ...string) (*apitypes.StateSetResponse, error) {
	if len(assignments) == 0 {
		return nil, errors.New("no assignments")
	}
	raw, err := c.transport.DoCtx(ctx, "state/set", strings.Join(assignments, "\n"), nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.StateSetResponse](raw)
}

// StateReset returns every button and axis to neutral.
func (c *Client) StateReset() (*apitypes.StateResponse, error) {
	return c.StateResetCtx(context.Background())
}

func (c *Client) StateResetCtx(ctx context.Context) (*apitypes.StateResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "state/reset", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.StateResponse](raw)
}

// Session returns the controller session state and frame counters.
func (c *Client) Session() (*apitypes.SessionResponse, error) {
	return c.SessionCtx(context.Background())
}

func (c *Client) SessionCtx(ctx context.Context) (*apitypes.SessionResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "session", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.SessionResponse](raw)
}

// parseProblem returns the ApiError carried by line, if any.
func parseProblem(line string) error {
	var problem apitypes.ApiError
	if err := json.Unmarshal([]byte(line), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return &problem
	}
	return nil
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	if err := parseProblem(data); err != nil {
		return nil, err
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
