package api

import "time"

// ServerConfig configures the control API listener.
type ServerConfig struct {
	Addr              string        `help:"Control API listen address; empty disables the API" default:"127.0.0.1:3243" env:"NSCON_API_ADDR"`
	RequireAuth       bool          `help:"Require the password handshake; the key is generated on first use" default:"false" env:"NSCON_API_REQUIRE_AUTH"`
	ConnectionTimeout time.Duration `help:"Idle timeout for request/response connections" default:"30s" env:"NSCON_API_CONNECTION_TIMEOUT"`
	Password          string        `kong:"-"`
}
