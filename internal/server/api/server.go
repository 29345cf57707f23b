// Package api serves the emulator's TCP control API.
//
// A request is `<path>[ SP <payload>]\x00`. The server answers with a single
// JSON line (problem+json on failure) and closes the connection, except for
// stream routes which keep the connection until either side ends it. When a
// password is configured the client must first complete the auth handshake,
// after which the connection is sealed.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Alia5/nscon/internal/server/api/apierror"
	"github.com/Alia5/nscon/internal/server/api/auth"
)

// Server implements the control API listener.
type Server struct {
	addr   string
	logger *slog.Logger
	router *Router
	config ServerConfig
	key    []byte

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a Server for addr. A non-empty config.Password enables auth.
func New(addr string, config ServerConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Server{
		addr:   addr,
		logger: logger,
		config: config,
		router: NewRouter(),
		conns:  map[net.Conn]struct{}{},
	}
	if config.Password != "" {
		key, err := auth.DeriveKey(config.Password)
		if err != nil {
			return nil, err
		}
		a.key = key
	}
	return a, nil
}

// Router returns the router so callers can register handlers.
func (a *Server) Router() *Router { return a.router }

// Config returns the server configuration.
func (a *Server) Config() ServerConfig { return a.config }

// Addr returns the bound address once Start has succeeded.
func (a *Server) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return a.addr
	}
	return a.ln.Addr().String()
}

// Start listens on the configured address and serves in the background.
func (a *Server) Start() error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.ln = ln
	a.mu.Unlock()
	a.logger.Info("API listening", "addr", ln.Addr().String(), "auth", a.key != nil)
	a.wg.Add(1)
	go a.serve(ln)
	return nil
}

// Close stops accepting, closes open connections and waits for handlers.
func (a *Server) Close() {
	a.mu.Lock()
	if a.ln != nil {
		_ = a.ln.Close()
	}
	for c := range a.conns {
		_ = c.Close()
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (a *Server) serve(ln net.Listener) {
	defer a.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				a.logger.Info("API server stopped")
			} else {
				a.logger.Error("API accept error", "error", err)
			}
			return
		}
		a.mu.Lock()
		a.conns[c] = struct{}{}
		a.mu.Unlock()

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer func() {
				a.mu.Lock()
				delete(a.conns, c)
				a.mu.Unlock()
			}()
			a.handleConn(c)
		}()
	}
}

func writeError(w io.Writer, err error) {
	problem, _ := json.Marshal(apierror.WrapError(err))
	_, _ = fmt.Fprintf(w, "%s\n", problem)
}

func writeOK(w io.Writer, body string) {
	_, _ = fmt.Fprintf(w, "%s\n", body)
}

// bufferedConn keeps bytes the request reader already pulled off the wire.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

// splitRequest separates the path from the payload at the first whitespace.
func splitRequest(req string) (path, payload string) {
	i := strings.IndexFunc(req, unicode.IsSpace)
	if i < 0 {
		return req, ""
	}
	return req[:i], req[i+1:]
}

func (a *Server) handleConn(raw net.Conn) {
	defer raw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := a.logger.With("remote", raw.RemoteAddr().String())
	if a.config.ConnectionTimeout > 0 {
		_ = raw.SetDeadline(time.Now().Add(a.config.ConnectionTimeout))
	}

	var conn net.Conn = raw
	r := bufio.NewReader(raw)

	if a.key != nil {
		ok, err := auth.IsHandshake(r)
		if err != nil {
			logger.Debug("api handshake peek", "error", err)
			return
		}
		if !ok {
			logger.Warn("api request without handshake")
			writeError(raw, apierror.ErrUnauthorized("password required"))
			return
		}
		clientNonce, serverNonce, err := auth.ServerHandshake(r, raw, a.key)
		if err != nil {
			logger.Warn("api handshake failed", "error", err)
			writeError(raw, err)
			return
		}
		sealed, err := auth.WrapConn(raw, auth.DeriveSessionKey(a.key, serverNonce, clientNonce))
		if err != nil {
			logger.Error("api seal connection", "error", err)
			return
		}
		conn = sealed
		r = bufio.NewReader(sealed)
	}

	reqData, err := r.ReadString('\x00')
	if err != nil {
		if errors.Is(err, io.EOF) {
			logger.Error("api incomplete request (no null terminator)")
		} else {
			logger.Error("read api data", "error", err)
		}
		return
	}
	path, payload := splitRequest(strings.TrimSuffix(reqData, "\x00"))
	if path == "" {
		logger.Error("api empty path")
		writeError(conn, apierror.ErrBadRequest("empty path"))
		return
	}
	path = strings.ToLower(path)

	if h, params := a.router.Match(path); h != nil {
		logger.Debug("api cmd", "path", path)
		req := &Request{Ctx: ctx, Params: params, Payload: payload}
		res := &Response{}
		if err := h(req, res, logger); err != nil {
			logger.Warn("api handler error", "path", path, "error", err)
			writeError(conn, err)
			return
		}
		writeOK(conn, res.JSON)
		return
	}

	if sh, _ := a.router.MatchStream(path); sh != nil {
		_ = raw.SetDeadline(time.Time{})
		logger.Info("api stream begin", "path", path)
		if err := sh(&bufferedConn{Conn: conn, r: r}, payload, logger); err != nil {
			logger.Error("api stream handler error", "path", path, "error", err)
		}
		logger.Info("api stream end", "path", path)
		return
	}

	logger.Warn("api unknown path", "path", path)
	writeError(conn, apierror.ErrNotFound(fmt.Sprintf("unknown path: %s", path)))
}
