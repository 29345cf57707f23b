package api

import (
	"context"
	"log/slog"
	"net"
	"strings"
)

// Request contains route parameters and the payload that followed the path.
type Request struct {
	Ctx     context.Context
	Params  map[string]string
	Payload string
}

// Response holds the JSON line returned to the client.
type Response struct {
	JSON string
}

// HandlerFunc processes a request and populates the response. The logger is
// scoped to the client connection.
type HandlerFunc func(req *Request, res *Response, logger *slog.Logger) error

// StreamHandlerFunc owns a long-lived connection until it returns. payload
// holds whatever followed the path in the opening request.
type StreamHandlerFunc func(conn net.Conn, payload string, logger *slog.Logger) error

// Router matches lower-case, slash separated paths. A segment written as
// {name} matches anything and is captured into the request params.
type Router struct {
	routes  []route[HandlerFunc]
	streams []route[StreamHandlerFunc]
}

type route[H any] struct {
	parts   []string
	names   []string
	handler H
}

func newRoute[H any](pattern string, h H) route[H] {
	parts := strings.Split(strings.ToLower(pattern), "/")
	orig := strings.Split(pattern, "/")
	names := make([]string, len(parts))
	for i, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			names[i] = orig[i][1 : len(orig[i])-1]
		}
	}
	return route[H]{parts: parts, names: names, handler: h}
}

func (rt *route[H]) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(rt.parts) {
		return nil, false
	}
	params := map[string]string{}
	for i, p := range parts {
		if rt.names[i] != "" {
			params[rt.names[i]] = p
			continue
		}
		if rt.parts[i] != p {
			return nil, false
		}
	}
	return params, true
}

func lookup[H any](routes []route[H], path string) (H, map[string]string, bool) {
	parts := strings.Split(strings.ToLower(path), "/")
	for i := range routes {
		if params, ok := routes[i].match(parts); ok {
			return routes[i].handler, params, true
		}
	}
	var zero H
	return zero, nil, false
}

// NewRouter returns an empty Router.
func NewRouter() *Router { return &Router{} }

// Register adds a request/response handler for pattern.
func (r *Router) Register(pattern string, h HandlerFunc) {
	r.routes = append(r.routes, newRoute(pattern, h))
}

// RegisterStream adds a long-lived stream handler for pattern.
func (r *Router) RegisterStream(pattern string, h StreamHandlerFunc) {
	r.streams = append(r.streams, newRoute(pattern, h))
}

// Match returns the handler registered for path, or nil.
func (r *Router) Match(path string) (HandlerFunc, map[string]string) {
	h, params, ok := lookup(r.routes, path)
	if !ok {
		return nil, nil
	}
	return h, params
}

// MatchStream returns the stream handler registered for path, or nil.
func (r *Router) MatchStream(path string) (StreamHandlerFunc, map[string]string) {
	h, params, ok := lookup(r.streams, path)
	if !ok {
		return nil, nil
	}
	return h, params
}
