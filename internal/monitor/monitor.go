// Package monitor serves a small HTTP/JSON view of a running emulator.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Alia5/nscon/apitypes"
	"github.com/Alia5/nscon/device/procon"
	"github.com/Alia5/nscon/internal/server/api/apierror"
	"github.com/Alia5/nscon/internal/trace"
)

// Config enables the monitor.
type Config struct {
	Addr string `help:"HTTP monitor listen address; empty disables" env:"NSCON_MONITOR_ADDR"`
}

// Emulator is the part of a controller the monitor reads.
type Emulator interface {
	Snapshot() procon.InputState
	Session() procon.SessionInfo
}

// FrameSource lists recorded frames.
type FrameSource interface {
	Recent(limit int) ([]trace.Frame, error)
}

const (
	maxBodySize       = 64 << 10
	defaultFrameLimit = 50
	maxFrameLimit     = 1000
)

// Monitor exposes state, session counters and recorded frames over HTTP.
type Monitor struct {
	emu      Emulator
	assigner *procon.Assigner
	frames   FrameSource
	logger   *slog.Logger

	srv *http.Server
	ln  net.Listener
}

// New returns a Monitor. assigner may be nil, which makes the state read-only.
func New(emu Emulator, assigner *procon.Assigner, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{emu: emu, assigner: assigner, logger: logger}
}

// WithFrames enables GET /api/frames.
func (m *Monitor) WithFrames(f FrameSource) *Monitor {
	m.frames = f
	return m
}

// Handler returns the monitor routes.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/state", m.getState).Methods(http.MethodGet)
	r.HandleFunc("/api/state", m.setState).Methods(http.MethodPost)
	r.HandleFunc("/api/state", m.resetState).Methods(http.MethodDelete)
	r.HandleFunc("/api/session", m.getSession).Methods(http.MethodGet)
	r.HandleFunc("/api/keys", m.listKeys).Methods(http.MethodGet)
	r.HandleFunc("/api/press/{key}", m.press).Methods(http.MethodPost)
	r.HandleFunc("/api/frames", m.listFrames).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, apierror.ErrNotFound("no route for "+r.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, apitypes.ApiError{
			Status: http.StatusMethodNotAllowed,
			Title:  "Method Not Allowed",
			Detail: r.Method + " " + r.URL.Path,
		})
	})
	return r
}

// Start listens on addr and serves in the background.
func (m *Monitor) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	m.ln = ln
	m.srv = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("monitor listening", "url", "http://"+ln.Addr().String()+"/api/session")
	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (m *Monitor) Addr() string {
	if m.ln == nil {
		return ""
	}
	return m.ln.Addr().String()
}

// Close shuts the server down, waiting for in-flight requests until ctx ends.
func (m *Monitor) Close(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}

func (m *Monitor) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apitypes.StateResponse{State: m.emu.Snapshot()})
}

func (m *Monitor) setState(w http.ResponseWriter, r *http.Request) {
	if m.assigner == nil {
		writeProblem(w, apierror.ErrUnavailable("state is read-only"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeProblem(w, apierror.ErrBadRequest(err.Error()))
		return
	}
	lines := procon.SplitAssignments(string(body))
	if len(lines) == 0 {
		writeProblem(w, apierror.ErrBadRequest("no assignments"))
		return
	}
	if err := m.assigner.ApplyAll(lines); err != nil {
		writeProblem(w, apierror.ErrBadRequest(err.Error()))
		return
	}
	m.logger.Debug("monitor state set", "assignments", len(lines))
	writeJSON(w, http.StatusOK, apitypes.StateSetResponse{Applied: len(lines), State: m.emu.Snapshot()})
}

func (m *Monitor) resetState(w http.ResponseWriter, _ *http.Request) {
	if m.assigner == nil {
		writeProblem(w, apierror.ErrUnavailable("state is read-only"))
		return
	}
	m.assigner.Reset()
	writeJSON(w, http.StatusOK, apitypes.StateResponse{State: m.emu.Snapshot()})
}

func (m *Monitor) getSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apitypes.SessionFromInfo(m.emu.Session()))
}

func (m *Monitor) listKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, procon.Keys())
}

// press pulses one button; ?ms= overrides the pulse length.
func (m *Monitor) press(w http.ResponseWriter, r *http.Request) {
	if m.assigner == nil {
		writeProblem(w, apierror.ErrUnavailable("state is read-only"))
		return
	}
	d := procon.DefaultPulse
	if ms := r.URL.Query().Get("ms"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n <= 0 {
			writeProblem(w, apierror.ErrBadRequest("bad ms "+strconv.Quote(ms)))
			return
		}
		d = time.Duration(n) * time.Millisecond
	}
	if err := m.assigner.Press(mux.Vars(r)["key"], d); err != nil {
		writeProblem(w, apierror.ErrBadRequest(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, apitypes.StateResponse{State: m.emu.Snapshot()})
}

func (m *Monitor) listFrames(w http.ResponseWriter, r *http.Request) {
	if m.frames == nil {
		writeProblem(w, apierror.ErrNotFound("frame trace is disabled"))
		return
	}
	limit := defaultFrameLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeProblem(w, apierror.ErrBadRequest("bad limit "+strconv.Quote(l)))
			return
		}
		limit = min(n, maxFrameLimit)
	}
	frames, err := m.frames.Recent(limit)
	if err != nil {
		m.logger.Error("read frames", "error", err)
		writeProblem(w, apierror.ErrInternal("read frames failed"))
		return
	}
	if frames == nil {
		frames = []trace.Frame{}
	}
	writeJSON(w, http.StatusOK, frames)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, e apitypes.ApiError) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e)
}
