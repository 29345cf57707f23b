// Package procon emulates a Nintendo Switch Pro Controller at the wire level
// over any byte-duplex transport such as a USB HID gadget node.
package procon

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/Alia5/nscon/internal/log"
	"github.com/Alia5/nscon/transport"
)

// FrameObserver receives every frame read from or written to the transport.
type FrameObserver interface {
	ObserveFrame(session string, in bool, data []byte, label string)
}

// Options tune a Controller. Zero values select the defaults.
type Options struct {
	InputInterval   time.Duration
	CounterInterval time.Duration
	Logger          *slog.Logger
	RawLogger       log.RawLogger
	Observer        FrameObserver
}

// SessionInfo is a point-in-time view of a controller session.
type SessionInfo struct {
	ID             string `json:"id"`
	State          string `json:"state"`
	Counter        uint8  `json:"counter"`
	FramesSent     uint64 `json:"framesSent"`
	FramesReceived uint64 `json:"framesReceived"`
	UnknownReports uint64 `json:"unknownReports"`
}

// Controller is one emulated Pro Controller bound to a transport.
type Controller struct {
	id     string
	tr     *transport.Locked
	logger *slog.Logger
	raw    log.RawLogger
	obs    FrameObserver

	inputInterval   time.Duration
	counterInterval time.Duration

	inputState InputState
	stateMu    sync.Mutex

	counter FrameCounter
	state   atomic.Int32
	sched   scheduler

	serving atomic.Bool
	closing atomic.Bool
	fatal   chan error

	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	unknownReports atomic.Uint64
}

// New returns a Controller that talks over t.
func New(t transport.Transport, o *Options) *Controller {
	c := &Controller{
		id:              xid.New().String(),
		tr:              transport.NewLocked(t),
		inputInterval:   DefaultInputInterval,
		counterInterval: DefaultCounterInterval,
		fatal:           make(chan error, 1),
	}
	if o != nil {
		if o.InputInterval > 0 {
			c.inputInterval = o.InputInterval
		}
		if o.CounterInterval > 0 {
			c.counterInterval = o.CounterInterval
		}
		c.logger = o.Logger
		c.raw = o.RawLogger
		c.obs = o.Observer
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.raw == nil {
		c.raw = log.NewRaw(nil)
	}
	c.logger = c.logger.With("session", c.id)
	return c
}

// ID returns the session id used in logs and traces.
func (c *Controller) ID() string { return c.id }

// State returns the current handshake state.
func (c *Controller) State() SessionState { return SessionState(c.state.Load()) }

func (c *Controller) setState(s SessionState) {
	if prev := SessionState(c.state.Swap(int32(s))); prev != s {
		c.logger.Info("session state", "from", prev.String(), "to", s.String())
	}
}

// Counter returns the current frame counter.
func (c *Controller) Counter() uint8 { return c.counter.Value() }

// Session returns counters and state for monitoring.
func (c *Controller) Session() SessionInfo {
	return SessionInfo{
		ID:             c.id,
		State:          c.State().String(),
		Counter:        c.counter.Value(),
		FramesSent:     c.framesSent.Load(),
		FramesReceived: c.framesReceived.Load(),
		UnknownReports: c.unknownReports.Load(),
	}
}

// Snapshot returns a copy of the current input state.
func (c *Controller) Snapshot() InputState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.inputState
}

// UpdateInputState replaces the current input state (thread-safe).
func (c *Controller) UpdateInputState(state InputState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.inputState = state
}

// Update mutates the input state in place under the state lock.
// fn must not block.
func (c *Controller) Update(fn func(*InputState)) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	fn(&c.inputState)
}

// Connect writes the frames a controller sends when it is first plugged in.
func (c *Controller) Connect() error {
	if err := c.reply(AckCommandReply, CommandHIDOnly, nil); err != nil {
		return err
	}
	return c.reply(AckCommandReply, CommandHandshakeInfo, connectMagic)
}

// Serve announces the controller and runs the read/dispatch loop until ctx is
// done or the transport fails. Serve closes the transport when it returns.
func (c *Controller) Serve(ctx context.Context) error {
	if !c.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}
	defer c.serving.Store(false)

	c.closing.Store(false)
	c.sched.reopen()
	select {
	case <-c.fatal:
	default:
	}

	readErr := make(chan error, 1)
	readDone := false
	// Order: transport, reader, loops. No run can start once the reader is gone.
	shutdown := func() {
		c.closing.Store(true)
		_ = c.tr.Close()
		if !readDone {
			<-readErr
			readDone = true
		}
		c.sched.stopAndWait()
		c.setState(StateIdle)
	}

	if err := c.Connect(); err != nil {
		readDone = true
		shutdown()
		return err
	}
	c.logger.Info("controller connected")

	go func() { readErr <- c.readLoop() }()

	select {
	case <-ctx.Done():
		shutdown()
		c.logger.Info("controller stopped")
		return nil
	case err := <-readErr:
		readDone = true
		shutdown()
		if err != nil {
			c.logger.Error("read loop ended", "error", err)
		}
		return err
	case err := <-c.fatal:
		shutdown()
		c.logger.Error("input report loop ended", "error", err)
		return err
	}
}

func (c *Controller) readLoop() error {
	buf := make([]byte, ReadBufferSize)
	for {
		clear(buf)
		n, err := c.tr.Read(buf)
		if err != nil {
			if c.closing.Load() {
				return nil
			}
			return &TransportError{Op: "read", Err: err}
		}
		if n == 0 {
			continue
		}
		c.framesReceived.Add(1)
		c.raw.Log(true, buf[:n])
		if c.obs != nil {
			c.obs.ObserveFrame(c.id, true, buf[:n], describeReport(buf[:n]))
		}
		if c.closing.Load() {
			return nil
		}
		if err := c.HandleReport(buf); err != nil {
			if c.closing.Load() {
				return nil
			}
			return err
		}
	}
}

func (c *Controller) writeFrame(f *Frame, label string) error {
	if err := c.tr.WriteFrame(f[:]); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	c.framesSent.Add(1)
	c.raw.Log(false, f[:])
	if c.obs != nil {
		c.obs.ObserveFrame(c.id, false, f[:], label)
	}
	return nil
}

// reply frames and writes one response. Encoding failures are contract
// violations and are reported before anything reaches the transport.
func (c *Controller) reply(ack, cmd byte, payload []byte) error {
	f, err := EncodeFrame(ack, cmd, payload)
	if err != nil {
		c.logger.Error("refusing to send malformed frame", "error", err)
		return err
	}
	return c.writeFrame(&f, "reply")
}

// fail reports a loop-fatal error to Serve without blocking.
func (c *Controller) fail(err error) {
	select {
	case c.fatal <- err:
	default:
	}
}

func (c *Controller) startStreaming() {
	if c.closing.Load() || !c.sched.start(c.sendInputReports, c.tickCounter) {
		c.logger.Debug("session closed, not starting input reports")
		return
	}
	c.setState(StateStreaming)
}

func (c *Controller) stopStreaming() {
	if c.sched.stop() {
		c.logger.Debug("input reports stopped")
	}
	c.setState(StateIdle)
}

func (c *Controller) sendInputReports(r *run) {
	every(r, c.inputInterval, func() bool {
		st := c.Snapshot()
		report := st.Report()
		f, err := EncodeFrame(AckFullInputReport, c.counter.Value(), report[:])
		if err != nil {
			c.logger.Error("encode input report", "error", err)
			r.halt()
			c.fail(err)
			return false
		}
		if err := c.writeFrame(&f, "input"); err != nil {
			if c.closing.Load() {
				return false
			}
			r.halt()
			c.fail(err)
			return false
		}
		return true
	})
}

func (c *Controller) tickCounter(r *run) {
	every(r, c.counterInterval, func() bool {
		c.counter.Tick()
		return true
	})
}

func (c *Controller) unknown(msg string, b []byte) {
	c.unknownReports.Add(1)
	n := 16
	if len(b) < n {
		n = len(b)
	}
	c.logger.Warn(msg,
		"report", describeReport(b),
		"data", hex.EncodeToString(b[:n]))
}

// IsTransportError reports whether err came from the transport.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
