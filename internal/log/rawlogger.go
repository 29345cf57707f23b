package log

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records every frame crossing the controller transport.
type RawLogger interface {
	Log(in bool, data []byte)
}

type rawLogger struct {
	w  io.Writer
	mu sync.Mutex
}

// NewRaw returns a RawLogger writing to w. A nil w discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w}
}

// Log writes one line per frame. in=true is console to controller.
// Trailing zero padding is trimmed from the hex dump but counted in the size.
func (r *rawLogger) Log(in bool, data []byte) {
	if r.w == nil || len(data) == 0 {
		return
	}

	dir := "ctrl->host"
	if in {
		dir = "host->ctrl"
	}
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}

	line := fmt.Sprintf("%s %s %d bytes: %s\n",
		time.Now().Format("15:04:05.000"),
		dir,
		len(data),
		hex.EncodeToString(data[:end]))

	r.mu.Lock()
	_, _ = io.WriteString(r.w, line)
	r.mu.Unlock()
}
