// Package handler implements the control API routes.
package handler

import (
	"github.com/Alia5/nscon/device/procon"
	"github.com/Alia5/nscon/internal/server/api"
)

// Emulator is the part of *procon.Controller the handlers read and drive.
type Emulator interface {
	Snapshot() procon.InputState
	Session() procon.SessionInfo
	procon.InputUpdater
}

// Register adds every control API route to r.
func Register(r *api.Router, e Emulator, a *procon.Assigner) {
	r.Register("ping", Ping())
	r.Register("state", State(e))
	r.Register("state/set", StateSet(e, a))
	r.Register("state/reset", StateReset(e, a))
	r.Register("session", Session(e))
	r.RegisterStream("input", InputStream(a))
}
