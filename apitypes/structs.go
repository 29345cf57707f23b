// Package apitypes holds the request and response bodies of the control API.
package apitypes

import (
	"fmt"

	"github.com/Alia5/nscon/device/procon"
)

// ApiError represents an RFC 7807 (problem+json) error response.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 404, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// --

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

// StateResponse is the live input state.
type StateResponse struct {
	State procon.InputState `json:"state"`
}

// StateSetResponse reports how many assignments were applied and the
// resulting state.
type StateSetResponse struct {
	Applied int               `json:"applied"`
	State   procon.InputState `json:"state"`
}

// SessionResponse mirrors procon.SessionInfo.
type SessionResponse struct {
	ID             string `json:"id"`
	State          string `json:"state"`
	Counter        uint8  `json:"counter"`
	FramesSent     uint64 `json:"framesSent"`
	FramesReceived uint64 `json:"framesReceived"`
	UnknownReports uint64 `json:"unknown"`
}

// SessionFromInfo converts a controller snapshot into its wire form.
func SessionFromInfo(s procon.SessionInfo) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		State:          s.State,
		Counter:        s.Counter,
		FramesSent:     s.FramesSent,
		FramesReceived: s.FramesReceived,
		UnknownReports: s.UnknownReports,
	}
}
