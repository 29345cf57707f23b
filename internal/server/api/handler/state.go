package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/Alia5/nscon/apitypes"
	"github.com/Alia5/nscon/device/procon"
	"github.com/Alia5/nscon/internal/server/api"
	"github.com/Alia5/nscon/internal/server/api/apierror"
)

// State returns the live input state.
func State(e Emulator) api.HandlerFunc {
	return func(_ *api.Request, res *api.Response, _ *slog.Logger) error {
		b, err := json.Marshal(apitypes.StateResponse{State: e.Snapshot()})
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}

// StateSet applies every assignment in the payload or none of them.
func StateSet(e Emulator, a *procon.Assigner) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		lines := procon.SplitAssignments(req.Payload)
		if len(lines) == 0 {
			return apierror.ErrBadRequest("no assignments")
		}
		if err := a.ApplyAll(lines); err != nil {
			return apierror.ErrBadRequest(err.Error())
		}
		logger.Debug("state set", "assignments", len(lines))

		b, err := json.Marshal(apitypes.StateSetResponse{Applied: len(lines), State: e.Snapshot()})
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}

// StateReset cancels pending pulses and returns the state to neutral.
func StateReset(e Emulator, a *procon.Assigner) api.HandlerFunc {
	return func(_ *api.Request, res *api.Response, _ *slog.Logger) error {
		a.Reset()
		b, err := json.Marshal(apitypes.StateResponse{State: e.Snapshot()})
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}
