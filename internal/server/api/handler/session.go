package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/Alia5/nscon/apitypes"
	"github.com/Alia5/nscon/internal/server/api"
)

// Session reports the controller session state and frame counters.
func Session(e Emulator) api.HandlerFunc {
	return func(_ *api.Request, res *api.Response, _ *slog.Logger) error {
		b, err := json.Marshal(apitypes.SessionFromInfo(e.Session()))
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}
