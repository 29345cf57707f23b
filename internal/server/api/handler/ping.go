package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/Alia5/nscon/apitypes"
	"github.com/Alia5/nscon/internal/server/api"
	"github.com/Alia5/nscon/internal/version"
)

// Ping answers with the server identity and version.
func Ping() api.HandlerFunc {
	return func(_ *api.Request, res *api.Response, logger *slog.Logger) error {
		ver, err := version.Get()
		if err != nil {
			logger.Warn("ping: invalid version format", "error", err)
		}
		b, err := json.Marshal(apitypes.PingResponse{Server: "nscon", Version: ver})
		if err != nil {
			return err
		}
		res.JSON = string(b)
		return nil
	}
}
