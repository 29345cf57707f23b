package cmd

import (
	"context"
	"errors"
	"log/slog"
)

// Set sends assignments to a running emulator.
type Set struct {
	ClientOptions `embed:"" prefix:"api."`

	Assignments []string `arg:"" optional:"" help:"Key=Value assignments, each optionally followed by a duration (a=1 100ms)"`
	Reset       bool     `help:"Return to the neutral state before applying"`
}

// Run is called by Kong when the set command is executed.
func (s *Set) Run(logger *slog.Logger) error {
	assignments, err := joinAssignments(s.Assignments)
	if err != nil {
		return err
	}
	if len(assignments) == 0 && !s.Reset {
		return errors.New("nothing to do: pass assignments or --reset")
	}
	c, err := s.client()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if s.Reset {
		resp, err := c.StateResetCtx(ctx)
		if err != nil {
			return err
		}
		logger.Debug("state reset")
		if len(assignments) == 0 {
			return printJSON(resp)
		}
	}
	resp, err := c.StateSetCtx(ctx, assignments...)
	if err != nil {
		return err
	}
	logger.Debug("state set", "applied", resp.Applied)
	return printJSON(resp)
}
