package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/nscon/apitypes"
)

// State prints the input state and session counters of a running emulator.
type State struct {
	ClientOptions `embed:"" prefix:"api."`

	Watch time.Duration `help:"Print again every interval until interrupted"`
}

type stateOutput struct {
	State   apitypes.StateResponse   `json:"input"`
	Session apitypes.SessionResponse `json:"session"`
}

// Run is called by Kong when the state command is executed.
func (s *State) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.run(ctx, logger)
}

func (s *State) run(ctx context.Context, logger *slog.Logger) error {
	c, err := s.client()
	if err != nil {
		return err
	}

	show := func() error {
		st, err := c.StateCtx(ctx)
		if err != nil {
			return err
		}
		sess, err := c.SessionCtx(ctx)
		if err != nil {
			return err
		}
		return printJSON(stateOutput{State: *st, Session: *sess})
	}

	if err := show(); err != nil || s.Watch <= 0 {
		return err
	}
	ticker := time.NewTicker(s.Watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("state watch stopped")
			return nil
		case <-ticker.C:
			if err := show(); err != nil {
				return err
			}
		}
	}
}
