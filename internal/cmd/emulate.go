package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/nscon/device/procon"
	"github.com/Alia5/nscon/internal/configpaths"
	"github.com/Alia5/nscon/internal/keyboard"
	"github.com/Alia5/nscon/internal/log"
	"github.com/Alia5/nscon/internal/monitor"
	"github.com/Alia5/nscon/internal/server/api"
	"github.com/Alia5/nscon/internal/server/api/auth"
	"github.com/Alia5/nscon/internal/server/api/handler"
	"github.com/Alia5/nscon/internal/trace"
	"github.com/Alia5/nscon/transport"
)

// Emulate runs one emulated controller on a transport.
type Emulate struct {
	Transport       transport.Config `embed:"" prefix:"transport."`
	ApiServerConfig api.ServerConfig `embed:"" prefix:"api."`
	Monitor         monitor.Config   `embed:"" prefix:"monitor."`
	Trace           trace.Config     `embed:"" prefix:"trace."`

	Keyboard        bool          `help:"Drive the controller from this terminal" env:"NSCON_KEYBOARD"`
	KeyboardPulse   time.Duration `help:"How long a key press holds its button" default:"100ms" env:"NSCON_KEYBOARD_PULSE"`
	InputInterval   time.Duration `help:"Input report period while streaming" default:"30ms" env:"NSCON_INPUT_INTERVAL"`
	CounterInterval time.Duration `help:"Frame counter tick period" default:"5ms" env:"NSCON_COUNTER_INTERVAL"`
}

// Run is called by Kong when the emulate command is executed.
func (e *Emulate) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return e.Start(ctx, logger, rawLogger)
}

// Start opens the transport and serves until ctx is done or the session fails.
func (e *Emulate) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info("Opening transport", "transport", e.Transport.Device)
	tr, err := transport.Open(e.Transport.Device, e.Transport)
	if err != nil {
		return fmt.Errorf("open transport: %w", err)
	}

	opts := &procon.Options{
		InputInterval:   e.InputInterval,
		CounterInterval: e.CounterInterval,
		Logger:          logger,
		RawLogger:       rawLogger,
	}

	var rec *trace.Recorder
	if e.Trace.Path != "" {
		rec, err = trace.Open(e.Trace, logger)
		if err != nil {
			_ = tr.Close()
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("close frame trace", "error", err)
			}
		}()
		opts.Observer = rec
		logger.Info("Recording frames", "path", rec.Path())
	}

	ctrl := procon.New(tr, opts)
	asg := procon.NewAssigner(ctrl)
	defer asg.Stop()

	if e.ApiServerConfig.Addr != "" {
		apiSrv, err := e.startAPI(ctrl, asg, logger)
		if err != nil {
			_ = tr.Close()
			return err
		}
		defer apiSrv.Close()
	}

	if e.Monitor.Addr != "" {
		mon := monitor.New(ctrl, asg, logger)
		if rec != nil {
			mon.WithFrames(rec)
		}
		if err := mon.Start(e.Monitor.Addr); err != nil {
			_ = tr.Close()
			return fmt.Errorf("start monitor: %w", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = mon.Close(shutdownCtx)
		}()
	}

	if e.Keyboard {
		drv := keyboard.New(asg, logger).WithPulse(e.KeyboardPulse)
		fmt.Fprint(os.Stderr, keyboard.Help())
		go func() {
			defer cancel()
			if err := keyboard.RunTerminal(ctx, os.Stdin, drv); err != nil {
				logger.Error("keyboard driver", "error", err)
			}
		}()
	}

	logger.Info("Emulating Pro Controller", "session", ctrl.ID())
	err = ctrl.Serve(ctx)
	if err != nil && procon.IsTransportError(err) && errors.Is(err, io.EOF) {
		logger.Info("Transport closed by peer")
		return nil
	}
	return err
}

func (e *Emulate) startAPI(emu handler.Emulator, asg *procon.Assigner, logger *slog.Logger) (*api.Server, error) {
	cfg := e.ApiServerConfig
	if cfg.RequireAuth {
		key, path, created, err := configpaths.LoadOrCreateKey(auth.GenerateKey)
		if err != nil {
			return nil, err
		}
		cfg.Password = key
		if created {
			logger.Info("Generated API server password", "path", path)
			logger.Info("-------------------------------------")
			logger.Info("Your nscon API server password is:")
			logger.Info("-------------------------------------")
			logger.Info(key)
			logger.Info("-------------------------------------")
			logger.Info("You can change this password at any time by editing the file")
		}
	}

	srv, err := api.New(cfg.Addr, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create API server: %w", err)
	}
	handler.Register(srv.Router(), emu, asg)
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("start API server: %w", err)
	}
	return srv, nil
}
