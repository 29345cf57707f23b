// Package keyboard drives the emulated controller from a terminal.
package keyboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tebeka/atexit"
	"golang.org/x/term"

	"github.com/Alia5/nscon/device/procon"
	"github.com/Alia5/nscon/internal/log"
)

// ErrNotTerminal is returned by RunTerminal when the file is not a TTY.
var ErrNotTerminal = errors.New("keyboard: not a terminal")

const (
	keyCtrlC  = 0x03
	keyCtrlD  = 0x04
	keyEscape = 0x1b
)

type binding struct {
	key string
	val string
}

var bindings = map[byte]binding{
	'w': {"up", "1"},
	'a': {"left", "1"},
	's': {"down", "1"},
	'd': {"right", "1"},
	'l': {"a", "1"},
	'k': {"b", "1"},
	'i': {"x", "1"},
	'j': {"y", "1"},
	'u': {"l", "1"},
	'o': {"r", "1"},
	'y': {"zl", "1"},
	'p': {"zr", "1"},
	'-': {"minus", "1"},
	'=': {"plus", "1"},
	'+': {"plus", "1"},
	'h': {"home", "1"},
	'c': {"capture", "1"},
	'z': {"ls", "1"},
	'x': {"rs", "1"},
}

// Arrow keys arrive as ESC [ A..D and tilt the left stick.
var arrows = map[byte]binding{
	'A': {"ly", "1"},
	'B': {"ly", "-1"},
	'C': {"lx", "1"},
	'D': {"lx", "-1"},
}

// Driver turns key presses into button pulses.
type Driver struct {
	assigner *procon.Assigner
	pulse    time.Duration
	logger   *slog.Logger
}

// New returns a Driver that pulses buttons for procon.DefaultPulse.
func New(a *procon.Assigner, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{assigner: a, pulse: procon.DefaultPulse, logger: logger}
}

// WithPulse overrides the pulse length.
func (d *Driver) WithPulse(p time.Duration) *Driver {
	if p > 0 {
		d.pulse = p
	}
	return d
}

// Help describes the key bindings, one per line.
func Help() string {
	keys := make([]byte, 0, len(bindings))
	for k := range bindings {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%c  %s\n", k, bindings[k].key)
	}
	sb.WriteString("arrows  left stick\nq  quit\n")
	return sb.String()
}

// Run reads keys from r until q, Ctrl-C, Ctrl-D, EOF or ctx is done.
func (d *Driver) Run(ctx context.Context, r io.Reader) error {
	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 32)
		for {
			n, err := r.Read(buf)
			for _, b := range buf[:n] {
				select {
				case keys <- b:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	var esc []byte
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case b := <-keys:
			if esc != nil {
				esc = append(esc, b)
				if len(esc) < 3 {
					if esc[1] != '[' {
						esc = nil
					}
					continue
				}
				if bd, ok := arrows[esc[2]]; ok {
					d.fire(bd)
				}
				esc = nil
				continue
			}
			switch b {
			case 'q', 'Q', keyCtrlC, keyCtrlD:
				d.logger.Info("keyboard driver stopped")
				return nil
			case keyEscape:
				esc = []byte{b}
				continue
			}
			bd, ok := bindings[b]
			if !ok {
				d.logger.Debug("unbound key", "key", fmt.Sprintf("%q", b))
				continue
			}
			d.fire(bd)
		}
	}
}

func (d *Driver) fire(bd binding) {
	if err := d.assigner.Set(bd.key, bd.val, d.pulse); err != nil {
		d.logger.Error("keyboard assignment", "key", bd.key, "error", err)
		return
	}
	d.logger.Log(context.Background(), log.LevelTrace, "key", "input", bd.key, "value", bd.val)
}

// RunTerminal puts f into raw mode, runs d on it and restores the terminal
// when the driver returns or the process exits.
func RunTerminal(ctx context.Context, f *os.File, d *Driver) error {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return ErrNotTerminal
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("keyboard: raw mode: %w", err)
	}
	restore := sync.OnceFunc(func() { _ = term.Restore(fd, old) })
	atexit.Register(restore)
	defer restore()

	return d.Run(ctx, f)
}
