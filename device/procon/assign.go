package procon

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// InputUpdater is anything that guards an InputState, such as *Controller.
type InputUpdater interface {
	Update(fn func(*InputState))
}

type inputKey struct {
	button func(*InputState) *bool
	axis   func(*InputState) *float64
}

var inputKeys = map[string]inputKey{
	"a":       {button: func(s *InputState) *bool { return &s.Buttons.A }},
	"b":       {button: func(s *InputState) *bool { return &s.Buttons.B }},
	"x":       {button: func(s *InputState) *bool { return &s.Buttons.X }},
	"y":       {button: func(s *InputState) *bool { return &s.Buttons.Y }},
	"l":       {button: func(s *InputState) *bool { return &s.Buttons.L }},
	"r":       {button: func(s *InputState) *bool { return &s.Buttons.R }},
	"zl":      {button: func(s *InputState) *bool { return &s.Buttons.ZL }},
	"zr":      {button: func(s *InputState) *bool { return &s.Buttons.ZR }},
	"minus":   {button: func(s *InputState) *bool { return &s.Buttons.Minus }},
	"plus":    {button: func(s *InputState) *bool { return &s.Buttons.Plus }},
	"home":    {button: func(s *InputState) *bool { return &s.Buttons.Home }},
	"capture": {button: func(s *InputState) *bool { return &s.Buttons.Capture }},
	"up":      {button: func(s *InputState) *bool { return &s.DPad.Up }},
	"down":    {button: func(s *InputState) *bool { return &s.DPad.Down }},
	"left":    {button: func(s *InputState) *bool { return &s.DPad.Left }},
	"right":   {button: func(s *InputState) *bool { return &s.DPad.Right }},
	"ls":      {button: func(s *InputState) *bool { return &s.LeftStick.Press }},
	"rs":      {button: func(s *InputState) *bool { return &s.RightStick.Press }},
	"lx":      {axis: func(s *InputState) *float64 { return &s.LeftStick.X }},
	"ly":      {axis: func(s *InputState) *float64 { return &s.LeftStick.Y }},
	"rx":      {axis: func(s *InputState) *float64 { return &s.RightStick.X }},
	"ry":      {axis: func(s *InputState) *float64 { return &s.RightStick.Y }},
}

var keyAliases = map[string]string{
	"-":         "minus",
	"+":         "plus",
	"select":    "minus",
	"start":     "plus",
	"dpadup":    "up",
	"dpaddown":  "down",
	"dpadleft":  "left",
	"dpadright": "right",
	"l3":        "ls",
	"r3":        "rs",
}

// Keys lists the canonical input keys accepted by ApplyKeyValue.
func Keys() []string {
	keys := make([]string, 0, len(inputKeys))
	for k := range inputKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookupKey(key string) (string, inputKey, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if alias, ok := keyAliases[k]; ok {
		k = alias
	}
	ik, ok := inputKeys[k]
	if !ok {
		return "", inputKey{}, fmt.Errorf("unknown key %q", key)
	}
	return k, ik, nil
}

func parseBool(val string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "t", "yes", "y", "on", "press", "pressed":
		return true, nil
	case "0", "false", "f", "no", "n", "off", "release", "released":
		return false, nil
	default:
		return false, fmt.Errorf("expected bool, got %q", val)
	}
}

// ApplyKeyValue sets one button or axis. Axis values are clamped to [-1, 1].
func ApplyKeyValue(st *InputState, key, val string) error {
	_, ik, err := lookupKey(key)
	if err != nil {
		return err
	}
	if ik.button != nil {
		on, err := parseBool(val)
		if err != nil {
			return err
		}
		*ik.button(st) = on
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return fmt.Errorf("expected axis value in [-1,1], got %q", val)
	}
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	*ik.axis(st) = f
	return nil
}

// ResetKey returns one button or axis to its neutral value.
func ResetKey(st *InputState, key string) error {
	_, ik, err := lookupKey(key)
	if err != nil {
		return err
	}
	if ik.button != nil {
		*ik.button(st) = false
	} else {
		*ik.axis(st) = 0
	}
	return nil
}

// ParseAssignment splits "Key=Value [duration]".
// ok is false when the line is not an assignment at all.
func ParseAssignment(line string) (key string, val string, dur time.Duration, ok bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", "", 0, false, nil
	}
	kv := parts[0]
	eq := strings.IndexByte(kv, '=')
	if eq < 0 {
		return "", "", 0, false, nil
	}
	key = strings.TrimSpace(kv[:eq])
	val = strings.TrimSpace(kv[eq+1:])
	if key == "" {
		return "", "", 0, false, fmt.Errorf("missing key")
	}
	if len(parts) >= 2 {
		d, e := time.ParseDuration(parts[1])
		if e != nil || d < 0 {
			return "", "", 0, false, fmt.Errorf("bad duration %q", parts[1])
		}
		dur = d
	}
	return key, val, dur, true, nil
}

// SplitAssignments breaks text into assignment lines. Lines may be separated
// by newlines or semicolons; blank lines are dropped.
func SplitAssignments(text string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ';' }) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ValidateAssignment reports whether line would be accepted by Apply.
func ValidateAssignment(line string) error {
	key, val, _, ok, err := ParseAssignment(line)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not an assignment: %q", strings.TrimSpace(line))
	}
	var scratch InputState
	return ApplyKeyValue(&scratch, key, val)
}

// Assigner applies textual assignments to an InputUpdater. Assignments with a
// duration are pulses: the key returns to neutral once the duration elapses.
type Assigner struct {
	target InputUpdater

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewAssigner returns an Assigner writing to target.
func NewAssigner(target InputUpdater) *Assigner {
	return &Assigner{target: target, timers: map[string]*time.Timer{}}
}

// Apply parses and applies one assignment line.
func (a *Assigner) Apply(line string) error {
	key, val, dur, ok, err := ParseAssignment(line)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("not an assignment: %q", strings.TrimSpace(line))
	}
	return a.Set(key, val, dur)
}

// Set applies key=val, and schedules a reset to neutral when dur > 0.
// A later Set of the same key cancels a pending reset.
func (a *Assigner) Set(key, val string, dur time.Duration) error {
	id, _, err := lookupKey(key)
	if err != nil {
		return err
	}
	var applyErr error
	a.target.Update(func(st *InputState) {
		applyErr = ApplyKeyValue(st, id, val)
	})
	if applyErr != nil {
		return applyErr
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if t := a.timers[id]; t != nil {
		t.Stop()
		delete(a.timers, id)
	}
	if dur > 0 {
		var t *time.Timer
		t = time.AfterFunc(dur, func() {
			a.mu.Lock()
			if a.timers[id] != t {
				a.mu.Unlock()
				return
			}
			delete(a.timers, id)
			a.mu.Unlock()
			a.target.Update(func(st *InputState) { _ = ResetKey(st, id) })
		})
		a.timers[id] = t
	}
	return nil
}

// ApplyAll applies every line or, if any line is invalid, none of them.
func (a *Assigner) ApplyAll(lines []string) error {
	for i, line := range lines {
		if err := ValidateAssignment(line); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	for i, line := range lines {
		if err := a.Apply(line); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// Press pulses a button for d.
func (a *Assigner) Press(key string, d time.Duration) error {
	return a.Set(key, "true", d)
}

// Reset cancels pending pulses and returns the whole state to neutral.
func (a *Assigner) Reset() {
	a.Stop()
	a.target.Update(func(st *InputState) { *st = InputState{} })
}

// Stop cancels all pending pulse resets.
func (a *Assigner) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}
