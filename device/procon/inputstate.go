package procon

import (
	"math"
)

// DPad holds the four directional buttons.
type DPad struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// Buttons holds the face, shoulder and system buttons.
type Buttons struct {
	A       bool `json:"a"`
	B       bool `json:"b"`
	X       bool `json:"x"`
	Y       bool `json:"y"`
	L       bool `json:"l"`
	R       bool `json:"r"`
	ZL      bool `json:"zl"`
	ZR      bool `json:"zr"`
	Minus   bool `json:"minus"`
	Plus    bool `json:"plus"`
	Home    bool `json:"home"`
	Capture bool `json:"capture"`
}

// Stick is one analog stick. Axes are in [-1, 1].
type Stick struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Press bool    `json:"press"`
}

// InputState is the logical controller state that BuildReport encodes.
type InputState struct {
	DPad       DPad    `json:"dpad"`
	Buttons    Buttons `json:"buttons"`
	LeftStick  Stick   `json:"leftStick"`
	RightStick Stick   `json:"rightStick"`
}

// BuildReport encodes the state into the 11-byte input report.
// Layout (indices in the returned slice):
//
//	0: 0x81 marker
//	1: Y X B A - - R ZR            (bit 0..7)
//	2: - + LS RS Home Capture - -
//	3: Down Up Right Left - - L ZL
//	4-6: left stick, two 12-bit values
//	7-9: right stick, two 12-bit values
//	10: reserved
func (s *InputState) BuildReport() []byte {
	r := s.Report()
	return r[:]
}

// Report is BuildReport without the allocation.
func (s *InputState) Report() [InputReportSize]byte {
	var b [InputReportSize]byte
	b[0] = InputReportMarker

	btn := &s.Buttons
	b[1] = BitInput(btn.Y, BitY) |
		BitInput(btn.X, BitX) |
		BitInput(btn.B, BitB) |
		BitInput(btn.A, BitA) |
		BitInput(btn.R, BitR) |
		BitInput(btn.ZR, BitZR)

	b[2] = BitInput(btn.Minus, BitMinus) |
		BitInput(btn.Plus, BitPlus) |
		BitInput(s.LeftStick.Press, BitLStickPress) |
		BitInput(s.RightStick.Press, BitRStickPress) |
		BitInput(btn.Home, BitHome) |
		BitInput(btn.Capture, BitCapture)

	b[3] = BitInput(s.DPad.Down, BitDown) |
		BitInput(s.DPad.Up, BitUp) |
		BitInput(s.DPad.Right, BitRight) |
		BitInput(s.DPad.Left, BitLeft) |
		BitInput(btn.L, BitL) |
		BitInput(btn.ZL, BitZL)

	PackAxes(b[4:7], AxisToRaw(s.LeftStick.X), AxisToRaw(s.LeftStick.Y))
	PackAxes(b[7:10], AxisToRaw(s.RightStick.X), AxisToRaw(s.RightStick.Y))
	return b
}

// BitInput maps a pressed flag to its bit. Offsets past the byte yield 0.
func BitInput(pressed bool, offset uint) byte {
	if !pressed || offset >= 8 {
		return 0
	}
	return 1 << offset
}

// AxisToRaw converts an axis in [-1, 1] to the 12-bit wire value.
// Out-of-range and NaN inputs are clamped.
func AxisToRaw(v float64) uint16 {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Max(-1, math.Min(1, v))
	raw := math.Floor((1 + v) * StickScale)
	if raw > StickMax {
		raw = StickMax
	}
	return uint16(raw)
}

// PackAxes writes two 12-bit values into b[0:3], little-endian nibble order.
func PackAxes(b []byte, x, y uint16) {
	x &= StickMax
	y &= StickMax
	b[0] = uint8(x & 0xFF)
	b[1] = uint8((x>>8)&0x0F) | uint8((y&0x0F)<<4)
	b[2] = uint8(y >> 4)
}

// UnpackAxes is the inverse of PackAxes.
func UnpackAxes(b []byte) (x, y uint16) {
	x = uint16(b[0]) | uint16(b[1]&0x0F)<<8
	y = uint16(b[1]>>4) | uint16(b[2])<<4
	return x, y
}
