// Package params defines the per-frame parameter snapshot that drives the
// fractal, along with the declared slider ranges used to clamp it.
package params

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/constraints"
)

// Mode selects what each recursion level does after its Z rotation.
type Mode uint8

const (
	ModeTilt  Mode = iota // Rotate about X and Y, growing with level ("Mode 1")
	ModeScale             // Non-uniform XY scale, compounding per level ("Mode 2")
)

// String returns the mode's name as used in the JSON API.
func (m Mode) String() string {
	switch m {
	case ModeTilt:
		return "tilt"
	case ModeScale:
		return "scale"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts "tilt"/"scale" and the slider labels "Mode 1"/"Mode 2".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tilt", "mode 1", "mode1", "1":
		return ModeTilt, nil
	case "scale", "mode 2", "mode2", "2":
		return ModeScale, nil
	}
	return ModeTilt, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	mode, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Snapshot is the immutable parameter record captured once per frame.
// It is passed by value so a render can never observe a mid-frame change.
type Snapshot struct {
	Depth        int     `json:"depth"`         // Recursion count, 0 draws a single square
	BaseOffset   float64 `json:"base_offset"`   // Degrees added to every Z rotation
	NoiseFactor  float64 `json:"noise_factor"`  // Scales the noise input per level
	EraseFactor  float64 `json:"erase_factor"`  // 0 = solid strokes, 1 = mostly erased
	CurveGlobal  float64 `json:"curve_global"`  // Base curvature for every level
	CurveInvert  float64 `json:"curve_invert"`  // Curvature sign/magnitude multiplier
	CurveLocal   float64 `json:"curve_local"`   // Curvature added per level
	XFactor      float64 `json:"x_factor"`      // Tilt rate or X scale, by mode
	YFactor      float64 `json:"y_factor"`      // Tilt rate or Y scale, by mode
	Mode         Mode    `json:"mode"`          // Tilt or scale, applied after the Z rotation
	InvertColors bool    `json:"invert_colors"` // White strokes on black
}

// Range is the declared domain of one numeric slider.
type Range struct {
	Name    string  `json:"name"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
}

// Ranges lists every numeric control with its bounds, default and step.
var Ranges = []Range{
	{Name: "depth", Label: "Recursion Depth", Min: 0, Max: 200, Default: 60, Step: 1},
	{Name: "base_offset", Label: "Base Offset (deg)", Min: 0, Max: 45, Default: 10, Step: 1},
	{Name: "noise_factor", Label: "Noise Factor", Min: 0, Max: 0.05, Default: 0.01, Step: 0.001},
	{Name: "erase_factor", Label: "Negative Space", Min: 0, Max: 1, Default: 0.2, Step: 0.01},
	{Name: "curve_global", Label: "Curve Global", Min: 0, Max: 1, Default: 0, Step: 0.01},
	{Name: "curve_invert", Label: "Curve Invert", Min: -1, Max: 1, Default: 1, Step: 0.01},
	{Name: "curve_local", Label: "Curve Local", Min: 0, Max: 1, Default: 0, Step: 0.01},
	{Name: "x_factor", Label: "X Factor", Min: 0, Max: 2, Default: 1, Step: 0.01},
	{Name: "y_factor", Label: "Y Factor", Min: 0, Max: 2, Default: 1, Step: 0.01},
}

// RangeFor returns the declared range for a control name.
func RangeFor(name string) (Range, bool) {
	for _, r := range Ranges {
		if r.Name == name {
			return r, true
		}
	}
	return Range{}, false
}

// Default returns the snapshot the sketch starts with.
func Default() Snapshot {
	return Snapshot{
		Depth:       60,
		BaseOffset:  10,
		NoiseFactor: 0.01,
		EraseFactor: 0.2,
		CurveGlobal: 0,
		CurveInvert: 1,
		CurveLocal:  0,
		XFactor:     1,
		YFactor:     1,
		Mode:        ModeTilt,
	}
}

// Clamp pins v into [lo, hi].
func Clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamped returns a copy of s with every field pinned to its declared range.
// NaN values fall back to the control's default.
func (s Snapshot) Clamped() Snapshot {
	s.Depth = Clamp(s.Depth, 0, 200)
	s.BaseOffset = clampNamed("base_offset", s.BaseOffset)
	s.NoiseFactor = clampNamed("noise_factor", s.NoiseFactor)
	s.EraseFactor = clampNamed("erase_factor", s.EraseFactor)
	s.CurveGlobal = clampNamed("curve_global", s.CurveGlobal)
	s.CurveInvert = clampNamed("curve_invert", s.CurveInvert)
	s.CurveLocal = clampNamed("curve_local", s.CurveLocal)
	s.XFactor = clampNamed("x_factor", s.XFactor)
	s.YFactor = clampNamed("y_factor", s.YFactor)
	if s.Mode != ModeTilt && s.Mode != ModeScale {
		s.Mode = ModeTilt
	}
	return s
}

func clampNamed(name string, v float64) float64 {
	r, ok := RangeFor(name)
	if !ok {
		return v
	}
	if math.IsNaN(v) {
		return r.Default
	}
	return Clamp(v, r.Min, r.Max)
}

// Update is a partial snapshot: nil fields keep their current value.
type Update struct {
	Depth        *int     `json:"depth,omitempty"`
	BaseOffset   *float64 `json:"base_offset,omitempty"`
	NoiseFactor  *float64 `json:"noise_factor,omitempty"`
	EraseFactor  *float64 `json:"erase_factor,omitempty"`
	CurveGlobal  *float64 `json:"curve_global,omitempty"`
	CurveInvert  *float64 `json:"curve_invert,omitempty"`
	CurveLocal   *float64 `json:"curve_local,omitempty"`
	XFactor      *float64 `json:"x_factor,omitempty"`
	YFactor      *float64 `json:"y_factor,omitempty"`
	Mode         *Mode    `json:"mode,omitempty"`
	InvertColors *bool    `json:"invert_colors,omitempty"`
}

// Apply returns s with the update's set fields replaced, then clamped.
func (u Update) Apply(s Snapshot) Snapshot {
	if u.Depth != nil {
		s.Depth = *u.Depth
	}
	if u.BaseOffset != nil {
		s.BaseOffset = *u.BaseOffset
	}
	if u.NoiseFactor != nil {
		s.NoiseFactor = *u.NoiseFactor
	}
	if u.EraseFactor != nil {
		s.EraseFactor = *u.EraseFactor
	}
	if u.CurveGlobal != nil {
		s.CurveGlobal = *u.CurveGlobal
	}
	if u.CurveInvert != nil {
		s.CurveInvert = *u.CurveInvert
	}
	if u.CurveLocal != nil {
		s.CurveLocal = *u.CurveLocal
	}
	if u.XFactor != nil {
		s.XFactor = *u.XFactor
	}
	if u.YFactor != nil {
		s.YFactor = *u.YFactor
	}
	if u.Mode != nil {
		s.Mode = *u.Mode
	}
	if u.InvertColors != nil {
		s.InvertColors = *u.InvertColors
	}
	return s.Clamped()
}
