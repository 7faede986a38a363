// Package surface is the drawing boundary of the renderer: transform-stack
// operations plus 2D line draws in the current local frame.
package surface

import (
	"image/color"

	"github.com/talgya/rubbed-squares/internal/geom"
)

// Surface receives everything the fractal draws. Transforms compose in
// local space; Push/Pop save and restore the current transform.
type Surface interface {
	Push()
	Pop()
	Translate(x, y, z float64)
	RotateX(deg float64)
	RotateY(deg float64)
	RotateZ(deg float64)
	Scale(x, y, z float64)
	// Line draws a segment in the local XY plane (z = 0).
	Line(a, b geom.Vec2, c color.NRGBA)
}

// Stroke colors.
var (
	Black = color.NRGBA{A: 255}
	White = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// StrokeColor returns white or black with the given alpha.
func StrokeColor(light bool, alpha uint8) color.NRGBA {
	if light {
		return color.NRGBA{R: 255, G: 255, B: 255, A: alpha}
	}
	return color.NRGBA{A: alpha}
}
