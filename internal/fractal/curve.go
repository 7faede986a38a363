// Package fractal draws the recursive field of rubbed, curve-distorted
// squares. Everything here is recomputed per frame from a params.Snapshot;
// the only carried state is the injected generator, reseeded per square.
package fractal

import (
	"fmt"

	"github.com/talgya/rubbed-squares/internal/geom"
)

// Edge names one side of a square.
type Edge uint8

const (
	EdgeTop Edge = iota
	EdgeBottom
	EdgeLeft
	EdgeRight
)

// Edges is the drawing order of a square's sides.
var Edges = [4]Edge{EdgeTop, EdgeBottom, EdgeLeft, EdgeRight}

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	case EdgeLeft:
		return "left"
	case EdgeRight:
		return "right"
	}
	return fmt.Sprintf("edge(%d)", uint8(e))
}

// Bezier is a cubic Bézier: anchors P0 and P3, controls P1 and P2.
type Bezier struct {
	P0, P1, P2, P3 geom.Vec2
}

// Point evaluates the curve at t in [0, 1] with the Bernstein form, so
// t=0 returns P0 and t=1 returns P3 exactly.
func (b Bezier) Point(t float64) geom.Vec2 {
	mt := 1 - t
	x := mt*mt*mt*b.P0.X +
		3*mt*mt*t*b.P1.X +
		3*mt*t*t*b.P2.X +
		t*t*t*b.P3.X
	y := mt*mt*mt*b.P0.Y +
		3*mt*mt*t*b.P1.Y +
		3*mt*t*t*b.P2.Y +
		t*t*t*b.P3.Y
	return geom.Vec2{X: x, Y: y}
}

// EffectiveCurve is the curvature shared by all four edges at a level.
// It grows linearly with level when curveLocal > 0 and is zero whenever
// both curveGlobal and curveLocal are.
func EffectiveCurve(curveGlobal, curveInvert, curveLocal float64, level int) float64 {
	return (curveGlobal + float64(level)*curveLocal) * curveInvert
}

// CurvatureOffset converts an effective curve into a control-point
// displacement for a square of the given half size.
func CurvatureOffset(halfSize, effectiveCurve float64) float64 {
	return halfSize * effectiveCurve
}

// BuildEdgeBezier returns the curve that replaces one straight edge of a
// square centred on the origin. Anchors sit on the corners (±halfSize);
// the controls sit at ∓halfSize/2 along the edge, the first pushed outward
// by offset and the second pulled inward, giving an S-shaped side.
func BuildEdgeBezier(e Edge, halfSize, offset float64) Bezier {
	h := halfSize
	q := halfSize / 2

	switch e {
	case EdgeBottom:
		return Bezier{
			P0: geom.V2(-h, h),
			P1: geom.V2(-q, h+offset),
			P2: geom.V2(q, h-offset),
			P3: geom.V2(h, h),
		}
	case EdgeLeft:
		return Bezier{
			P0: geom.V2(-h, -h),
			P1: geom.V2(-h-offset, -q),
			P2: geom.V2(-h+offset, q),
			P3: geom.V2(-h, h),
		}
	case EdgeRight:
		return Bezier{
			P0: geom.V2(h, -h),
			P1: geom.V2(h+offset, -q),
			P2: geom.V2(h-offset, q),
			P3: geom.V2(h, h),
		}
	default:
		return Bezier{
			P0: geom.V2(-h, -h),
			P1: geom.V2(-q, -h-offset),
			P2: geom.V2(q, -h+offset),
			P3: geom.V2(h, -h),
		}
	}
}
