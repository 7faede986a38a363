package fractal

import (
	"math"

	"github.com/talgya/rubbed-squares/internal/surface"
)

const (
	// Segments is how many straight pieces approximate each edge curve.
	Segments = 40

	// EraseThreshold: erase factors at or below this draw solid strokes.
	EraseThreshold = 0.001

	// AlphaFloor: faded segments at or below this alpha are skipped.
	AlphaFloor = 2.0
)

// Random is a reseedable source of uniform values in [0, 1).
type Random interface {
	Seed(seed int64)
	Float() float64
}

// SegmentAlpha is the stroke alpha for a fade draw at an erase factor.
func SegmentAlpha(fade, eraseFactor float64) float64 {
	alphaMax := 255 * (1 - eraseFactor)
	return fade * alphaMax
}

// Visible reports whether a faded segment clears the alpha floor.
func Visible(alpha float64) bool {
	return alpha > AlphaFloor
}

// RenderRubbedCurve draws b as segments straight pieces and returns how
// many were drawn. With no erase every piece is drawn opaque and rng is
// left untouched; otherwise each piece draws one fade value and is drawn
// at the resulting alpha only if it clears the floor.
func RenderRubbedCurve(s surface.Surface, rng Random, b Bezier, segments int, eraseFactor float64, light bool) int {
	drawn := 0
	solid := eraseFactor <= EraseThreshold
	n := float64(segments)

	for i := 0; i < segments; i++ {
		p1 := b.Point(float64(i) / n)
		p2 := b.Point(float64(i+1) / n)

		if solid {
			s.Line(p1, p2, surface.StrokeColor(light, 255))
			drawn++
			continue
		}

		alpha := SegmentAlpha(rng.Float(), eraseFactor)
		if !Visible(alpha) {
			continue
		}
		s.Line(p1, p2, surface.StrokeColor(light, uint8(math.Round(alpha))))
		drawn++
	}
	return drawn
}
