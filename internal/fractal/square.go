package fractal

import (
	"math"

	"github.com/talgya/rubbed-squares/internal/surface"
)

// SquareSeed derives the generator seed for one square. Identical level
// and curve/erase parameters always give the same seed.
func SquareSeed(level int, eraseFactor, curveGlobal, curveInvert, curveLocal float64) int64 {
	return int64(math.Floor(
		float64(level)*100 +
			eraseFactor*9999 +
			curveGlobal*8888 +
			curveInvert*7777 +
			curveLocal*6666,
	))
}

// RenderRubbedSquare draws the four curved edges of a size×size square
// centred on the current origin and returns the number of segments drawn.
// The generator is reseeded once, before the first edge, so all four
// edges share one draw sequence.
func RenderRubbedSquare(s surface.Surface, rng Random, size float64, level int,
	eraseFactor, curveGlobal, curveInvert, curveLocal float64, light bool,
) int {
	rng.Seed(SquareSeed(level, eraseFactor, curveGlobal, curveInvert, curveLocal))

	half := size / 2
	offset := CurvatureOffset(half, EffectiveCurve(curveGlobal, curveInvert, curveLocal, level))

	drawn := 0
	for _, e := range Edges {
		drawn += RenderRubbedCurve(s, rng, BuildEdgeBezier(e, half, offset), Segments, eraseFactor, light)
	}
	return drawn
}
