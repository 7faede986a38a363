package fractal

import (
	"github.com/talgya/rubbed-squares/internal/params"
	"github.com/talgya/rubbed-squares/internal/surface"
)

const (
	// ShrinkFactor scales the square size from one level to the next.
	ShrinkFactor = 0.95

	// JitterDegrees bounds the noise-driven Z rotation, ±JitterDegrees.
	JitterDegrees = 15.0
)

// Noise returns smooth values in [0, 1].
type Noise interface {
	At(x float64) float64
}

// Jitter maps the noise sample for a level onto [-JitterDegrees, JitterDegrees].
func Jitter(n Noise, level int, noiseFactor float64) float64 {
	v := n.At(float64(level) * 10 * noiseFactor)
	return -JitterDegrees + v*(2*JitterDegrees)
}

// Renderer walks the recursion. It holds the noise field and the
// generator; neither is advanced across frames except by reseeding.
type Renderer struct {
	Noise Noise
	Rand  Random

	// OnSquare, when set, is called after each square is drawn.
	OnSquare func(level int, size float64)
}

// NewRenderer creates a renderer over the given noise and generator.
func NewRenderer(n Noise, rng Random) *Renderer {
	return &Renderer{Noise: n, Rand: rng}
}

// RenderFractal draws the square for level, then, while depth > 0,
// recurses once at size*ShrinkFactor inside a saved transform. Transforms
// applied at a level are inherited by every deeper level. It returns the
// total number of segments drawn. A non-positive size draws nothing.
func (r *Renderer) RenderFractal(s surface.Surface, size float64, depth int, baseOffset float64, level int, p params.Snapshot) int {
	if size <= 0 {
		return 0
	}

	s.RotateZ(baseOffset + float64(level) + Jitter(r.Noise, level, p.NoiseFactor))

	switch p.Mode {
	case params.ModeScale:
		s.Scale(p.XFactor, p.YFactor, 1)
	default:
		s.RotateX(p.XFactor * 10 * float64(level))
		s.RotateY(p.YFactor * 10 * float64(level))
	}

	drawn := RenderRubbedSquare(s, r.Rand, size, level,
		p.EraseFactor, p.CurveGlobal, p.CurveInvert, p.CurveLocal, p.InvertColors)
	if r.OnSquare != nil {
		r.OnSquare(level, size)
	}

	if depth > 0 {
		drawn += r.descend(s, size*ShrinkFactor, depth-1, baseOffset, level+1, p)
	}
	return drawn
}

func (r *Renderer) descend(s surface.Surface, size float64, depth int, baseOffset float64, level int, p params.Snapshot) int {
	s.Push()
	defer s.Pop()
	return r.RenderFractal(s, size, depth, baseOffset, level, p)
}
