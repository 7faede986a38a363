// Package noise provides smooth one-dimensional pseudo-noise in [0, 1],
// layered from OpenSimplex octaves.
package noise

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/rubbed-squares/internal/entropy"
)

// Default layering: four octaves, each at half the amplitude and twice the
// frequency of the previous one.
const (
	DefaultOctaves = 4
	DefaultFalloff = 0.5
)

// Field samples layered simplex noise along a line.
type Field struct {
	src     opensimplex.Noise
	seed    int64
	octaves int
	falloff float64
}

// New creates a noise field. A zero seed picks a random one.
func New(seed int64) *Field {
	if seed == 0 {
		seed = entropy.CryptoSeed()
	}
	return &Field{
		src:     opensimplex.NewNormalized(seed),
		seed:    seed,
		octaves: DefaultOctaves,
		falloff: DefaultFalloff,
	}
}

// Seed returns the seed the field was built from.
func (f *Field) Seed() int64 {
	return f.seed
}

// At returns the noise value at x, in [0, 1]. Nearby inputs give nearby
// outputs; the same field always returns the same value for the same x.
func (f *Field) At(x float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	frequency := 1.0

	for i := 0; i < f.octaves; i++ {
		total += f.src.Eval2(x*frequency, 0) * amplitude
		maxVal += amplitude
		amplitude *= f.falloff
		frequency *= 2
	}

	v := total / maxVal
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
