// Package entropy provides the explicitly seeded pseudo-random generator used
// for stroke fading, plus a crypto-backed source for session seeds.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
)

// LCG parameters (Numerical Recipes), modulus 2^32.
const (
	lcgA = 1664525
	lcgC = 1013904223
	lcgM = 1 << 32
)

// Rand is a 32-bit linear congruential generator. Its stream for a given
// seed matches p5.js randomSeed/random, so fade
// patterns reproduce bit for bit.
//
// Rand is not safe for concurrent use.
type Rand struct {
	state uint32
	draws uint64
}

// New returns a generator seeded with seed.
func New(seed int64) *Rand {
	r := &Rand{}
	r.Seed(seed)
	return r
}

// Seed resets the generator. Negative seeds wrap to 32 bits.
func (r *Rand) Seed(seed int64) {
	r.state = uint32(seed)
	r.draws = 0
}

// Float returns the next value in [0, 1).
func (r *Rand) Float() float64 {
	r.state = lcgA*r.state + lcgC
	r.draws++
	return float64(r.state) / lcgM
}

// Draws returns how many values were taken since the last Seed.
func (r *Rand) Draws() uint64 {
	return r.draws
}

// CryptoSeed returns a non-zero random seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; any fixed seed still renders.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		return 1
	}
	return seed
}
