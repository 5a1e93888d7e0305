// Package rng provides the thread-local random source the packet core
// draws from (model.RNG). Each worker owns exactly one Generator, seeded
// deterministically from its (rank, thread) pair so that a run is
// reproducible given fixed seeds rather than drawn from wall-clock time.
package rng

import (
	"math"

	"golang.org/x/exp/rand"

	"github.com/sedna-rt/rpkt/vec"
)

// Generator is a thread-local random source implementing model.RNG.
type Generator struct {
	src *rand.Rand
}

// New seeds a Generator deterministically from (rankID, threadID).
func New(rankID, threadID int) *Generator {
	seed := uint64(rankID)*1_000_003 + uint64(threadID)*7 + 0x9e3779b97f4a7c15
	return &Generator{src: rand.New(rand.NewSource(seed))}
}

// Uniform draws U in [0,1).
func (g *Generator) Uniform() float64 {
	return g.src.Float64()
}

// UniformPos draws U in (0,1], so that -ln(U), the optical-depth draw,
// is always finite.
func (g *Generator) UniformPos() float64 {
	u := g.src.Float64()
	return 1 - u
}

// IsotropicUnitVector samples a direction uniform on S^2.
func (g *Generator) IsotropicUnitVector() [3]float64 {
	v := vec.IsotropicUnitVector(g.Uniform(), g.Uniform())
	return [3]float64(v)
}

// TauNext draws the total optical depth to the next physical interaction,
// tau_next = -ln(U), U ~ Uniform(0,1].
func TauNext(g interface{ UniformPos() float64 }) float64 {
	return -math.Log(g.UniformPos())
}
