package sim

import (
	"hash/fnv"
	"math/rand/v2"
)

// Entropy is the run's only source of randomness. It is seeded once from
// the run seed and threaded explicitly to whatever needs it; there is no
// package-level RNG state anywhere in the engine. Identical seeds yield
// identical draw sequences.
type Entropy struct {
	seed uint64
	rnd  *rand.Rand
}

func NewEntropy(seed uint64) *Entropy {
	return &Entropy{
		seed: seed,
		rnd:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (e *Entropy) Seed() uint64 { return e.seed }

// Float64 returns a draw in [0, 1).
func (e *Entropy) Float64() float64 { return e.rnd.Float64() }

// Stream derives an independent labelled sub-stream. Components that
// draw at different cadences take their own stream so adding draws to
// one cannot shift another.
func (e *Entropy) Stream(label string) *Entropy {
	h := fnv.New64a()
	h.Write([]byte(label))
	return NewEntropy(e.seed ^ h.Sum64())
}
