// Package prng provides the deterministic pseudo-random generator that is
// the only source of non-determinism in a run.
//
// Every random scheduling choice draws from one PRNG owned by the engine.
// Given the same seed and the same sequence of calls the generator yields
// the same values, which is what makes a recorded run reproducible even
// before the trace is consulted.
package prng

import (
	"fmt"
	"sync"
)

// Multiplier and increment of the 64-bit LCG (Knuth's MMIX constants).
const (
	multiplier = 6364136223846793005
	increment  = 1442695040888963407
)

// Max is the largest value Next can return.
const Max = 0xFFFFFFFF

// PRNG is a seeded linear congruential generator. Next returns the upper
// 32 bits of the 64-bit state, whose low bits have short periods.
//
// Thread-safety: all methods are safe for concurrent use.
type PRNG struct {
	mu    sync.Mutex
	seed  uint64
	state uint64
}

// New creates a generator initialized with seed.
func New(seed uint64) *PRNG {
	p := &PRNG{}
	p.SetSeed(seed)
	return p
}

// Seed returns the seed the generator was last initialized with.
func (p *PRNG) Seed() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seed
}

// SetSeed resets the generator. The engine calls it once at construction
// and, when replaying, once more to restore the recorded seed before any
// decision is taken.
func (p *PRNG) SetSeed(seed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seed = seed
	p.state = seed
}

// Next advances the state and returns a value in [0, Max].
func (p *PRNG) Next() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = p.state*multiplier + increment
	return (p.state >> 32) & Max
}

// Range returns a value in [min, max). Panics unless max > min.
func (p *PRNG) Range(min, max uint64) uint64 {
	if max <= min {
		panic(fmt.Sprintf("prng: empty range [%d, %d)", min, max))
	}
	return min + p.Next()%(max-min)
}

// Real returns a value in [0, 1).
func (p *PRNG) Real() float64 {
	return float64(p.Next()) / (float64(Max) + 1)
}
