// Package rng provides a seedable random source whose state can be saved
// and restored, so runs are reproducible across savepoints.
package rng

import (
	"fmt"
	"math/rand/v2"
)

// Source is a deterministic random source backed by PCG.
type Source struct {
	pcg *rand.PCG
	r   *rand.Rand
}

// New returns a source seeded with seed.
func New(seed uint64) *Source {
	pcg := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Source{pcg: pcg, r: rand.New(pcg)}
}

// Float64 returns a number in [0, 1).
func (s *Source) Float64() float64 { return s.r.Float64() }

// IntN returns a number in [0, n).
func (s *Source) IntN(n int) int { return s.r.IntN(n) }

// Bernoulli returns true with probability p.
func (s *Source) Bernoulli(p float64) bool { return s.r.Float64() < p }

// Choice samples an index with probability proportional to its weight.
func (s *Source) Choice(weights []float64) (int, error) {
	total := 0.0
	for i, w := range weights {
		if w < 0 {
			return 0, fmt.Errorf("negative weight %g at index %d", w, i)
		}
		total += w
	}
	if total <= 0 {
		return 0, fmt.Errorf("weights sum to zero")
	}

	x := s.r.Float64() * total
	last := 0
	for i, w := range weights {
		if w == 0 {
			continue
		}
		last = i
		if x < w {
			return i, nil
		}
		x -= w
	}
	// rounding can leave x just above the final bucket
	return last, nil
}

// Shuffle permutes n elements through swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) { s.r.Shuffle(n, swap) }

// MarshalBinary captures the generator state.
func (s *Source) MarshalBinary() ([]byte, error) {
	return s.pcg.MarshalBinary()
}

// UnmarshalBinary restores state captured by MarshalBinary.
func (s *Source) UnmarshalBinary(data []byte) error {
	if s.pcg == nil {
		s.pcg = &rand.PCG{}
		s.r = rand.New(s.pcg)
	}
	if err := s.pcg.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("restoring random state: %w", err)
	}
	return nil
}

// FromState rebuilds a source from MarshalBinary output.
func FromState(data []byte) (*Source, error) {
	s := &Source{}
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}
