package pairing

import (
	"math/rand/v2"
)

// Option configures a Selector.
type Option func(*Selector)

// WithRand sets the random source used for shuffling. Tests pass a seeded
// source for reproducible pairs.
func WithRand(r *rand.Rand) Option {
	return func(s *Selector) {
		if r != nil {
			s.rnd = r
		}
	}
}

// WithTokenGenerator overrides how session tokens are minted.
func WithTokenGenerator(gen func() string) Option {
	return func(s *Selector) {
		if gen != nil {
			s.newToken = gen
		}
	}
}
