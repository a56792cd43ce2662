package metrics

import (
	"math"
	"math/rand"
)

// Sampler thins observations according to a rate in [0,1].
type Sampler struct {
	rate  float64
	float func() float64
}

// NewSampler creates a sampler drawing from the global generator.
func NewSampler(rate float64) *Sampler {
	return &Sampler{rate: rate, float: rand.Float64}
}

// Rate returns the configured sampling rate.
func (s *Sampler) Rate() float64 {
	return s.rate
}

// Keep decides whether a single observation is recorded.
func (s *Sampler) Keep() bool {
	if s.rate >= 1 {
		return true
	}
	if s.rate <= 0 {
		return false
	}
	return s.float() < s.rate
}

// Count scales a count of n observations by the rate. The fractional part
// is kept with matching probability, zero stays zero, and any non-zero
// count yields at least one.
func (s *Sampler) Count(n int) int {
	if n <= 0 {
		return 0
	}
	if s.rate >= 1 {
		return n
	}

	scaled := float64(n) * math.Max(s.rate, 0)
	k := int(scaled)
	if frac := scaled - float64(k); frac > 0 && s.float() < frac {
		k++
	}
	if k == 0 {
		k = 1
	}
	return k
}
