package metrics

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0..1) of samples using
// index = floor(len*p), clamped to the last element. Non-finite samples are
// ignored; an empty input yields 0. samples is not modified.
func Percentile(samples []float64, p float64) float64 {
	return Percentiles(samples, p)[0]
}

// Percentiles computes several percentiles with a single sort.
func Percentiles(samples []float64, ps ...float64) []float64 {
	sorted := make([]float64, 0, len(samples))
	for _, s := range samples {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			sorted = append(sorted, s)
		}
	}
	sort.Float64s(sorted)

	out := make([]float64, len(ps))
	if len(sorted) == 0 {
		return out
	}
	for i, p := range ps {
		out[i] = sorted[percentileIndex(len(sorted), p)]
	}
	return out
}

func percentileIndex(n int, p float64) int {
	idx := int(math.Floor(float64(n) * p))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}
