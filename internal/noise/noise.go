// Package noise provides the robust per-channel noise statistics the
// quality gate runs on.
package noise

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// madScale makes the median absolute deviation a consistent estimator
// of the standard deviation under Gaussian noise. Changing it breaks
// numerical parity with the existing statistics tables.
const madScale = 1.4826

// EstimateStd estimates the standard deviation of samples via the
// median absolute deviation, ignoring NaN entries. If no finite sample
// exists the estimate is unavailable and NaN is returned; callers must
// not read that as zero noise.
func EstimateStd(samples []float32) float64 {
	valid := dropNaN(samples)
	if len(valid) == 0 {
		return math.NaN()
	}
	med := median(valid)
	floats.AddConst(-med, valid)
	for i, v := range valid {
		valid[i] = math.Abs(v)
	}
	mad := median(valid)
	return madScale * mad
}

// Peak returns the maximum sample value, ignoring NaN entries, or NaN
// when no finite sample exists.
func Peak(samples []float32) float64 {
	valid := dropNaN(samples)
	if len(valid) == 0 {
		return math.NaN()
	}
	return floats.Max(valid)
}

// median computes the midpoint-average median in place, the same
// reduction the upstream statistics tables were produced with. The
// slice is resorted.
func median(valid []float64) float64 {
	sort.Float64s(valid)
	n := len(valid)
	if n%2 == 1 {
		return valid[n/2]
	}
	return 0.5 * (valid[n/2-1] + valid[n/2])
}

func dropNaN(samples []float32) []float64 {
	valid := make([]float64, 0, len(samples))
	for _, v := range samples {
		f := float64(v)
		if !math.IsNaN(f) {
			valid = append(valid, f)
		}
	}
	return valid
}
