package optimizer

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// projectCappedSimplex returns the Euclidean projection of v onto
// {w : lo <= w_i <= hi, sum(w) = total}. Every coordinate is clamped
// after a shared shift; the shift is found by bisection on the monotone
// sum, so the result is deterministic.
func projectCappedSimplex(v []float64, lo, hi, total float64) ([]float64, error) {
	d := float64(len(v))
	if total < lo*d-1e-9 || total > hi*d+1e-9 {
		return nil, eris.Errorf("optimizer: target sum %.4f infeasible for %d weights in [%.2f, %.2f]", total, len(v), lo, hi)
	}

	sumAt := func(theta float64) float64 {
		s := 0.0
		for _, x := range v {
			s += clamp(x-theta, lo, hi)
		}
		return s
	}

	// sumAt is non-increasing in theta and the bracket covers the full
	// range [d*lo, d*hi].
	low, high := floats.Min(v)-hi, floats.Max(v)-lo
	for i := 0; i < 100; i++ {
		mid := (low + high) / 2
		if sumAt(mid) > total {
			low = mid
		} else {
			high = mid
		}
	}
	theta := (low + high) / 2

	out := make([]float64, len(v))
	sum := 0.0
	var interior []int
	for i, x := range v {
		out[i] = clamp(x-theta, lo, hi)
		sum += out[i]
		if out[i] > lo && out[i] < hi {
			interior = append(interior, i)
		}
	}

	// Bisection leaves a sub-ulp residue; spread it across the unclamped
	// coordinates so the weights sum to total, not total±1e-12.
	if len(interior) > 0 {
		adj := (total - sum) / float64(len(interior))
		for _, i := range interior {
			out[i] += adj
		}
	}

	return out, nil
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
