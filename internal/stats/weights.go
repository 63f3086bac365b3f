package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidWeights is returned for weight vectors that cannot be normalised.
var ErrInvalidWeights = errors.New("invalid weights")

// WeightScheme selects the default group weights for the moment-matched model.
type WeightScheme string

const (
	// WeightShots weights each group by its share of the total shots.
	WeightShots WeightScheme = "shots"
	// WeightEqual gives every group the same weight.
	WeightEqual WeightScheme = "equal"
)

// Valid reports whether s is a known scheme. The empty scheme means WeightShots.
func (s WeightScheme) Valid() bool {
	switch s {
	case "", WeightShots, WeightEqual:
		return true
	}
	return false
}

// Weights builds a normalised weight vector for the given per-group trial
// counts. Shot weighting degrades to equal weights when no group has shots.
func Weights(scheme WeightScheme, n []int) ([]float64, error) {
	if len(n) == 0 {
		return nil, fmt.Errorf("%w: no groups", ErrInvalidWeights)
	}
	w := make([]float64, len(n))
	switch scheme {
	case "", WeightShots:
		for i, v := range n {
			w[i] = float64(v)
		}
		if floats.Sum(w) == 0 {
			return equalWeights(len(n)), nil
		}
	case WeightEqual:
		return equalWeights(len(n)), nil
	default:
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrInvalidWeights, scheme)
	}
	return NormaliseWeights(w, len(n))
}

// NormaliseWeights returns a copy of w scaled to sum to one. It rejects
// vectors of the wrong length, with negative or non-finite entries, or that
// sum to zero.
func NormaliseWeights(w []float64, groups int) ([]float64, error) {
	if len(w) != groups {
		return nil, fmt.Errorf("%w: got %d weights for %d groups", ErrInvalidWeights, len(w), groups)
	}
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: weight %d is not finite", ErrInvalidWeights, i)
		}
		if v < 0 {
			return nil, fmt.Errorf("%w: weight %d is negative", ErrInvalidWeights, i)
		}
	}
	sum := floats.Sum(w)
	if sum == 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	out := append([]float64(nil), w...)
	floats.Scale(1/sum, out)
	return out, nil
}

func equalWeights(k int) []float64 {
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / float64(k)
	}
	return w
}
