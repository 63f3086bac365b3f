package stats

import (
	"fmt"
	"math"
)

// DefaultLevel is the one-sigma-equivalent central credible mass.
const DefaultLevel = 0.6827

// Interval is a posterior summary: median plus lower and upper bounds, all
// absolute probabilities with 0 <= Lower <= Median <= Upper <= 1.
type Interval struct {
	Median float64 `json:"median"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
}

// UpperErr is the distance from the median to the upper bound.
func (iv Interval) UpperErr() float64 { return iv.Upper - iv.Median }

// LowerErr is the distance from the lower bound to the median.
func (iv Interval) LowerErr() float64 { return iv.Median - iv.Lower }

// AvgErr is half the interval width. It is a convenience for plotting only;
// UpperErr and LowerErr carry the actual asymmetric uncertainty.
func (iv Interval) AvgErr() float64 { return (iv.Upper - iv.Lower) / 2 }

// JeffreysPosterior returns Beta(y+1/2, n-y+1/2). With n = 0 this is the
// Jeffreys prior itself, whatever y is.
func JeffreysPosterior(y, n int) (BetaParams, error) {
	if n < 0 || y < 0 || y > n {
		return BetaParams{}, fmt.Errorf("%w: need 0 <= y <= n, got y=%d n=%d", ErrNumericDomain, y, n)
	}
	if n == 0 {
		return BetaParams(JeffreysPrior), nil
	}
	return BetaParams{Alpha: float64(y) + 0.5, Beta: float64(n-y) + 0.5}, nil
}

// Jeffreys returns the posterior median and the equal-tailed credible interval
// holding mass level, for y successes in n trials under the Jeffreys prior.
func Jeffreys(y, n int, level float64) (Interval, error) {
	post, err := JeffreysPosterior(y, n)
	if err != nil {
		return Interval{}, err
	}
	return EqualTailed(post, level)
}

// EqualTailed returns the median of p and the interval that leaves
// (1-level)/2 of the mass in each tail.
func EqualTailed(p BetaParams, level float64) (Interval, error) {
	if math.IsNaN(level) || level <= 0 || level >= 1 {
		return Interval{}, fmt.Errorf("%w: credible level %g outside (0, 1)", ErrNumericDomain, level)
	}
	tail := (1 - level) / 2
	q, err := p.Quantiles(tail, 0.5, 1-tail)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Lower: q[0], Median: q[1], Upper: q[2]}, nil
}

// JeffreysGrid applies Jeffreys element-wise to [group][roi] grids of equal shape.
func JeffreysGrid(y, n [][]int, level float64) ([][]Interval, error) {
	if len(y) != len(n) {
		return nil, fmt.Errorf("jeffreys grid: y has %d groups, n has %d", len(y), len(n))
	}
	out := make([][]Interval, len(n))
	for g := range n {
		if len(y[g]) != len(n[g]) {
			return nil, fmt.Errorf("jeffreys grid: group %d: y has %d rois, n has %d", g, len(y[g]), len(n[g]))
		}
		out[g] = make([]Interval, len(n[g]))
		for r := range n[g] {
			iv, err := Jeffreys(y[g][r], n[g][r], level)
			if err != nil {
				return nil, fmt.Errorf("group %d roi %d: %w", g, r, err)
			}
			out[g][r] = iv
		}
	}
	return out, nil
}
