// Package report renders offline artifacts from analysed data: a PNG
// comparing the pooling models' posteriors for one ROI, and an HTML chart of
// the pooled estimate across a scan.
package report

import (
	"fmt"

	"github.com/banshee-data/shotstats/internal/stats"
	"gonum.org/v1/gonum/floats"
)

// DefaultGridPoints is the density grid resolution.
const DefaultGridPoints = 600

// Comparison holds every posterior the pooling models can produce for one
// ROI, evaluated on a common grid over (0, 1).
type Comparison struct {
	Grid    []float64
	Weights []float64

	Groups   []stats.BetaParams
	Constant stats.BetaParams
	Matched  stats.Matched
	Drift    stats.Matched

	// Mixture is the exact weighted mixture of the group posteriors.
	Mixture       []float64
	MixtureMedian float64
}

// PosteriorComparison builds a Comparison for per-group (y, n) counts.
// Empty weights mean shot-proportional weights.
func PosteriorComparison(y, n []int, prior stats.Prior, weights []float64, points int) (*Comparison, error) {
	if points < 2 {
		return nil, fmt.Errorf("need at least 2 grid points, got %d", points)
	}
	constant, err := stats.Pool(y, n, prior)
	if err != nil {
		return nil, err
	}
	if len(weights) == 0 {
		if weights, err = stats.Weights(stats.WeightShots, n); err != nil {
			return nil, err
		}
	}
	matched, err := stats.MomentMatch(y, n, weights, prior, false)
	if err != nil {
		return nil, err
	}
	drift, err := stats.MomentMatch(y, n, weights, prior, true)
	if err != nil {
		return nil, err
	}

	c := &Comparison{
		Grid:     make([]float64, points),
		Weights:  matched.Weights,
		Groups:   make([]stats.BetaParams, len(y)),
		Constant: constant,
		Matched:  matched,
		Drift:    drift,
		Mixture:  make([]float64, points),
	}
	// Stay off the end points, where Jeffreys densities diverge.
	half := 0.5 / float64(points)
	floats.Span(c.Grid, half, 1-half)

	for g := range y {
		c.Groups[g] = prior.Posterior(y[g], n[g])
	}
	dens := make([]float64, len(c.Groups))
	for i, p := range c.Grid {
		for g, post := range c.Groups {
			dens[g] = post.Density(p)
		}
		c.Mixture[i] = floats.Dot(c.Weights, dens)
	}
	c.MixtureMedian = c.MixtureQuantile(0.5)
	return c, nil
}

// MixtureCDF is the weighted sum of the group posterior CDFs at p.
func (c *Comparison) MixtureCDF(p float64) float64 {
	var sum float64
	for g, post := range c.Groups {
		sum += c.Weights[g] * post.CDF(p)
	}
	return sum
}

// MixtureQuantile inverts MixtureCDF by bisection.
func (c *Comparison) MixtureQuantile(q float64) float64 {
	lo, hi := 0.0, 1.0
	for i := 0; i < 100 && hi-lo > 1e-14; i++ {
		mid := 0.5 * (lo + hi)
		if c.MixtureCDF(mid) < q {
			lo = mid
		} else {
			hi = mid
		}
	}
	return 0.5 * (lo + hi)
}

// Curve is one density sampled on the comparison grid.
type Curve struct {
	Name    string
	Density []float64
}

// Curves returns the group posteriors followed by the pooled models and the
// mixture, in plotting order.
func (c *Comparison) Curves() []Curve {
	out := make([]Curve, 0, len(c.Groups)+4)
	for g, post := range c.Groups {
		out = append(out, Curve{Name: fmt.Sprintf("group %d", g), Density: c.sample(post)})
	}
	return append(out,
		Curve{Name: "constant p", Density: c.sample(c.Constant)},
		Curve{Name: "moment matched", Density: c.sample(c.Matched.Params)},
		Curve{Name: "moment matched + drift", Density: c.sample(c.Drift.Params)},
		Curve{Name: "mixture", Density: append([]float64(nil), c.Mixture...)},
	)
}

func (c *Comparison) sample(b stats.BetaParams) []float64 {
	out := make([]float64, len(c.Grid))
	for i, p := range c.Grid {
		out[i] = b.Density(p)
	}
	return out
}

// Medians returns the median of each pooled estimate by model name.
func (c *Comparison) Medians() (map[string]float64, error) {
	out := map[string]float64{"mixture": c.MixtureMedian}
	for name, b := range map[string]stats.BetaParams{
		"constant":     c.Constant,
		"moment":       c.Matched.Params,
		"moment_drift": c.Drift.Params,
	} {
		m, err := b.Quantile(0.5)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = m
	}
	return out, nil
}
