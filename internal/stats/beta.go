// Package stats turns binomial trial summaries into Bayesian estimates of the
// bright probability.
//
// Per-cell estimates use the Jeffreys posterior Beta(y+1/2, n-y+1/2) and
// report its median with an equal-tailed credible interval. Per-ROI estimates
// pool the per-group posteriors either by summing counts (constant
// probability) or by moment-matching a single Beta to the weighted average of
// the group probabilities, optionally widened by the between-group spread.
//
// All quantiles come from the inverse regularized incomplete beta function in
// gonum/mathext. Parameters are validated before evaluation so that an invalid
// input surfaces as ErrNumericDomain instead of a NaN or a panic.
package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNumericDomain is returned when a quantile is requested outside the
// domain of the inverse incomplete beta function.
var ErrNumericDomain = errors.New("numeric domain error")

// NumericDomainError describes the offending Beta quantile request.
type NumericDomainError struct {
	Alpha float64
	Beta  float64
	Q     float64
}

func (e *NumericDomainError) Error() string {
	return fmt.Sprintf("numeric domain error: Beta(%g, %g) quantile at q=%g", e.Alpha, e.Beta, e.Q)
}

// Unwrap lets errors.Is match ErrNumericDomain.
func (e *NumericDomainError) Unwrap() error { return ErrNumericDomain }

// BetaParams are the shape parameters of a Beta distribution.
type BetaParams struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

func (p BetaParams) valid() bool {
	return p.Alpha > 0 && p.Beta > 0 && !math.IsInf(p.Alpha, 0) && !math.IsInf(p.Beta, 0)
}

// Mean returns alpha / (alpha + beta).
func (p BetaParams) Mean() float64 {
	return p.Alpha / (p.Alpha + p.Beta)
}

// Variance returns alpha*beta / ((alpha+beta)^2 (alpha+beta+1)).
func (p BetaParams) Variance() float64 {
	s := p.Alpha + p.Beta
	return p.Alpha * p.Beta / (s * s * (s + 1))
}

// Density returns the Beta probability density at x.
func (p BetaParams) Density(x float64) float64 {
	return distuv.Beta{Alpha: p.Alpha, Beta: p.Beta}.Prob(x)
}

// CDF returns the regularized incomplete beta function I_x(alpha, beta).
func (p BetaParams) CDF(x float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	}
	return mathext.RegIncBeta(p.Alpha, p.Beta, x)
}

// Quantile returns the q-quantile of Beta(alpha, beta).
func (p BetaParams) Quantile(q float64) (float64, error) {
	if !p.valid() || math.IsNaN(q) || q < 0 || q > 1 {
		return 0, &NumericDomainError{Alpha: p.Alpha, Beta: p.Beta, Q: q}
	}
	x := distuv.Beta{Alpha: p.Alpha, Beta: p.Beta}.Quantile(q)
	if math.IsNaN(x) {
		return 0, &NumericDomainError{Alpha: p.Alpha, Beta: p.Beta, Q: q}
	}
	return math.Min(1, math.Max(0, x)), nil
}

// Quantiles evaluates several quantiles of the same distribution. The
// returned values are forced into non-decreasing order of qs so that
// round-off in the inversion cannot break interval ordering.
func (p BetaParams) Quantiles(qs ...float64) ([]float64, error) {
	out := make([]float64, len(qs))
	for i, q := range qs {
		x, err := p.Quantile(q)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	for i := 1; i < len(out); i++ {
		if qs[i] >= qs[i-1] && out[i] < out[i-1] {
			out[i] = out[i-1]
		}
	}
	return out, nil
}
