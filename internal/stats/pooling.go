package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Guard rails that keep the moment-matched Beta well defined.
const (
	meanEpsilon     = 1e-12
	varianceEpsilon = 1e-18
)

// Prior is the Beta prior applied to every group.
type Prior struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// JeffreysPrior is Beta(1/2, 1/2).
var JeffreysPrior = Prior{Alpha: 0.5, Beta: 0.5}

// Validate rejects non-positive or non-finite prior parameters.
func (p Prior) Validate() error {
	if !BetaParams(p).valid() || math.IsNaN(p.Alpha) || math.IsNaN(p.Beta) {
		return fmt.Errorf("%w: prior Beta(%g, %g) must have positive finite parameters", ErrNumericDomain, p.Alpha, p.Beta)
	}
	return nil
}

// Posterior returns Beta(y+alpha0, n-y+beta0).
func (p Prior) Posterior(y, n int) BetaParams {
	return BetaParams{Alpha: float64(y) + p.Alpha, Beta: float64(n-y) + p.Beta}
}

// PoolingModel selects how per-group posteriors are combined for one ROI.
type PoolingModel string

const (
	// PoolMomentMatched approximates the weighted average of the group
	// probabilities by a single moment-matched Beta.
	PoolMomentMatched PoolingModel = "moment"
	// PoolConstant assumes one probability shared by all groups and sums counts.
	PoolConstant PoolingModel = "constant"
)

// Valid reports whether m is a known model. The empty model means PoolMomentMatched.
func (m PoolingModel) Valid() bool {
	switch m {
	case "", PoolMomentMatched, PoolConstant:
		return true
	}
	return false
}

func checkCounts(y, n []int) error {
	if len(y) != len(n) {
		return fmt.Errorf("%w: %d successes for %d trial counts", ErrNumericDomain, len(y), len(n))
	}
	for i := range n {
		if n[i] < 0 || y[i] < 0 || y[i] > n[i] {
			return fmt.Errorf("%w: group %d needs 0 <= y <= n, got y=%d n=%d", ErrNumericDomain, i, y[i], n[i])
		}
	}
	return nil
}

// Pool sums successes and failures over groups and applies the prior once:
// Beta(alpha0 + sum(y), beta0 + sum(n-y)).
func Pool(y, n []int, prior Prior) (BetaParams, error) {
	if err := prior.Validate(); err != nil {
		return BetaParams{}, err
	}
	if err := checkCounts(y, n); err != nil {
		return BetaParams{}, err
	}
	out := BetaParams{Alpha: prior.Alpha, Beta: prior.Beta}
	for i := range n {
		out.Alpha += float64(y[i])
		out.Beta += float64(n[i] - y[i])
	}
	return out, nil
}

// Matched is a Beta fitted to the first two moments of a weighted average of
// group probabilities.
type Matched struct {
	Params BetaParams `json:"params"`
	// Mean and Variance are the moments after clamping.
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	// Within is the sampling variance sum(w^2 v); Between is the weighted
	// spread of group means sum(w (mu-m)^2), reported even when not used.
	Within  float64   `json:"within"`
	Between float64   `json:"between"`
	Weights []float64 `json:"weights"`
}

// MomentMatch fits Beta(alpha*, beta*) to p = sum(w_i p_i) where each
// p_i ~ Beta(y_i+alpha0, n_i-y_i+beta0). A nil or empty w selects weights
// proportional to n. With driftAware the between-group variance is added to
// the within-group variance.
func MomentMatch(y, n []int, w []float64, prior Prior, driftAware bool) (Matched, error) {
	if err := prior.Validate(); err != nil {
		return Matched{}, err
	}
	if err := checkCounts(y, n); err != nil {
		return Matched{}, err
	}
	if len(n) == 0 {
		return Matched{}, fmt.Errorf("%w: no groups to pool", ErrInvalidWeights)
	}

	var err error
	if len(w) == 0 {
		w, err = Weights(WeightShots, n)
	} else {
		w, err = NormaliseWeights(w, len(n))
	}
	if err != nil {
		return Matched{}, err
	}

	mu := make([]float64, len(n))
	v := make([]float64, len(n))
	for i := range n {
		post := prior.Posterior(y[i], n[i])
		mu[i] = post.Mean()
		v[i] = post.Variance()
	}

	m := floats.Dot(w, mu)
	var within, between float64
	for i := range n {
		within += w[i] * w[i] * v[i]
		d := mu[i] - m
		between += w[i] * d * d
	}
	total := within
	if driftAware {
		total += between
	}

	m = clamp(m, meanEpsilon, 1-meanEpsilon)
	total = clamp(total, varianceEpsilon, m*(1-m)-varianceEpsilon)

	kappa := m*(1-m)/total - 1
	return Matched{
		Params:   BetaParams{Alpha: m * kappa, Beta: (1 - m) * kappa},
		Mean:     m,
		Variance: total,
		Within:   within,
		Between:  between,
		Weights:  w,
	}, nil
}

// Quartiles returns the 25th, 50th and 75th percentiles of p as
// (Lower, Median, Upper).
func Quartiles(p BetaParams) (Interval, error) {
	q, err := p.Quantiles(0.25, 0.5, 0.75)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Lower: q[0], Median: q[1], Upper: q[2]}, nil
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
