package stats

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SplitInvariance(t *testing.T) {
	split, err := Pool([]int{3, 2}, []int{5, 5}, JeffreysPrior)
	require.NoError(t, err)
	whole, err := Pool([]int{5}, []int{10}, JeffreysPrior)
	require.NoError(t, err)
	assert.Equal(t, whole, split)
	assert.Equal(t, BetaParams{Alpha: 5.5, Beta: 5.5}, whole)

	qs, err := Quartiles(split)
	require.NoError(t, err)
	qw, err := Quartiles(whole)
	require.NoError(t, err)
	assert.Equal(t, qw, qs)
	assert.InDelta(t, 0.39710657148404405, qs.Lower, tol)
	assert.InDelta(t, 0.5, qs.Median, tol)
	assert.InDelta(t, 0.602893428515956, qs.Upper, tol)
}

func TestPool_Errors(t *testing.T) {
	_, err := Pool([]int{1}, []int{1, 2}, JeffreysPrior)
	assert.ErrorIs(t, err, ErrNumericDomain)
	_, err = Pool([]int{3}, []int{2}, JeffreysPrior)
	assert.ErrorIs(t, err, ErrNumericDomain)
	_, err = Pool([]int{1}, []int{2}, Prior{Alpha: 0, Beta: 1})
	assert.ErrorIs(t, err, ErrNumericDomain)
}

func TestMomentMatch_IdenticalGroupsNoInflation(t *testing.T) {
	single := JeffreysPrior.Posterior(7, 20)

	one, err := MomentMatch([]int{7}, []int{20}, nil, JeffreysPrior, false)
	require.NoError(t, err)
	assert.InDelta(t, single.Mean(), one.Mean, tol)
	assert.InDelta(t, single.Variance(), one.Variance, 1e-15)
	assert.InDelta(t, single.Alpha, one.Params.Alpha, 1e-6)
	assert.InDelta(t, single.Beta, one.Params.Beta, 1e-6)

	for _, k := range []int{2, 3, 8} {
		y := make([]int, k)
		n := make([]int, k)
		for i := range y {
			y[i], n[i] = 7, 20
		}
		m, err := MomentMatch(y, n, nil, JeffreysPrior, false)
		require.NoError(t, err)
		assert.InDelta(t, single.Mean(), m.Mean, tol)
		assert.InDelta(t, 0, m.Between, 1e-15)
		// Averaging k independent identical posteriors divides the
		// sampling variance by k and never adds to it.
		assert.InDelta(t, single.Variance()/float64(k), m.Variance, 1e-15)
		assert.LessOrEqual(t, m.Variance, single.Variance())

		drift, err := MomentMatch(y, n, nil, JeffreysPrior, true)
		require.NoError(t, err)
		assert.InDelta(t, m.Variance, drift.Variance, 1e-15)
	}
}

func TestMomentMatch_DriftWidensInterval(t *testing.T) {
	y, n := []int{8, 2}, []int{10, 10}
	w := []float64{1, 1}

	plain, err := MomentMatch(y, n, w, JeffreysPrior, false)
	require.NoError(t, err)
	drift, err := MomentMatch(y, n, w, JeffreysPrior, true)
	require.NoError(t, err)

	// Posterior means are 8.5/11 and 2.5/11; their average is exactly 1/2.
	assert.InDelta(t, 0.5, plain.Mean, 1e-12)
	assert.InDelta(t, 0.5, drift.Mean, 1e-12)
	assert.Greater(t, drift.Variance, plain.Variance)

	// within = (1/4)(v1 + v2) with v = 8.5*2.5/(11^2*12)
	v := 8.5 * 2.5 / (121 * 12)
	assert.InDelta(t, v/2, plain.Within, 1e-15)
	d := 8.5/11 - 0.5
	assert.InDelta(t, d*d, plain.Between, 1e-15)

	qp, err := Quartiles(plain.Params)
	require.NoError(t, err)
	qd, err := Quartiles(drift.Params)
	require.NoError(t, err)
	assert.Greater(t, qd.Upper-qd.Lower, qp.Upper-qp.Lower)
	assert.InDelta(t, 0.5, qp.Median, 1e-9)
}

func TestMomentMatch_DriftStrictlyIncreasesWheneverMeansDiffer(t *testing.T) {
	cases := []struct{ y, n []int }{
		{[]int{1, 2}, []int{10, 10}},
		{[]int{0, 40, 20}, []int{40, 40, 40}},
		{[]int{5, 5}, []int{10, 20}},
	}
	for _, c := range cases {
		plain, err := MomentMatch(c.y, c.n, nil, JeffreysPrior, false)
		require.NoError(t, err)
		drift, err := MomentMatch(c.y, c.n, nil, JeffreysPrior, true)
		require.NoError(t, err)
		assert.Greater(t, drift.Variance, plain.Variance, "y=%v n=%v", c.y, c.n)
	}
}

func TestMomentMatch_DefaultWeightsProportionalToShots(t *testing.T) {
	m, err := MomentMatch([]int{1, 9}, []int{10, 30}, nil, JeffreysPrior, false)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, m.Weights, 1e-15)

	mu1 := 1.5 / 11.0
	mu2 := 9.5 / 31.0
	assert.InDelta(t, 0.25*mu1+0.75*mu2, m.Mean, 1e-15)
}

func TestMomentMatch_NoShotsFallsBackToEqualWeights(t *testing.T) {
	m, err := MomentMatch([]int{0, 0}, []int{0, 0}, nil, JeffreysPrior, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, m.Weights, 1e-15)
	assert.InDelta(t, 0.5, m.Mean, 1e-15)
	// Two prior-only groups average to half the prior variance.
	assert.InDelta(t, 0.125/2, m.Variance, 1e-15)
}

func TestMomentMatch_InvalidWeights(t *testing.T) {
	testCases := []struct {
		name string
		w    []float64
	}{
		{"wrong_length", []float64{1}},
		{"all_zero", []float64{0, 0}},
		{"negative", []float64{1, -1}},
		{"nan", []float64{math.NaN(), 1}},
		{"inf", []float64{math.Inf(1), 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MomentMatch([]int{1, 2}, []int{4, 4}, tc.w, JeffreysPrior, false)
			assert.True(t, errors.Is(err, ErrInvalidWeights), "got %v", err)
		})
	}
}

func TestMomentMatch_SuppliedWeightsNormalised(t *testing.T) {
	a, err := MomentMatch([]int{1, 2}, []int{4, 4}, []float64{2, 6}, JeffreysPrior, false)
	require.NoError(t, err)
	b, err := MomentMatch([]int{1, 2}, []int{4, 4}, []float64{0.25, 0.75}, JeffreysPrior, false)
	require.NoError(t, err)
	assert.InDelta(t, b.Mean, a.Mean, 1e-15)
	assert.InDelta(t, b.Variance, a.Variance, 1e-15)
}

func TestMomentMatch_ClampsDegenerateMoments(t *testing.T) {
	// A near-zero prior with every shot dark pushes the mean towards 0.
	prior := Prior{Alpha: 1e-300, Beta: 1}
	m, err := MomentMatch([]int{0}, []int{1_000_000}, nil, prior, false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.Mean, meanEpsilon)
	assert.Less(t, m.Variance, m.Mean*(1-m.Mean))
	assert.Greater(t, m.Params.Alpha, 0.0)
	assert.Greater(t, m.Params.Beta, 0.0)
}

func TestMomentMatch_Errors(t *testing.T) {
	_, err := MomentMatch(nil, nil, nil, JeffreysPrior, false)
	assert.ErrorIs(t, err, ErrInvalidWeights)
	_, err = MomentMatch([]int{2}, []int{1}, nil, JeffreysPrior, false)
	assert.ErrorIs(t, err, ErrNumericDomain)
	_, err = MomentMatch([]int{1}, []int{2}, nil, Prior{Alpha: -1, Beta: 1}, false)
	assert.ErrorIs(t, err, ErrNumericDomain)
}

func TestWeights(t *testing.T) {
	w, err := Weights(WeightEqual, []int{3, 100, 0, 1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25, 0.25}, w, 1e-15)

	w, err = Weights("", []int{1, 3})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, w, 1e-15)

	_, err = Weights("bogus", []int{1})
	assert.ErrorIs(t, err, ErrInvalidWeights)
	_, err = Weights(WeightShots, nil)
	assert.ErrorIs(t, err, ErrInvalidWeights)

	assert.True(t, WeightScheme("").Valid())
	assert.False(t, WeightScheme("bogus").Valid())
	assert.True(t, PoolingModel("").Valid())
	assert.True(t, PoolConstant.Valid())
	assert.False(t, PoolingModel("median").Valid())
}

func TestBetaParamsMoments(t *testing.T) {
	p := BetaParams{Alpha: 2, Beta: 3}
	assert.InDelta(t, 0.4, p.Mean(), 1e-15)
	assert.InDelta(t, 6.0/(25*6), p.Variance(), 1e-15)
	assert.InDelta(t, 0, p.CDF(-1), 0)
	assert.InDelta(t, 1, p.CDF(2), 0)
	// Beta(2, 3) CDF at 0.5 is 11/16.
	assert.InDelta(t, 11.0/16.0, p.CDF(0.5), 1e-12)
	// Beta(2, 3) density at 0.5 is 12 * 0.5 * 0.25.
	assert.InDelta(t, 1.5, p.Density(0.5), 1e-12)
}
