package analysis

import (
	"errors"
	"sort"
	"testing"

	"github.com/banshee-data/shotstats/internal/counts"
	"github.com/banshee-data/shotstats/internal/stats"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-9

func roiGrid(groups, rois int) [][]ROI {
	grid := make([][]ROI, groups)
	for g := range grid {
		grid[g] = make([]ROI, rois)
		for r := range grid[g] {
			grid[g][r] = ROI{Y0: 10 * g, Y1: 10*g + 5, X0: 10 * r, X1: 10*r + 5}
		}
	}
	return grid
}

// twoGroupTable builds a two-group, single-ROI table of shots in which the
// first bright0 (resp. bright1) shots of each group are bright.
func twoGroupTable(bright0, bright1, shots int) counts.CountTable {
	table := make(counts.CountTable, shots)
	for s := 0; s < shots; s++ {
		c0, c1 := 10, 10
		if s < bright0 {
			c0 = 1000
		}
		if s < bright1 {
			c1 = 1000
		}
		table[s] = [][]int{{c0}, {c1}}
	}
	return table
}

func TestAnalyse_SingleShotThreeROIs(t *testing.T) {
	in := Input{
		Counts:     counts.CountTable{{{100, 50, 900}}},
		Thresholds: counts.Uniform(200),
		ROIs:       roiGrid(1, 3),
		Options:    DefaultOptions(),
	}
	out, err := Analyse(in)
	require.NoError(t, err)
	require.Equal(t, 1, out.Groups)
	require.Equal(t, 3, out.ROIs)

	assert.Equal(t, []int{0, 0, 1}, out.Trials.Y[0])
	assert.Equal(t, []int{1, 1, 1}, out.Trials.N[0])

	// Median of Beta(1.5, 0.5).
	assert.InDelta(t, 0.8368060145916072, out.Cells[0][2].Median, tol)
	assert.InDelta(t, 0.16319398540839264, out.Cells[0][0].Median, tol)
	assert.Equal(t, out.Cells[0][0], out.Cells[0][1])

	c := out.Cells[0][2]
	assert.InDelta(t, 0.9843927071510852-0.8368060145916072, c.UpperErr, tol)
	assert.InDelta(t, 0.8368060145916072-0.46243066262895416, c.LowerErr, tol)
	assert.InDelta(t, (0.9843927071510852-0.46243066262895416)/2, c.AvgErr, tol)

	// One group: the moment-matched Beta is the group posterior itself.
	assert.InDelta(t, 1.5, out.Pooled[2].Params.Alpha, 1e-6)
	assert.InDelta(t, 0.5, out.Pooled[2].Params.Beta, 1e-6)
	assert.Equal(t, stats.PoolMomentMatched, out.Pooled[2].Model)
	assert.InDelta(t, 0.8368060145916072, out.Pooled[2].Median, 1e-6)
}

func TestAnalyse_ConstantPoolingSelectable(t *testing.T) {
	opts := DefaultOptions()
	opts.Pooling = stats.PoolConstant
	in := Input{
		Counts:     twoGroupTable(3, 2, 5),
		Thresholds: counts.Uniform(500),
		ROIs:       roiGrid(2, 1),
		Options:    opts,
	}
	out, err := Analyse(in)
	require.NoError(t, err)

	p := out.Pooled[0]
	assert.Equal(t, stats.PoolConstant, p.Model)
	assert.Equal(t, stats.BetaParams{Alpha: 5.5, Beta: 5.5}, p.Params)
	assert.InDelta(t, 0.5, p.Median, tol)
	assert.InDelta(t, 0.602893428515956-0.5, p.UpperErr, tol)
	assert.InDelta(t, 0.5-0.39710657148404405, p.LowerErr, tol)
}

func TestAnalyse_TwoGroupsDrift(t *testing.T) {
	base := Input{
		Counts:     twoGroupTable(8, 2, 10),
		Thresholds: counts.Uniform(500),
		ROIs:       roiGrid(2, 1),
		Options:    DefaultOptions(),
	}
	base.Options.Weighting = stats.WeightEqual

	plain, err := Analyse(base)
	require.NoError(t, err)

	drift := base
	drift.Options.DriftAware = true
	widened, err := Analyse(drift)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, plain.Pooled[0].Median, 1e-6)
	assert.InDelta(t, 0.5, widened.Pooled[0].Median, 1e-6)
	assert.Greater(t, widened.Pooled[0].AvgErr, plain.Pooled[0].AvgErr)

	pv := plain.Pooled[0].Params.Variance()
	wv := widened.Pooled[0].Params.Variance()
	assert.Greater(t, wv, pv)

	assert.InDelta(t, 0.789626359835184, plain.Cells[0][0].Median, tol)
	assert.Equal(t, 8, plain.Cells[0][0].Y)
	assert.Equal(t, 2, plain.Cells[1][0].Y)
}

func TestAnalyse_EmptyBatchUsesPrior(t *testing.T) {
	out, err := Analyse(Input{
		Thresholds: counts.Uniform(1),
		ROIs:       roiGrid(2, 2),
		Options:    DefaultOptions(),
	})
	require.NoError(t, err)
	for g := range out.Cells {
		for r := range out.Cells[g] {
			c := out.Cells[g][r]
			assert.Equal(t, 0, c.N)
			assert.InDelta(t, 0.5, c.Median, tol)
			assert.InDelta(t, 0.5-0.06082900882711774, c.LowerErr, tol)
		}
	}
	for _, p := range out.Pooled {
		assert.InDelta(t, 0.5, p.Median, 1e-9)
	}
}

func TestAnalyse_ParallelMatchesSequential(t *testing.T) {
	const groups, rois, shots = 3, 12, 25
	table := make(counts.CountTable, shots)
	for s := range table {
		table[s] = make([][]int, groups)
		for g := range table[s] {
			table[s][g] = make([]int, rois)
			for r := range table[s][g] {
				table[s][g][r] = (s*37 + g*101 + r*53) % 400
			}
		}
	}
	in := Input{Counts: table, Thresholds: counts.Uniform(180), ROIs: roiGrid(groups, rois), Options: DefaultOptions()}
	in.Options.DriftAware = true

	seq, err := Analyse(in)
	require.NoError(t, err)
	in.Options.Parallel = true
	par, err := Analyse(in)
	require.NoError(t, err)

	if diff := cmp.Diff(seq.Channels(), par.Channels()); diff != "" {
		t.Errorf("parallel result differs (-seq +par):\n%s", diff)
	}
}

func TestAnalyse_DoesNotMutateInput(t *testing.T) {
	in := Input{
		Counts:     counts.CountTable{{{1, 500}, {600, 2}}, {{700, 3}, {4, 800}}},
		Thresholds: counts.PerCell([][]int{{100, 100}, {100, 100}}),
		ROIs:       roiGrid(2, 2),
		Options:    DefaultOptions(),
	}
	in.Options.Weights = []float64{1, 3}
	wantCounts := counts.CountTable{{{1, 500}, {600, 2}}, {{700, 3}, {4, 800}}}

	out, err := Analyse(in)
	require.NoError(t, err)
	if diff := cmp.Diff(wantCounts, in.Counts); diff != "" {
		t.Errorf("counts mutated (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{1, 3}, in.Options.Weights)

	out.Options.Weights[0] = 99
	assert.Equal(t, []float64{1, 3}, in.Options.Weights)
}

func TestAnalyse_Errors(t *testing.T) {
	good := func() Input {
		return Input{
			Counts:     counts.CountTable{{{1, 2}, {3, 4}}},
			Thresholds: counts.Uniform(2),
			ROIs:       roiGrid(2, 2),
			Options:    DefaultOptions(),
		}
	}
	testCases := []struct {
		name   string
		mutate func(*Input)
		want   error
	}{
		{"roi_groups_mismatch", func(in *Input) { in.ROIs = roiGrid(3, 2) }, counts.ErrShapeMismatch},
		{"roi_count_mismatch", func(in *Input) { in.ROIs = roiGrid(2, 1) }, counts.ErrShapeMismatch},
		{"ragged_rois", func(in *Input) { in.ROIs = [][]ROI{{{}, {}}, {{}}} }, counts.ErrShapeMismatch},
		{"empty_rois", func(in *Input) { in.ROIs = nil }, counts.ErrShapeMismatch},
		{"ragged_counts", func(in *Input) { in.Counts = append(in.Counts, [][]int{{1}, {2, 3}}) }, counts.ErrShapeMismatch},
		{"threshold_grid", func(in *Input) { in.Thresholds = counts.PerCell([][]int{{1}}) }, counts.ErrShapeMismatch},
		{"weights_length", func(in *Input) { in.Options.Weights = []float64{1} }, stats.ErrInvalidWeights},
		{"weights_zero", func(in *Input) { in.Options.Weights = []float64{0, 0} }, stats.ErrInvalidWeights},
		{"weighting_unknown", func(in *Input) { in.Options.Weighting = "bogus" }, stats.ErrInvalidWeights},
		{"level_out_of_range", func(in *Input) { in.Options.Level = 1.5 }, stats.ErrNumericDomain},
		{"bad_prior", func(in *Input) { in.Options.Prior = stats.Prior{} }, stats.ErrNumericDomain},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := good()
			tc.mutate(&in)
			out, err := Analyse(in)
			assert.Nil(t, out)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	in := good()
	in.Options.Pooling = "median"
	out, err := Analyse(in)
	assert.Nil(t, out)
	assert.Error(t, err)
}

func TestChannels_MatchDeclarations(t *testing.T) {
	out, err := Analyse(Input{
		Counts:     counts.CountTable{{{5, 500}, {500, 5}}},
		Thresholds: counts.Uniform(100),
		ROIs:       roiGrid(2, 2),
		Options:    DefaultOptions(),
	})
	require.NoError(t, err)

	ch := out.Channels()
	decl := ChannelNames(2, 2)
	require.Len(t, decl, len(ch))

	var declared, emitted []string
	for _, c := range decl {
		declared = append(declared, c.Name)
	}
	for k := range ch {
		emitted = append(emitted, k)
	}
	sort.Strings(declared)
	sort.Strings(emitted)
	if diff := cmp.Diff(declared, emitted); diff != "" {
		t.Errorf("declared vs emitted channels (-declared +emitted):\n%s", diff)
	}

	assert.Equal(t, "GaR0_p", decl[0].Name)
	assert.Equal(t, "GaR0_p", decl[3].ErrorBarFor)
	assert.Equal(t, "G0R0_p", decl[4].Name)
	assert.Equal(t, KindInt, decl[8].Kind)
	assert.Equal(t, "G0R0_n", decl[8].Name)

	assert.Equal(t, 1.0, ch["G0R1_y"])
	assert.Equal(t, 1.0, ch["G1R0_n"])
	assert.Equal(t, 0.0, ch["G0R0_y"])
	assert.InDelta(t, out.Pooled[1].Median, ch["GaR1_p"], 0)
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, stats.DefaultLevel, opts.Level)
	assert.Equal(t, stats.PoolMomentMatched, opts.Pooling)
	assert.False(t, opts.DriftAware)
	assert.Equal(t, stats.JeffreysPrior, opts.Prior)
	assert.Equal(t, stats.WeightShots, opts.Weighting)
}
