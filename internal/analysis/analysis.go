// Package analysis is the entry point of the statistics engine. It turns one
// batch of raw counts into per-(group, ROI) Jeffreys estimates and per-ROI
// pooled estimates, and names them as result channels.
//
// Analyse is pure: it reads an immutable Input, never mutates caller-owned
// slices, and returns either a complete Output or an error.
package analysis

import (
	"fmt"

	"github.com/banshee-data/shotstats/internal/counts"
	"github.com/banshee-data/shotstats/internal/stats"
	"golang.org/x/sync/errgroup"
)

// ROI is a readout bounding box. The engine uses the ROI grid only for its
// shape; the geometry belongs to the image readout layer.
type ROI struct {
	Y0 int `json:"y0"`
	Y1 int `json:"y1"`
	X0 int `json:"x0"`
	X1 int `json:"x1"`
}

// Layout returns the (groups, rois) shape of a [group][roi] ROI grid.
func Layout(rois [][]ROI) (groups, perGroup int, err error) {
	if len(rois) == 0 || len(rois[0]) == 0 {
		return 0, 0, fmt.Errorf("%w: empty ROI layout", counts.ErrShapeMismatch)
	}
	perGroup = len(rois[0])
	for g, row := range rois {
		if len(row) != perGroup {
			return 0, 0, fmt.Errorf("%w: ROI layout group %d has %d rois, want %d", counts.ErrShapeMismatch, g, len(row), perGroup)
		}
	}
	return len(rois), perGroup, nil
}

// Input is one analysis batch.
type Input struct {
	// Counts is indexed [shot][group][roi].
	Counts     counts.CountTable
	Thresholds counts.Thresholds
	// ROIs is indexed [group][roi].
	ROIs    [][]ROI
	Options Options
}

// CellResult is the Jeffreys summary of one (group, ROI) cell.
type CellResult struct {
	Median   float64 `json:"p"`
	UpperErr float64 `json:"p_upper_err"`
	LowerErr float64 `json:"p_lower_err"`
	AvgErr   float64 `json:"p_avg_err"`
	N        int     `json:"n"`
	Y        int     `json:"y"`
}

// PooledResult is the pooled-over-groups summary of one ROI: the quartiles
// of the Beta produced by the selected model.
type PooledResult struct {
	Median   float64            `json:"p"`
	UpperErr float64            `json:"p_upper_err"`
	LowerErr float64            `json:"p_lower_err"`
	AvgErr   float64            `json:"p_avg_err"`
	Params   stats.BetaParams   `json:"params"`
	Model    stats.PoolingModel `json:"model"`
}

// Output is the complete result of one batch.
type Output struct {
	Groups  int            `json:"groups"`
	ROIs    int            `json:"rois"`
	Cells   [][]CellResult `json:"cells"`
	Pooled  []PooledResult `json:"pooled"`
	Trials  counts.Trials  `json:"-"`
	Options Options        `json:"options"`
}

// Analyse classifies, aggregates and summarises one batch.
func Analyse(in Input) (*Output, error) {
	groups, rois, err := Layout(in.ROIs)
	if err != nil {
		return nil, err
	}
	if g, r, err := in.Counts.Shape(); err != nil {
		return nil, err
	} else if len(in.Counts) > 0 && (g != groups || r != rois) {
		return nil, fmt.Errorf("%w: counts are %dx%d, ROI layout is %dx%d", counts.ErrShapeMismatch, g, r, groups, rois)
	}
	trials, err := counts.Aggregate(in.Counts, groups, rois, in.Thresholds)
	if err != nil {
		return nil, err
	}
	return AnalyseTrials(trials, in.Options)
}

// AnalyseTrials summarises an already aggregated batch. The chunk runner
// uses it with an incremental counts.Accumulator.
func AnalyseTrials(trials counts.Trials, opts Options) (*Output, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	groups, rois := trials.Groups(), trials.ROIs()
	if groups == 0 || rois == 0 {
		return nil, fmt.Errorf("%w: no cells to analyse", counts.ErrShapeMismatch)
	}
	if len(opts.Weights) > 0 && len(opts.Weights) != groups {
		return nil, fmt.Errorf("%w: got %d weights for %d groups", stats.ErrInvalidWeights, len(opts.Weights), groups)
	}
	opts = opts.clone()
	trials = trials.Clone()

	out := &Output{
		Groups:  groups,
		ROIs:    rois,
		Cells:   make([][]CellResult, groups),
		Pooled:  make([]PooledResult, rois),
		Trials:  trials,
		Options: opts,
	}
	for g := range out.Cells {
		out.Cells[g] = make([]CellResult, rois)
	}

	// Each ROI writes only its own column of Cells and its own Pooled slot,
	// so the parallel path needs no locking and merges by index.
	if opts.Parallel && rois > 1 {
		var eg errgroup.Group
		for r := 0; r < rois; r++ {
			eg.Go(func() error { return analyseROI(out, trials, opts, r) })
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	}
	for r := 0; r < rois; r++ {
		if err := analyseROI(out, trials, opts, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func analyseROI(out *Output, trials counts.Trials, opts Options, r int) error {
	y, n := trials.Column(r)
	for g := range y {
		iv, err := stats.Jeffreys(y[g], n[g], opts.Level)
		if err != nil {
			return fmt.Errorf("group %d roi %d: %w", g, r, err)
		}
		out.Cells[g][r] = CellResult{
			Median:   iv.Median,
			UpperErr: iv.UpperErr(),
			LowerErr: iv.LowerErr(),
			AvgErr:   iv.AvgErr(),
			N:        n[g],
			Y:        y[g],
		}
	}

	pooled, err := pool(y, n, opts)
	if err != nil {
		return fmt.Errorf("roi %d: %w", r, err)
	}
	out.Pooled[r] = pooled
	return nil
}

func pool(y, n []int, opts Options) (PooledResult, error) {
	model := opts.Pooling
	if model == "" {
		model = stats.PoolMomentMatched
	}

	var params stats.BetaParams
	switch model {
	case stats.PoolConstant:
		p, err := stats.Pool(y, n, opts.Prior)
		if err != nil {
			return PooledResult{}, err
		}
		params = p
	default:
		w := opts.Weights
		if len(w) == 0 {
			var err error
			if w, err = stats.Weights(opts.Weighting, n); err != nil {
				return PooledResult{}, err
			}
		}
		m, err := stats.MomentMatch(y, n, w, opts.Prior, opts.DriftAware)
		if err != nil {
			return PooledResult{}, err
		}
		params = m.Params
	}

	iv, err := stats.Quartiles(params)
	if err != nil {
		return PooledResult{}, err
	}
	return PooledResult{
		Median:   iv.Median,
		UpperErr: iv.UpperErr(),
		LowerErr: iv.LowerErr(),
		AvgErr:   iv.AvgErr(),
		Params:   params,
		Model:    model,
	}, nil
}
