// Package counts classifies raw per-shot photon counts as bright or dark and
// aggregates the outcomes into per-(group, ROI) trial summaries.
//
// Count tables are indexed [shot][group][roi]. Every shot in a table must
// carry the same number of groups and ROIs; ragged tables are rejected with
// ErrShapeMismatch rather than padded.
package counts

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a count table, threshold grid or ROI
// layout disagree about the number of groups or ROIs.
var ErrShapeMismatch = errors.New("shape mismatch")

// DefaultThreshold is the bright/dark cut used when no threshold is configured.
const DefaultThreshold = 2000

// Classify returns 1 if count is at or above threshold (bright), 0 otherwise.
func Classify(count, threshold int) int {
	if count >= threshold {
		return 1
	}
	return 0
}

// Thresholds is either one scalar threshold shared by every cell or a
// per-(group, ROI) grid. The zero value is a scalar threshold of 0.
type Thresholds struct {
	scalar int
	grid   [][]int
}

// Uniform returns a scalar threshold applied to every cell.
func Uniform(t int) Thresholds {
	return Thresholds{scalar: t}
}

// PerCell returns a threshold grid indexed [group][roi]. The grid is copied.
func PerCell(grid [][]int) Thresholds {
	cp := make([][]int, len(grid))
	for g := range grid {
		cp[g] = append([]int(nil), grid[g]...)
	}
	return Thresholds{grid: cp}
}

// IsUniform reports whether a single threshold applies to every cell.
func (t Thresholds) IsUniform() bool { return t.grid == nil }

// Scalar returns the uniform threshold. It is meaningless for per-cell grids.
func (t Thresholds) Scalar() int { return t.scalar }

// At returns the threshold for cell (g, r).
func (t Thresholds) At(g, r int) int {
	if t.grid == nil {
		return t.scalar
	}
	return t.grid[g][r]
}

// check verifies that a per-cell grid broadcasts onto groups x rois.
func (t Thresholds) check(groups, rois int) error {
	if t.grid == nil {
		return nil
	}
	if len(t.grid) != groups {
		return fmt.Errorf("%w: threshold grid has %d groups, counts have %d", ErrShapeMismatch, len(t.grid), groups)
	}
	for g, row := range t.grid {
		if len(row) != rois {
			return fmt.Errorf("%w: threshold grid group %d has %d rois, counts have %d", ErrShapeMismatch, g, len(row), rois)
		}
	}
	return nil
}

// ClassifyShot classifies one [group][roi] shot. The input is not modified.
func ClassifyShot(shot [][]int, thr Thresholds) ([][]int, error) {
	groups, rois, err := shotShape(shot)
	if err != nil {
		return nil, err
	}
	if err := thr.check(groups, rois); err != nil {
		return nil, err
	}
	out := make([][]int, groups)
	for g := range shot {
		out[g] = make([]int, rois)
		for r, c := range shot[g] {
			out[g][r] = Classify(c, thr.At(g, r))
		}
	}
	return out, nil
}

// ClassifyTable classifies every element of a [shot][group][roi] table.
func ClassifyTable(table CountTable, thr Thresholds) ([][][]int, error) {
	if _, _, err := table.Shape(); err != nil {
		return nil, err
	}
	out := make([][][]int, len(table))
	for s, shot := range table {
		cls, err := ClassifyShot(shot, thr)
		if err != nil {
			return nil, fmt.Errorf("shot %d: %w", s, err)
		}
		out[s] = cls
	}
	return out, nil
}

func shotShape(shot [][]int) (groups, rois int, err error) {
	groups = len(shot)
	if groups == 0 {
		return 0, 0, nil
	}
	rois = len(shot[0])
	for g, row := range shot {
		if len(row) != rois {
			return 0, 0, fmt.Errorf("%w: group %d has %d rois, want %d", ErrShapeMismatch, g, len(row), rois)
		}
	}
	return groups, rois, nil
}
