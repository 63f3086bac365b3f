package counts

import "fmt"

// CountTable holds raw photon counts indexed [shot][group][roi].
type CountTable [][][]int

// Shape returns the (groups, rois) shape shared by every shot. An empty table
// reports (0, 0).
func (t CountTable) Shape() (groups, rois int, err error) {
	if len(t) == 0 {
		return 0, 0, nil
	}
	groups, rois, err = shotShape(t[0])
	if err != nil {
		return 0, 0, fmt.Errorf("shot 0: %w", err)
	}
	for s := 1; s < len(t); s++ {
		if err := checkShot(t[s], groups, rois); err != nil {
			return 0, 0, fmt.Errorf("shot %d: %w", s, err)
		}
	}
	return groups, rois, nil
}

func checkShot(shot [][]int, groups, rois int) error {
	if len(shot) != groups {
		return fmt.Errorf("%w: %d groups, want %d", ErrShapeMismatch, len(shot), groups)
	}
	for g, row := range shot {
		if len(row) != rois {
			return fmt.Errorf("%w: group %d has %d rois, want %d", ErrShapeMismatch, g, len(row), rois)
		}
	}
	return nil
}

// Trials is the (n, y) summary of a batch: N[g][r] shots observed and
// Y[g][r] of them classified bright. 0 <= Y <= N always holds.
type Trials struct {
	N [][]int
	Y [][]int
}

// NewTrials returns an all-zero summary for groups x rois.
func NewTrials(groups, rois int) Trials {
	t := Trials{N: make([][]int, groups), Y: make([][]int, groups)}
	for g := 0; g < groups; g++ {
		t.N[g] = make([]int, rois)
		t.Y[g] = make([]int, rois)
	}
	return t
}

// Groups returns the number of groups.
func (t Trials) Groups() int { return len(t.N) }

// ROIs returns the number of regions of interest.
func (t Trials) ROIs() int {
	if len(t.N) == 0 {
		return 0
	}
	return len(t.N[0])
}

// Column returns the per-group successes and trials for one ROI, which is
// the slice the pooling models consume.
func (t Trials) Column(r int) (y, n []int) {
	y = make([]int, len(t.N))
	n = make([]int, len(t.N))
	for g := range t.N {
		y[g] = t.Y[g][r]
		n[g] = t.N[g][r]
	}
	return y, n
}

// Clone returns a deep copy.
func (t Trials) Clone() Trials {
	out := NewTrials(t.Groups(), t.ROIs())
	for g := range t.N {
		copy(out.N[g], t.N[g])
		copy(out.Y[g], t.Y[g])
	}
	return out
}

// Aggregate classifies every shot in table and sums the outcomes over the
// shot axis. groups and rois fix the expected shape, so an empty table
// produces n = 0 cells rather than an empty summary.
func Aggregate(table CountTable, groups, rois int, thr Thresholds) (Trials, error) {
	if err := thr.check(groups, rois); err != nil {
		return Trials{}, err
	}
	acc := NewAccumulator(groups, rois, thr)
	for s, shot := range table {
		if err := acc.Push(shot); err != nil {
			return Trials{}, fmt.Errorf("shot %d: %w", s, err)
		}
	}
	return acc.Trials(), nil
}
