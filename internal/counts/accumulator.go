package counts

// Accumulator builds a Trials summary one shot at a time, for callers that
// receive counts as they are produced instead of as a finished table.
// It is not safe for concurrent use.
type Accumulator struct {
	groups int
	rois   int
	thr    Thresholds
	trials Trials
	shots  int
}

// NewAccumulator returns an empty accumulator for groups x rois.
func NewAccumulator(groups, rois int, thr Thresholds) *Accumulator {
	return &Accumulator{
		groups: groups,
		rois:   rois,
		thr:    thr,
		trials: NewTrials(groups, rois),
	}
}

// Push classifies one [group][roi] shot and adds it to the running totals.
// A shot of the wrong shape is rejected and leaves the totals untouched.
func (a *Accumulator) Push(shot [][]int) error {
	if err := checkShot(shot, a.groups, a.rois); err != nil {
		return err
	}
	if err := a.thr.check(a.groups, a.rois); err != nil {
		return err
	}
	for g, row := range shot {
		for r, c := range row {
			a.trials.N[g][r]++
			a.trials.Y[g][r] += Classify(c, a.thr.At(g, r))
		}
	}
	a.shots++
	return nil
}

// Shots returns the number of shots pushed so far.
func (a *Accumulator) Shots() int { return a.shots }

// Trials returns a copy of the running totals.
func (a *Accumulator) Trials() Trials { return a.trials.Clone() }

// Reset clears the totals, keeping shape and thresholds.
func (a *Accumulator) Reset() {
	a.trials = NewTrials(a.groups, a.rois)
	a.shots = 0
}
