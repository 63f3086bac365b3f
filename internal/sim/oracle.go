package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// Readout is the fluorescence model: a bright site emits Poisson(MeanBright)
// photons and a dark site Poisson(MeanDark).
type Readout struct {
	MeanBright float64
	MeanDark   float64
}

// DefaultReadout returns a readout whose bright and dark distributions are
// well separated around a threshold of 600.
func DefaultReadout() Readout {
	return Readout{MeanBright: 1200, MeanDark: 150}
}

// Oracle simulates one shot of a groups x rois site grid per RunShot call.
// Each site draws its own bright/dark state, then its photon count.
// It is safe for concurrent use.
type Oracle struct {
	mu      sync.Mutex
	groups  int
	rois    int
	readout Readout
	p       [][]float64
	src     rand.Source
	shots   int
}

// NewOracle returns an oracle with every site at bright probability 0.5.
// The same seed always yields the same sequence of shots.
func NewOracle(groups, rois int, readout Readout, seed uint64) (*Oracle, error) {
	if groups < 1 || rois < 1 {
		return nil, fmt.Errorf("oracle needs at least one site, got %dx%d", groups, rois)
	}
	if readout.MeanBright < 0 || readout.MeanDark < 0 {
		return nil, fmt.Errorf("readout means must be non-negative, got bright=%g dark=%g", readout.MeanBright, readout.MeanDark)
	}
	o := &Oracle{
		groups:  groups,
		rois:    rois,
		readout: readout,
		src:     rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
	o.p = uniformGrid(groups, rois, 0.5)
	return o, nil
}

func uniformGrid(groups, rois int, p float64) [][]float64 {
	grid := make([][]float64, groups)
	for g := range grid {
		grid[g] = make([]float64, rois)
		for r := range grid[g] {
			grid[g][r] = p
		}
	}
	return grid
}

// SetPBright puts every site at the same bright probability.
func (o *Oracle) SetPBright(p float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.p = uniformGrid(o.groups, o.rois, clamp01(p))
}

// SetSiteProbabilities sets one bright probability per [group][roi] site.
func (o *Oracle) SetSiteProbabilities(grid [][]float64) error {
	if len(grid) != o.groups {
		return fmt.Errorf("probability grid has %d groups, want %d", len(grid), o.groups)
	}
	cp := make([][]float64, o.groups)
	for g, row := range grid {
		if len(row) != o.rois {
			return fmt.Errorf("probability grid group %d has %d rois, want %d", g, len(row), o.rois)
		}
		cp[g] = make([]float64, o.rois)
		for r, p := range row {
			cp[g][r] = clamp01(p)
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.p = cp
	return nil
}

// SiteProbabilities returns a copy of the current per-site probabilities.
func (o *Oracle) SiteProbabilities() [][]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([][]float64, o.groups)
	for g := range o.p {
		out[g] = append([]float64(nil), o.p[g]...)
	}
	return out
}

// Shots returns how many shots have been simulated.
func (o *Oracle) Shots() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shots
}

// RunShot simulates one shot and returns its [group][roi] counts.
func (o *Oracle) RunShot(ctx context.Context) ([][]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	shot := make([][]int, o.groups)
	for g := range shot {
		shot[g] = make([]int, o.rois)
		for r := range shot[g] {
			state := distuv.Bernoulli{P: o.p[g][r], Src: o.src}
			mean := o.readout.MeanDark
			if state.Rand() == 1 {
				mean = o.readout.MeanBright
			}
			shot[g][r] = o.poisson(mean)
		}
	}
	o.shots++
	return shot, nil
}

func (o *Oracle) poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: mean, Src: o.src}.Rand())
}

// GroupDrift returns a probability grid in which group g sits at
// p + spread*(g/(groups-1) - 1/2), the same for every ROI. It models a slow
// drift across repeated groups. A single group gets p.
func GroupDrift(p, spread float64, groups, rois int) [][]float64 {
	grid := make([][]float64, groups)
	for g := range grid {
		offset := 0.0
		if groups > 1 {
			offset = spread * (float64(g)/float64(groups-1) - 0.5)
		}
		grid[g] = make([]float64, rois)
		for r := range grid[g] {
			grid[g][r] = clamp01(p + offset)
		}
	}
	return grid
}
