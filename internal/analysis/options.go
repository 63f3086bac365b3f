package analysis

import (
	"fmt"

	"github.com/banshee-data/shotstats/internal/stats"
)

// Options controls how a batch is summarised. The zero value is not valid;
// start from DefaultOptions.
type Options struct {
	// Level is the central credible mass of the per-cell intervals.
	Level float64 `json:"level"`
	// Pooling selects the model used for the pooled-over-groups channels.
	Pooling stats.PoolingModel `json:"pooling"`
	// DriftAware adds the between-group variance to the moment-matched model.
	DriftAware bool        `json:"drift_aware"`
	Prior      stats.Prior `json:"prior"`
	// Weighting picks default group weights for the moment-matched model.
	// Weights, when non-empty, overrides it and must have one entry per group.
	Weighting stats.WeightScheme `json:"weighting"`
	Weights   []float64          `json:"weights,omitempty"`
	// Parallel computes ROIs concurrently. Results are identical either way.
	Parallel bool `json:"parallel"`
}

// DefaultOptions returns one-sigma Jeffreys intervals with shot-weighted,
// moment-matched pooling.
func DefaultOptions() Options {
	return Options{
		Level:     stats.DefaultLevel,
		Pooling:   stats.PoolMomentMatched,
		Prior:     stats.JeffreysPrior,
		Weighting: stats.WeightShots,
	}
}

// Validate checks everything that does not depend on the batch shape.
func (o Options) Validate() error {
	if !(o.Level > 0 && o.Level < 1) {
		return fmt.Errorf("%w: credible level %g outside (0, 1)", stats.ErrNumericDomain, o.Level)
	}
	if !o.Pooling.Valid() {
		return fmt.Errorf("unknown pooling model %q", o.Pooling)
	}
	if !o.Weighting.Valid() {
		return fmt.Errorf("%w: unknown weighting %q", stats.ErrInvalidWeights, o.Weighting)
	}
	return o.Prior.Validate()
}

// clone copies the slice fields so the output never aliases caller memory.
func (o Options) clone() Options {
	o.Weights = append([]float64(nil), o.Weights...)
	if len(o.Weights) == 0 {
		o.Weights = nil
	}
	return o
}
