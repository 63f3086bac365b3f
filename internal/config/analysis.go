package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/shotstats/internal/analysis"
	"github.com/banshee-data/shotstats/internal/counts"
	"github.com/banshee-data/shotstats/internal/stats"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/analysis.defaults.json"

// AnalysisConfig is the on-disk form of the analysis parameters. Every field
// is optional; the Get* accessors supply defaults for anything omitted.
type AnalysisConfig struct {
	// Threshold applies to every cell unless Thresholds is set.
	Threshold  *int    `json:"threshold,omitempty"`
	Thresholds [][]int `json:"thresholds,omitempty"`

	Level      *float64  `json:"level,omitempty"`
	Pooling    *string   `json:"pooling,omitempty"`
	DriftAware *bool     `json:"drift_aware,omitempty"`
	PriorAlpha *float64  `json:"prior_alpha,omitempty"`
	PriorBeta  *float64  `json:"prior_beta,omitempty"`
	Weighting  *string   `json:"weighting,omitempty"`
	Weights    []float64 `json:"weights,omitempty"`

	// ROIs is indexed [group][roi].
	ROIs [][]analysis.ROI `json:"rois,omitempty"`

	ShotsPerChunk *int  `json:"shots_per_chunk,omitempty"`
	Parallel      *bool `json:"parallel,omitempty"`
}

// Snapshot is an immutable copy of the parameters for one batch. Later edits
// to the AnalysisConfig do not reach a Snapshot already taken.
type Snapshot struct {
	Thresholds    counts.Thresholds
	ROIs          [][]analysis.ROI
	Options       analysis.Options
	ShotsPerChunk int
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set to its default.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		Threshold:     ptrInt(counts.DefaultThreshold),
		Level:         ptrFloat64(stats.DefaultLevel),
		Pooling:       ptrString(string(stats.PoolMomentMatched)),
		DriftAware:    ptrBool(false),
		PriorAlpha:    ptrFloat64(stats.JeffreysPrior.Alpha),
		PriorBeta:     ptrFloat64(stats.JeffreysPrior.Beta),
		Weighting:     ptrString(string(stats.WeightShots)),
		ROIs:          defaultROIs(),
		ShotsPerChunk: ptrInt(DefaultShotsPerChunk),
		Parallel:      ptrBool(false),
	}
}

// DefaultShotsPerChunk is the number of shots analysed together.
const DefaultShotsPerChunk = 40

func defaultROIs() [][]analysis.ROI {
	return [][]analysis.ROI{{{Y0: 0, Y1: 1, X0: 0, X1: 1}}}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file fall back to their defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up towards the repository root. It panics on failure and is
// meant for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/shotstats/ and deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the configuration values.
func (c *AnalysisConfig) Validate() error {
	if c.Level != nil && !(*c.Level > 0 && *c.Level < 1) {
		return fmt.Errorf("level must be in (0, 1), got %g", *c.Level)
	}
	if c.Pooling != nil && !stats.PoolingModel(*c.Pooling).Valid() {
		return fmt.Errorf("pooling must be %q or %q, got %q", stats.PoolMomentMatched, stats.PoolConstant, *c.Pooling)
	}
	if c.Weighting != nil && !stats.WeightScheme(*c.Weighting).Valid() {
		return fmt.Errorf("weighting must be %q or %q, got %q", stats.WeightShots, stats.WeightEqual, *c.Weighting)
	}
	if err := c.GetPrior().Validate(); err != nil {
		return fmt.Errorf("prior: %w", err)
	}
	if c.ShotsPerChunk != nil && *c.ShotsPerChunk < 1 {
		return fmt.Errorf("shots_per_chunk must be positive, got %d", *c.ShotsPerChunk)
	}

	groups, rois, err := analysis.Layout(c.GetROIs())
	if err != nil {
		return fmt.Errorf("rois: %w", err)
	}
	if len(c.Weights) > 0 {
		if _, err := stats.NormaliseWeights(c.Weights, groups); err != nil {
			return err
		}
	}
	if len(c.Thresholds) > 0 {
		if len(c.Thresholds) != groups {
			return fmt.Errorf("%w: thresholds has %d groups, rois has %d", counts.ErrShapeMismatch, len(c.Thresholds), groups)
		}
		for g, row := range c.Thresholds {
			if len(row) != rois {
				return fmt.Errorf("%w: thresholds group %d has %d entries, want %d", counts.ErrShapeMismatch, g, len(row), rois)
			}
		}
	}
	return nil
}

// GetThreshold returns the scalar threshold or the default.
func (c *AnalysisConfig) GetThreshold() int {
	if c.Threshold == nil {
		return counts.DefaultThreshold
	}
	return *c.Threshold
}

// GetThresholds returns the per-cell grid when one is set, otherwise the
// scalar threshold.
func (c *AnalysisConfig) GetThresholds() counts.Thresholds {
	if len(c.Thresholds) > 0 {
		return counts.PerCell(c.Thresholds)
	}
	return counts.Uniform(c.GetThreshold())
}

// GetLevel returns the credible level or the one-sigma default.
func (c *AnalysisConfig) GetLevel() float64 {
	if c.Level == nil {
		return stats.DefaultLevel
	}
	return *c.Level
}

// GetPooling returns the pooling model or the moment-matched default.
func (c *AnalysisConfig) GetPooling() stats.PoolingModel {
	if c.Pooling == nil || *c.Pooling == "" {
		return stats.PoolMomentMatched
	}
	return stats.PoolingModel(*c.Pooling)
}

// GetDriftAware returns the drift_aware value or the default.
func (c *AnalysisConfig) GetDriftAware() bool {
	if c.DriftAware == nil {
		return false
	}
	return *c.DriftAware
}

// GetPrior returns the configured Beta prior, Jeffreys by default.
func (c *AnalysisConfig) GetPrior() stats.Prior {
	p := stats.JeffreysPrior
	if c.PriorAlpha != nil {
		p.Alpha = *c.PriorAlpha
	}
	if c.PriorBeta != nil {
		p.Beta = *c.PriorBeta
	}
	return p
}

// GetWeighting returns the weighting scheme or the shot-weighted default.
func (c *AnalysisConfig) GetWeighting() stats.WeightScheme {
	if c.Weighting == nil || *c.Weighting == "" {
		return stats.WeightShots
	}
	return stats.WeightScheme(*c.Weighting)
}

// GetROIs returns the ROI grid or a single one-pixel ROI.
func (c *AnalysisConfig) GetROIs() [][]analysis.ROI {
	if len(c.ROIs) == 0 {
		return defaultROIs()
	}
	return c.ROIs
}

// GetShotsPerChunk returns shots_per_chunk or the default.
func (c *AnalysisConfig) GetShotsPerChunk() int {
	if c.ShotsPerChunk == nil {
		return DefaultShotsPerChunk
	}
	return *c.ShotsPerChunk
}

// GetParallel returns the parallel value or the default.
func (c *AnalysisConfig) GetParallel() bool {
	if c.Parallel == nil {
		return false
	}
	return *c.Parallel
}

// Options builds the analysis options described by the config.
func (c *AnalysisConfig) Options() analysis.Options {
	var w []float64
	if len(c.Weights) > 0 {
		w = append(w, c.Weights...)
	}
	return analysis.Options{
		Level:      c.GetLevel(),
		Pooling:    c.GetPooling(),
		DriftAware: c.GetDriftAware(),
		Prior:      c.GetPrior(),
		Weighting:  c.GetWeighting(),
		Weights:    w,
		Parallel:   c.GetParallel(),
	}
}

// Snapshot copies everything one batch needs out of the config.
func (c *AnalysisConfig) Snapshot() Snapshot {
	src := c.GetROIs()
	rois := make([][]analysis.ROI, len(src))
	for g := range src {
		rois[g] = append([]analysis.ROI(nil), src[g]...)
	}
	return Snapshot{
		Thresholds:    c.GetThresholds(),
		ROIs:          rois,
		Options:       c.Options(),
		ShotsPerChunk: c.GetShotsPerChunk(),
	}
}

// Groups returns the number of groups in the snapshot's ROI layout.
func (s Snapshot) Groups() int { return len(s.ROIs) }

// ROIsPerGroup returns the number of ROIs per group.
func (s Snapshot) ROIsPerGroup() int {
	if len(s.ROIs) == 0 {
		return 0
	}
	return len(s.ROIs[0])
}
