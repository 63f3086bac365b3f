// Package scan drives batches of shots through the statistics engine: a
// ChunkRunner turns a fixed number of shots into one analysed batch and a
// Scan repeats that over the points of a one-dimensional parameter sweep.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/shotstats/internal/analysis"
	"github.com/banshee-data/shotstats/internal/config"
	"github.com/banshee-data/shotstats/internal/counts"
	"github.com/banshee-data/shotstats/internal/timeutil"
	"github.com/google/uuid"
)

// ShotRunner produces the [group][roi] counts of one shot.
type ShotRunner interface {
	RunShot(ctx context.Context) ([][]int, error)
}

// ShotRunnerFunc adapts a function to ShotRunner.
type ShotRunnerFunc func(ctx context.Context) ([][]int, error)

// RunShot calls f.
func (f ShotRunnerFunc) RunShot(ctx context.Context) ([][]int, error) { return f(ctx) }

// ChunkResult is one analysed batch.
type ChunkResult struct {
	ID        uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	Shots     int
	// Config is the parameter snapshot the batch was analysed with.
	Config config.Snapshot
	Output *analysis.Output
}

// ChunkRunner runs chunks of shots. The zero value is usable and falls back
// to the wall clock and random UUIDs.
type ChunkRunner struct {
	Clock timeutil.Clock
	NewID func() uuid.UUID
}

// NewChunkRunner returns a ChunkRunner on the wall clock.
func NewChunkRunner() *ChunkRunner {
	return &ChunkRunner{Clock: timeutil.RealClock{}, NewID: uuid.New}
}

func (c *ChunkRunner) clock() timeutil.Clock {
	if c.Clock == nil {
		return timeutil.RealClock{}
	}
	return c.Clock
}

func (c *ChunkRunner) newID() uuid.UUID {
	if c.NewID == nil {
		return uuid.New()
	}
	return c.NewID()
}

// RunChunk snapshots cfg, runs ShotsPerChunk shots and analyses them as one
// batch. Cancelling ctx stops the chunk between shots and discards it.
func (c *ChunkRunner) RunChunk(ctx context.Context, runner ShotRunner, cfg *config.AnalysisConfig) (ChunkResult, error) {
	snap := cfg.Snapshot()
	groups, rois, err := analysis.Layout(snap.ROIs)
	if err != nil {
		return ChunkResult{}, err
	}

	clk := c.clock()
	res := ChunkResult{ID: c.newID(), StartedAt: clk.Now(), Config: snap}
	acc := counts.NewAccumulator(groups, rois, snap.Thresholds)
	for i := 0; i < snap.ShotsPerChunk; i++ {
		if err := ctx.Err(); err != nil {
			return ChunkResult{}, fmt.Errorf("chunk interrupted after %d shots: %w", i, err)
		}
		shot, err := runner.RunShot(ctx)
		if err != nil {
			return ChunkResult{}, fmt.Errorf("shot %d: %w", i, err)
		}
		if err := acc.Push(shot); err != nil {
			return ChunkResult{}, fmt.Errorf("shot %d: %w", i, err)
		}
	}

	out, err := analysis.AnalyseTrials(acc.Trials(), snap.Options)
	if err != nil {
		return ChunkResult{}, err
	}
	res.Shots = acc.Shots()
	res.Output = out
	res.Duration = clk.Since(res.StartedAt)
	return res, nil
}
