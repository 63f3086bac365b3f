package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/shotstats/internal/config"
	"github.com/banshee-data/shotstats/internal/monitoring"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a Scan.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// PointResult pairs a scan point with the batch analysed there.
type PointResult struct {
	Point float64
	Chunk ChunkResult
}

// Sink receives each batch as soon as it is analysed.
type Sink interface {
	Push(point float64, res ChunkResult) error
}

// Scan sweeps one float parameter, running one chunk per point.
type Scan struct {
	ID        uuid.UUID
	Parameter string
	Points    []float64

	// Configure applies a point before its chunk runs, e.g. by retuning the
	// drive frequency of a simulator.
	Configure func(ctx context.Context, value float64) error

	Runner ShotRunner
	Config *config.AnalysisConfig
	Chunks *ChunkRunner
	Sinks  []Sink

	// Settle is waited out after Configure and before the chunk.
	Settle time.Duration

	status Status
}

var logf = monitoring.Prefixed("scan")

// Status reports where the scan is in its lifecycle.
func (s *Scan) Status() Status {
	if s.status == "" {
		return StatusIdle
	}
	return s.status
}

// Run executes the scan. It stops at the first error, returning the points
// completed so far alongside it; every returned point has reached every sink.
func (s *Scan) Run(ctx context.Context) ([]PointResult, error) {
	if s.Runner == nil {
		return nil, errors.New("scan has no shot runner")
	}
	if s.Config == nil {
		return nil, errors.New("scan has no analysis config")
	}
	if len(s.Points) == 0 {
		return nil, errors.New("scan has no points")
	}
	chunks := s.Chunks
	if chunks == nil {
		chunks = NewChunkRunner()
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	s.status = StatusRunning
	logf("scan %s: %d points of %s", s.ID, len(s.Points), s.Parameter)

	results := make([]PointResult, 0, len(s.Points))
	for i, v := range s.Points {
		if err := s.runPoint(ctx, chunks, v, &results); err != nil {
			s.status = StatusError
			return results, fmt.Errorf("point %d (%s=%g): %w", i, s.Parameter, v, err)
		}
	}
	s.status = StatusComplete
	logf("scan %s complete", s.ID)
	return results, nil
}

func (s *Scan) runPoint(ctx context.Context, chunks *ChunkRunner, v float64, results *[]PointResult) error {
	if s.Configure != nil {
		if err := s.Configure(ctx, v); err != nil {
			return fmt.Errorf("configure: %w", err)
		}
	}
	if s.Settle > 0 {
		chunks.clock().Sleep(s.Settle)
	}
	res, err := chunks.RunChunk(ctx, s.Runner, s.Config)
	if err != nil {
		return err
	}
	for _, sink := range s.Sinks {
		if err := sink.Push(v, res); err != nil {
			return fmt.Errorf("sink: %w", err)
		}
	}
	*results = append(*results, PointResult{Point: v, Chunk: res})
	logf("%s=%g: batch %s, %d shots in %s", s.Parameter, v, res.ID, res.Shots, res.Duration)
	return nil
}
