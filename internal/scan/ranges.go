package scan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxPoints caps the length of a generated scan.
const maxPoints = 10000

// GenerateRange returns start, start+step, ... up to and including end.
// Points are computed from their index so long ranges do not accumulate
// rounding error.
func GenerateRange(start, end, step float64) ([]float64, error) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("step must be positive and finite, got %g", step)
	}
	if start > end {
		return nil, fmt.Errorf("start %g is after end %g", start, end)
	}
	count := math.Floor((end-start)/step+1e-9) + 1
	if count > maxPoints {
		return nil, fmt.Errorf("range %g..%g step %g has %.0f points (max %d)", start, end, step, count, maxPoints)
	}
	out := make([]float64, int(count))
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out, nil
}

// ParseCSVFloat64s parses a comma-separated list of float64 values.
// Returns nil, nil for empty input strings.
func ParseCSVFloat64s(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseCSVInts parses a comma-separated list of int values.
// Returns nil, nil for empty input strings.
func ParseCSVInts(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int '%s': %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
