package scan

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"sync"
)

// MemorySink keeps every pushed batch in order.
type MemorySink struct {
	mu     sync.Mutex
	points []PointResult
}

// Push records the batch.
func (m *MemorySink) Push(point float64, res ChunkResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, PointResult{Point: point, Chunk: res})
	return nil
}

// Points returns a copy of what has been pushed.
func (m *MemorySink) Points() []PointResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.points)
}

// CSVSink writes one row per batch: the point, the batch ID, then every
// channel in name order. The columns are fixed by the first batch.
type CSVSink struct {
	w       *csv.Writer
	columns []string
}

// NewCSVSink returns a sink writing to w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// Push writes the header on the first call and a row on every call.
func (c *CSVSink) Push(point float64, res ChunkResult) error {
	if res.Output == nil {
		return fmt.Errorf("batch %s has no output", res.ID)
	}
	ch := res.Output.Channels()
	if c.columns == nil {
		c.columns = slices.Sorted(maps.Keys(ch))
		if err := c.w.Write(append([]string{"point", "batch_id"}, c.columns...)); err != nil {
			return err
		}
	} else if len(ch) != len(c.columns) {
		return fmt.Errorf("batch %s has %d channels, header has %d", res.ID, len(ch), len(c.columns))
	}

	row := make([]string, 0, len(c.columns)+2)
	row = append(row, strconv.FormatFloat(point, 'g', -1, 64), res.ID.String())
	for _, name := range c.columns {
		v, ok := ch[name]
		if !ok {
			return fmt.Errorf("batch %s is missing channel %s", res.ID, name)
		}
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	}
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}
