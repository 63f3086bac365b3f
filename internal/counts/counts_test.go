package counts

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name      string
		count     int
		threshold int
		want      int
	}{
		{"below", 199, 200, 0},
		{"equal_is_bright", 200, 200, 1},
		{"above", 900, 200, 1},
		{"zero_count", 0, 1, 0},
		{"zero_threshold", 0, 0, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.count, tc.threshold); got != tc.want {
				t.Errorf("Classify(%d, %d) = %d, want %d", tc.count, tc.threshold, got, tc.want)
			}
		})
	}
}

func TestClassifyTable_EndToEndScenario(t *testing.T) {
	table := CountTable{{{100, 50, 900}}}
	before := CountTable{{{100, 50, 900}}}

	got, err := ClassifyTable(table, Uniform(200))
	require.NoError(t, err)
	if diff := cmp.Diff([][][]int{{{0, 0, 1}}}, got); diff != "" {
		t.Errorf("ClassifyTable mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, table); diff != "" {
		t.Errorf("input was mutated (-want +got):\n%s", diff)
	}
}

func TestClassifyTable_Ragged(t *testing.T) {
	table := CountTable{
		{{1, 2}, {3, 4}},
		{{1, 2}, {3}},
	}
	_, err := ClassifyTable(table, Uniform(2))
	assert.True(t, errors.Is(err, ErrShapeMismatch), "got %v", err)
}

func TestAggregate(t *testing.T) {
	table := CountTable{
		{{10, 300}, {250, 0}},
		{{500, 300}, {10, 0}},
		{{0, 100}, {999, 0}},
	}
	trials, err := Aggregate(table, 2, 2, Uniform(250))
	require.NoError(t, err)

	wantN := [][]int{{3, 3}, {3, 3}}
	wantY := [][]int{{1, 2}, {2, 0}}
	if diff := cmp.Diff(wantN, trials.N); diff != "" {
		t.Errorf("N mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantY, trials.Y); diff != "" {
		t.Errorf("Y mismatch (-want +got):\n%s", diff)
	}
	for g := range trials.N {
		for r := range trials.N[g] {
			assert.LessOrEqual(t, trials.Y[g][r], trials.N[g][r])
			assert.GreaterOrEqual(t, trials.Y[g][r], 0)
		}
	}
}

func TestAggregate_EmptyBatch(t *testing.T) {
	trials, err := Aggregate(nil, 2, 3, Uniform(10))
	require.NoError(t, err)
	assert.Equal(t, 2, trials.Groups())
	assert.Equal(t, 3, trials.ROIs())
	for g := range trials.N {
		for r := range trials.N[g] {
			assert.Zero(t, trials.N[g][r])
			assert.Zero(t, trials.Y[g][r])
		}
	}
}

func TestAggregate_ShapeErrors(t *testing.T) {
	testCases := []struct {
		name  string
		table CountTable
		thr   Thresholds
	}{
		{"wrong_group_count", CountTable{{{1, 2}}}, Uniform(1)},
		{"wrong_roi_count", CountTable{{{1}, {2}}}, Uniform(1)},
		{"threshold_grid_groups", CountTable{{{1, 2}, {3, 4}}}, PerCell([][]int{{1, 1}})},
		{"threshold_grid_rois", CountTable{{{1, 2}, {3, 4}}}, PerCell([][]int{{1, 1}, {1}})},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Aggregate(tc.table, 2, 2, tc.thr)
			if !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("expected ErrShapeMismatch, got %v", err)
			}
		})
	}
}

func TestAggregate_PerCellThreshold(t *testing.T) {
	table := CountTable{{{100, 100}}, {{200, 200}}}
	trials, err := Aggregate(table, 1, 2, PerCell([][]int{{100, 150}}))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, trials.Y[0])
}

func TestAggregate_ThresholdMonotone(t *testing.T) {
	table := CountTable{
		{{5, 80}}, {{120, 300}}, {{60, 61}}, {{999, 0}}, {{150, 150}},
	}
	prev := [][]int{{len(table) + 1, len(table) + 1}}
	for thr := 0; thr <= 1000; thr += 25 {
		trials, err := Aggregate(table, 1, 2, Uniform(thr))
		require.NoError(t, err)
		for r := 0; r < 2; r++ {
			if trials.Y[0][r] > prev[0][r] {
				t.Fatalf("threshold %d increased y for roi %d: %d > %d", thr, r, trials.Y[0][r], prev[0][r])
			}
		}
		prev = trials.Y
	}
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator(1, 2, Uniform(10))
	require.NoError(t, acc.Push([][]int{{9, 10}}))
	require.NoError(t, acc.Push([][]int{{11, 3}}))

	err := acc.Push([][]int{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.Equal(t, 2, acc.Shots())

	trials := acc.Trials()
	assert.Equal(t, []int{2, 2}, trials.N[0])
	assert.Equal(t, []int{1, 1}, trials.Y[0])

	// Trials must hand out a copy.
	trials.N[0][0] = 100
	assert.Equal(t, 2, acc.Trials().N[0][0])

	acc.Reset()
	assert.Equal(t, 0, acc.Shots())
	assert.Equal(t, []int{0, 0}, acc.Trials().N[0])
}

func TestTrialsColumn(t *testing.T) {
	trials := Trials{
		N: [][]int{{5, 6}, {7, 8}},
		Y: [][]int{{1, 2}, {3, 4}},
	}
	y, n := trials.Column(1)
	assert.Equal(t, []int{2, 4}, y)
	assert.Equal(t, []int{6, 8}, n)
}

func TestPerCellCopiesGrid(t *testing.T) {
	grid := [][]int{{1, 2}}
	thr := PerCell(grid)
	grid[0][0] = 50
	assert.Equal(t, 1, thr.At(0, 0))
	assert.False(t, thr.IsUniform())
	assert.True(t, Uniform(3).IsUniform())
	assert.Equal(t, 3, Uniform(3).At(4, 4))
}
