package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/shotstats/internal/analysis"
	"github.com/banshee-data/shotstats/internal/scan"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteScanChart renders one ROI across a scan as an HTML line chart: the
// pooled median with its lower and upper quartile bands, and each group's
// own median.
func WriteScanChart(w io.Writer, points []scan.PointResult, roi int, parameter string) error {
	if len(points) == 0 {
		return fmt.Errorf("no scan points to chart")
	}
	if points[0].Chunk.Output == nil {
		return fmt.Errorf("scan point 0 has no output")
	}
	groups := points[0].Chunk.Output.Groups
	if roi < 0 || roi >= points[0].Chunk.Output.ROIs {
		return fmt.Errorf("roi %d out of range (scan has %d)", roi, points[0].Chunk.Output.ROIs)
	}

	pooled := analysis.PooledPrefix(roi)
	xs := make([]string, len(points))
	median := make([]opts.LineData, len(points))
	lower := make([]opts.LineData, len(points))
	upper := make([]opts.LineData, len(points))
	perGroup := make([][]opts.LineData, groups)
	for g := range perGroup {
		perGroup[g] = make([]opts.LineData, len(points))
	}

	for i, pt := range points {
		out := pt.Chunk.Output
		if out == nil || out.Groups != groups || out.ROIs <= roi {
			return fmt.Errorf("scan point %d has a different shape", i)
		}
		ch := out.Channels()
		m := ch[pooled+"_p"]
		xs[i] = strconv.FormatFloat(pt.Point, 'g', 8, 64)
		median[i] = opts.LineData{Value: m}
		lower[i] = opts.LineData{Value: m - ch[pooled+"_p_lower_err"]}
		upper[i] = opts.LineData{Value: m + ch[pooled+"_p_upper_err"]}
		for g := range perGroup {
			perGroup[g][i] = opts.LineData{Value: ch[analysis.CellPrefix(g, roi)+"_p"]}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Scan " + pooled, Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: pooled + " vs " + parameter, Subtitle: fmt.Sprintf("groups=%d points=%d", groups, len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: parameter, NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "P(bright)", Min: 0, Max: 1}),
	)
	line.SetXAxis(xs).
		AddSeries(pooled+"_p", median).
		AddSeries(pooled+" lower quartile", lower, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"})).
		AddSeries(pooled+" upper quartile", upper, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	for g, data := range perGroup {
		line.AddSeries(analysis.CellPrefix(g, roi)+"_p", data, charts.WithLineStyleOpts(opts.LineStyle{Type: "dotted"}))
	}
	return line.Render(w)
}
