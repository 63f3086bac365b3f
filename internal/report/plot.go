package report

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/shotstats/internal/fsutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var groupColors = []color.Color{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	color.RGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

var modelStyles = map[string]struct {
	color  color.Color
	dashes []vg.Length
	width  vg.Length
}{
	"constant p":             {color.Black, nil, vg.Points(2)},
	"moment matched":         {color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}, nil, vg.Points(2)},
	"moment matched + drift": {color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}, []vg.Length{vg.Points(6), vg.Points(3)}, vg.Points(2)},
	"mixture":                {color.Gray{Y: 0x60}, []vg.Length{vg.Points(2), vg.Points(2)}, vg.Points(1.5)},
}

// PosteriorPlot lays out every curve of c on one set of axes, with a
// vertical marker at the mixture median.
func PosteriorPlot(c *Comparison, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "P(bright)"
	p.Y.Label.Text = "Density"
	p.X.Min, p.X.Max = 0, 1

	for i, curve := range c.Curves() {
		pts := make(plotter.XYs, len(c.Grid))
		for j, x := range c.Grid {
			pts[j] = plotter.XY{X: x, Y: curve.Density[j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", curve.Name, err)
		}
		if style, ok := modelStyles[curve.Name]; ok {
			line.Color = style.color
			line.Dashes = style.dashes
			line.Width = style.width
		} else {
			line.Color = groupColors[i%len(groupColors)]
			line.Width = vg.Points(1)
		}
		p.Add(line)
		p.Legend.Add(curve.Name, line)
	}

	marker, err := plotter.NewLine(plotter.XYs{
		{X: c.MixtureMedian, Y: 0},
		{X: c.MixtureMedian, Y: floats.Max(c.Mixture)},
	})
	if err != nil {
		return nil, err
	}
	marker.Color = color.Gray{Y: 0x60}
	marker.Dashes = []vg.Length{vg.Points(1), vg.Points(3)}
	p.Add(marker)
	p.Legend.Add(fmt.Sprintf("mixture median %.4f", c.MixtureMedian), marker)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.Legend.ThumbnailWidth = vg.Points(24)
	return p, nil
}

// WritePosteriorPlot renders c to path. The image format follows the file
// extension (png, svg, pdf, ...).
func WritePosteriorPlot(fsys fsutil.FileSystem, path string, c *Comparison, title string) error {
	p, err := PosteriorPlot(c, title)
	if err != nil {
		return err
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return fsutil.WriteWith(fsys, path, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
}
