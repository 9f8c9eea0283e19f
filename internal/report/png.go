package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ayusman/handtrace/internal/record"
)

var sideColors = map[record.Side]color.RGBA{
	record.Left:  {R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	record.Right: {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
}

// WritePNG plots stat for both hands against the frame index and writes the
// chart to w as PNG.
func WritePNG(w io.Writer, rows []record.Row, stat string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Hand %s", stat)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = stat

	for _, s := range Collect(rows, stat) {
		if len(s.Frames) == 0 {
			continue
		}

		pts := make(plotter.XYs, len(s.Frames))
		for i := range s.Frames {
			pts[i] = plotter.XY{X: s.Frames[i], Y: s.Values[i]}
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = sideColors[s.Side]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(string(s.Side), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
