package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ayusman/handtrace/internal/record"
)

// WriteHTML renders one line chart per stat, DefaultStats when none are
// given, as a single HTML page. Frames where a hand was not detected are
// gaps in its line.
func WriteHTML(w io.Writer, title string, rows []record.Row, stats ...string) error {
	if len(stats) == 0 {
		stats = DefaultStats
	}

	frames := make([]string, 0, len(rows))
	index := make(map[float64]int, len(rows))
	for _, row := range rows {
		f, ok := row.Frame()
		if !ok {
			continue
		}
		index[float64(f)] = len(frames)
		frames = append(frames, strconv.Itoa(f))
	}

	page := components.NewPage()

	series := Collect(rows, stats...)
	for _, st := range stats {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
			charts.WithTitleOpts(opts.Title{Title: st, Subtitle: fmt.Sprintf("%s frames=%d", title, len(frames))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
			charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
		)
		line.SetXAxis(frames)

		for _, s := range series {
			if s.Stat != st {
				continue
			}
			data := make([]opts.LineData, len(frames))
			for i := range data {
				data[i] = opts.LineData{Value: "-"}
			}
			for i, f := range s.Frames {
				if j, ok := index[f]; ok {
					data[j] = opts.LineData{Value: s.Values[i]}
				}
			}
			line.AddSeries(string(s.Side), data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
		}

		page.AddCharts(line)
	}

	return page.Render(w)
}
