package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"gocv.io/x/gocv"

	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/metrics"
	"github.com/ayusman/handtrace/internal/record"
)

// Trail draws the landmarks of the trail_length records preceding current
// (current itself excluded) as filled markers colored by hand and finger.
// With alpha_fade older records are drawn dimmer. The marker layer is blended
// over the base canvas with the configured opacity.
func (r *Renderer) Trail(frame gocv.Mat, history []record.Row, current int) gocv.Mat {
	timer := prometheus.NewTimer(metrics.RenderDuration.WithLabelValues("trail"))
	defer timer.ObserveDuration()

	if frame.Empty() {
		return gocv.NewMat()
	}

	base := baseCanvas(frame, r.cfg.BlackBackground)

	window := trailWindow(history, current, r.cfg.TrailLength)
	if len(window) == 0 {
		return base
	}
	defer base.Close()

	markers := base.Clone()
	defer markers.Close()

	w, h := frame.Cols(), frame.Rows()
	for i, row := range window {
		intensity := r.cfg.Alpha
		if r.cfg.AlphaFade {
			intensity *= float64(i+1) / float64(len(window))
		}

		for _, side := range record.Sides {
			colors := paletteFor(side)
			for lm := 0; lm < detector.NumLandmarks; lm++ {
				pt, ok := pixel(row, side, lm, w, h)
				if !ok {
					continue
				}
				gocv.Circle(&markers, pt, r.cfg.LandmarkSize, scaled(colors[fingerGroup(lm)], intensity), -1)
			}
		}
	}

	out := gocv.NewMat()
	gocv.AddWeighted(markers, r.cfg.Opacity, base, 1-r.cfg.Opacity, 0, &out)
	return out
}

// trailWindow returns history[max(0, current-length) : current], with current
// clamped to the history length.
func trailWindow(history []record.Row, current, length int) []record.Row {
	end := min(current, len(history))
	start := max(0, current-length)
	if start >= end {
		return nil
	}
	return history[start:end]
}
