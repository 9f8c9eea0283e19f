package render

import (
	"image"
	"image/color"

	"github.com/prometheus/client_golang/prometheus"
	"gocv.io/x/gocv"

	"github.com/ayusman/handtrace/internal/config"
	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/metrics"
	"github.com/ayusman/handtrace/internal/record"
)

// OpenCV colormaps gocv does not name.
const (
	colormapMagma   gocv.ColormapTypes = 13
	colormapInferno gocv.ColormapTypes = 14
	colormapPlasma  gocv.ColormapTypes = 15
	colormapViridis gocv.ColormapTypes = 16
)

var colormaps = map[config.Colormap]gocv.ColormapTypes{
	config.ColormapJet:     gocv.ColormapJet,
	config.ColormapHot:     gocv.ColormapHot,
	config.ColormapRainbow: gocv.ColormapRainbow,
	config.ColormapOcean:   gocv.ColormapOcean,
	config.ColormapViridis: colormapViridis,
	config.ColormapPlasma:  colormapPlasma,
	config.ColormapMagma:   colormapMagma,
	config.ColormapInferno: colormapInferno,
}

func colormapFor(name config.Colormap) gocv.ColormapTypes {
	if cm, ok := colormaps[name]; ok {
		return cm
	}
	return gocv.ColormapJet
}

type heatmapRange struct {
	start, end int
	set        bool
}

// HeatmapOption adjusts a single Heatmap call.
type HeatmapOption func(*heatmapRange)

// WithRange restricts the heatmap to records start..end inclusive.
func WithRange(start, end int) HeatmapOption {
	return func(r *heatmapRange) {
		r.start, r.end, r.set = start, end, true
	}
}

// Heatmap stamps a disk of heatmap_radius at every landmark of the selected
// records, blurs and normalizes the density, maps it through the configured
// colormap and blends it over the base canvas where landmarks were stamped.
//
// The records used are 0..current when heatmap_accumulate is set and only
// current otherwise, unless WithRange is given. With no valid landmark in
// range the base canvas is returned unchanged.
func (r *Renderer) Heatmap(frame gocv.Mat, history []record.Row, current int, opts ...HeatmapOption) gocv.Mat {
	timer := prometheus.NewTimer(metrics.RenderDuration.WithLabelValues("heatmap"))
	defer timer.ObserveDuration()

	if frame.Empty() {
		return gocv.NewMat()
	}

	rng := heatmapRange{start: current, end: current}
	if r.cfg.HeatmapAccumulate {
		rng.start = 0
	}
	for _, opt := range opts {
		opt(&rng)
	}

	base := baseCanvas(frame, r.cfg.HeatmapBlackBackground)

	lo, hi, ok := clampRange(rng.start, rng.end, len(history))
	if !ok {
		return base
	}

	w, h := frame.Cols(), frame.Rows()
	stamps := gocv.Zeros(h, w, gocv.MatTypeCV8UC1)
	defer stamps.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for _, row := range history[lo : hi+1] {
		for _, side := range record.Sides {
			for lm := 0; lm < detector.NumLandmarks; lm++ {
				if pt, ok := pixel(row, side, lm, w, h); ok {
					gocv.Circle(&stamps, pt, r.cfg.HeatmapRadius, white, -1)
				}
			}
		}
	}

	if gocv.CountNonZero(stamps) == 0 {
		return base
	}
	defer base.Close()

	k := 2*r.cfg.HeatmapBlur + 1
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(stamps, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	density := gocv.NewMat()
	defer density.Close()
	gocv.Normalize(blurred, &density, 0, 255, gocv.NormMinMax)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(density, &colored, colormapFor(r.cfg.HeatmapColormap))

	blended := gocv.NewMat()
	defer blended.Close()
	gocv.AddWeighted(colored, r.cfg.HeatmapOpacity, base, 1-r.cfg.HeatmapOpacity, 0, &blended)

	out := base.Clone()
	blended.CopyToWithMask(&out, stamps)
	return out
}
