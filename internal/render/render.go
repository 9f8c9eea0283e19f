// Package render draws motion trail and heatmap overlays from analyzed
// frame records.
//
// Renderers never fail: records with missing, malformed or out-of-frame
// coordinates are skipped point by point. Returned Mats are owned by the
// caller and must be closed.
package render

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/handtrace/internal/config"
	"github.com/ayusman/handtrace/internal/record"
)

// Renderer draws overlays using a fixed set of visualization settings.
type Renderer struct {
	cfg config.Visualization
}

// New returns a Renderer. cfg is expected to be valid.
func New(cfg config.Visualization) *Renderer {
	return &Renderer{cfg: cfg}
}

// Config returns the renderer's settings.
func (r *Renderer) Config() config.Visualization {
	return r.cfg
}

// baseCanvas returns a copy of frame, or a black image of the same size and
// type when black is set.
func baseCanvas(frame gocv.Mat, black bool) gocv.Mat {
	if black {
		return gocv.Zeros(frame.Rows(), frame.Cols(), frame.Type())
	}
	return frame.Clone()
}

// pixel denormalizes a landmark of row into the pixel grid of a w×h image.
func pixel(row record.Row, side record.Side, landmark, w, h int) (image.Point, bool) {
	x, y, ok := row.Point(side, landmark)
	if !ok {
		return image.Point{}, false
	}
	px, py := int(x*float64(w)), int(y*float64(h))
	if px < 0 || px >= w || py < 0 || py >= h {
		return image.Point{}, false
	}
	return image.Pt(px, py), true
}

// clampRange limits [start, end] (inclusive) to the indices of a slice of
// length n. ok is false when nothing remains.
func clampRange(start, end, n int) (lo, hi int, ok bool) {
	lo = max(start, 0)
	hi = min(end, n-1)
	return lo, hi, lo <= hi
}
