package analyzer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/record"
)

// Movement thresholds.
const (
	fastVelocity   = 0.1
	mediumVelocity = 0.05

	// Hand-center displacement below this on both axes has no direction.
	directionDeadZone = 0.01

	// Direction changes sharper than this are counted.
	directionChangeThreshold = math.Pi / 4
)

// compassPoints is indexed by 45° sector, counter-clockwise from +x in image
// coordinates (y grows downward).
var compassPoints = [8]string{
	"Right",
	"Down-Right",
	"Down",
	"Down-Left",
	"Left",
	"Up-Left",
	"Up",
	"Up-Right",
}

func xy(p detector.Point3D) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

func xyz(p detector.Point3D) r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

// boundingBoxSize is the area of the axis-aligned rectangle around all landmarks.
func boundingBoxSize(points *[detector.NumLandmarks]detector.Point3D) float64 {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	area := (floats.Max(xs) - floats.Min(xs)) * (floats.Max(ys) - floats.Min(ys))
	if math.IsNaN(area) || area < 0 {
		return 0
	}
	return area
}

// convexHullArea returns the area of the 2D convex hull of the landmarks.
// Fewer than three distinct points, collinear input, or any failure yield 0.
func convexHullArea(points *[detector.NumLandmarks]detector.Point3D) (area float64) {
	defer func() {
		if recover() != nil {
			area = 0
		}
	}()

	seen := make(map[r2.Vec]struct{}, len(points))
	unique := make([]r2.Vec, 0, len(points))
	for _, p := range points {
		v := xy(p)
		if math.IsNaN(v.X) || math.IsNaN(v.Y) {
			return 0
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		unique = append(unique, v)
	}
	if len(unique) < 3 {
		return 0
	}

	hull := monotoneChain(unique)
	if len(hull) < 3 {
		return 0
	}

	// shoelace
	var sum float64
	for i := range hull {
		sum += r2.Cross(hull[i], hull[(i+1)%len(hull)])
	}
	area = math.Abs(sum) / 2
	if math.IsNaN(area) || math.IsInf(area, 0) {
		return 0
	}
	return area
}

// monotoneChain returns the hull vertices in counter-clockwise order without
// collinear points. pts is sorted in place.
func monotoneChain(pts []r2.Vec) []r2.Vec {
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	turn := func(o, a, b r2.Vec) float64 {
		return r2.Cross(r2.Sub(a, o), r2.Sub(b, o))
	}

	hull := make([]r2.Vec, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

// thumbIndexDistance is the 3D distance between the thumb and index fingertips.
func thumbIndexDistance(points *[detector.NumLandmarks]detector.Point3D) float64 {
	return r3.Norm(r3.Sub(xyz(points[detector.ThumbTip]), xyz(points[detector.IndexTip])))
}

// thumbIndexMiddleAngle is the signed angle in degrees at the index fingertip
// between the directions to the thumb tip and to the middle fingertip.
func thumbIndexMiddleAngle(points *[detector.NumLandmarks]detector.Point3D) float64 {
	index := xy(points[detector.IndexTip])
	toThumb := r2.Sub(xy(points[detector.ThumbTip]), index)
	toMiddle := r2.Sub(xy(points[detector.MiddleTip]), index)

	angle := math.Atan2(r2.Cross(toThumb, toMiddle), r2.Dot(toThumb, toMiddle))
	if math.IsNaN(angle) {
		return 0
	}
	return angle * 180 / math.Pi
}

// compassDirection maps a displacement to one of eight compass points.
func compassDirection(d r2.Vec) string {
	if math.Abs(d.X) < directionDeadZone && math.Abs(d.Y) < directionDeadZone {
		return record.DirectionNone
	}
	sector := int(math.Round(math.Atan2(d.Y, d.X)/(math.Pi/4))) % 8
	if sector < 0 {
		sector += 8
	}
	return compassPoints[sector]
}

func movementLabel(velocity float64) string {
	switch {
	case velocity > fastVelocity:
		return record.LabelFast
	case velocity > mediumVelocity:
		return record.LabelMedium
	default:
		return record.LabelSlow
	}
}
