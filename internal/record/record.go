// Package record defines the per-frame hand statistics record and its flat
// row representation used for persistence and rendering.
package record

import (
	"strconv"

	"github.com/ayusman/handtrace/internal/detector"
)

// Side identifies a hand after mirror correction.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Sides lists both hand sides in key order.
var Sides = [2]Side{Left, Right}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Left {
		return Right
	}
	return Left
}

// Movement labels.
const (
	LabelUnknown = "unknown"
	LabelSlow    = "slow"
	LabelMedium  = "medium"
	LabelFast    = "fast"
)

// DirectionNone is reported when the hand center did not move enough to have
// a compass direction.
const DirectionNone = "Not moving"

// Stat key suffixes, in the order they are emitted.
const (
	StatSpeed                 = "speed"
	StatDistance              = "distance"
	StatDirectionChanges      = "direction_changes"
	StatDuration              = "duration"
	StatBoundingBoxSize       = "bounding_box_size"
	StatConfidence            = "confidence"
	StatConvexHullArea        = "convex_hull_area"
	StatMovementLabel         = "movement_label"
	StatThumbIndexDistance    = "thumb_index_distance"
	StatThumbIndexMiddleAngle = "thumb_index_middle_angle"
	StatVelocity              = "velocity"
	StatMovementDirection     = "movement_direction"
)

// StatNames lists every stat key suffix.
var StatNames = []string{
	StatSpeed,
	StatDistance,
	StatDirectionChanges,
	StatDuration,
	StatBoundingBoxSize,
	StatConfidence,
	StatConvexHullArea,
	StatMovementLabel,
	StatThumbIndexDistance,
	StatThumbIndexMiddleAngle,
	StatVelocity,
	StatMovementDirection,
}

// HandStats holds the derived statistics for one hand in one frame.
type HandStats struct {
	Speed                 float64 `json:"speed"`
	Distance              float64 `json:"distance"`
	DirectionChanges      int     `json:"direction_changes"`
	Duration              float64 `json:"duration"`
	BoundingBoxSize       float64 `json:"bounding_box_size"`
	Confidence            float64 `json:"confidence"`
	ConvexHullArea        float64 `json:"convex_hull_area"`
	MovementLabel         string  `json:"movement_label"`
	ThumbIndexDistance    float64 `json:"thumb_index_distance"`
	ThumbIndexMiddleAngle float64 `json:"thumb_index_middle_angle"`
	Velocity              float64 `json:"velocity"`
	MovementDirection     string  `json:"movement_direction"`
}

// BaselineStats returns the stats reported for an undetected hand.
func BaselineStats() HandStats {
	return HandStats{
		MovementLabel:     LabelUnknown,
		MovementDirection: DirectionNone,
	}
}

// HandRecord is one side of a FrameRecord.
type HandRecord struct {
	Detected  bool                                    `json:"detected"`
	Landmarks [detector.NumLandmarks]detector.Point3D `json:"landmarks"`
	Stats     HandStats                               `json:"stats"`
}

// Baseline returns the record emitted for an undetected hand.
func Baseline() HandRecord {
	return HandRecord{Stats: BaselineStats()}
}

// FrameRecord is the analyzer output for one frame.
type FrameRecord struct {
	Frame int        `json:"frame"`
	Left  HandRecord `json:"left"`
	Right HandRecord `json:"right"`
}

// New returns a record for frame with both hands at baseline.
func New(frame int) FrameRecord {
	return FrameRecord{Frame: frame, Left: Baseline(), Right: Baseline()}
}

// Hand returns the record for side.
func (r *FrameRecord) Hand(side Side) *HandRecord {
	if side == Left {
		return &r.Left
	}
	return &r.Right
}

// Mirror swaps the left and right hands. Applying it twice is the identity.
func (r FrameRecord) Mirror() FrameRecord {
	r.Left, r.Right = r.Right, r.Left
	return r
}

// Row flattens the record into its key/value form. Landmark coordinates of an
// undetected hand are left blank so renderers skip them.
func (r FrameRecord) Row() Row {
	row := make(Row, 1+len(Sides)*(detector.NumLandmarks*3+len(StatNames)))
	row[KeyFrame] = strconv.Itoa(r.Frame)

	for _, side := range Sides {
		h := r.Hand(side)
		for i, p := range h.Landmarks {
			x, y, z := "", "", ""
			if h.Detected {
				x, y, z = formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z)
			}
			row[LandmarkKey(side, i, AxisX)] = x
			row[LandmarkKey(side, i, AxisY)] = y
			row[LandmarkKey(side, i, AxisZ)] = z
		}

		s := h.Stats
		row[StatKey(side, StatSpeed)] = formatFloat(s.Speed)
		row[StatKey(side, StatDistance)] = formatFloat(s.Distance)
		row[StatKey(side, StatDirectionChanges)] = strconv.Itoa(s.DirectionChanges)
		row[StatKey(side, StatDuration)] = formatFloat(s.Duration)
		row[StatKey(side, StatBoundingBoxSize)] = formatFloat(s.BoundingBoxSize)
		row[StatKey(side, StatConfidence)] = formatFloat(s.Confidence)
		row[StatKey(side, StatConvexHullArea)] = formatFloat(s.ConvexHullArea)
		row[StatKey(side, StatMovementLabel)] = s.MovementLabel
		row[StatKey(side, StatThumbIndexDistance)] = formatFloat(s.ThumbIndexDistance)
		row[StatKey(side, StatThumbIndexMiddleAngle)] = formatFloat(s.ThumbIndexMiddleAngle)
		row[StatKey(side, StatVelocity)] = formatFloat(s.Velocity)
		row[StatKey(side, StatMovementDirection)] = s.MovementDirection
	}

	return row
}

// FromRow rebuilds a FrameRecord from a row. Values are read with Coerce, so
// blank or malformed cells become zero. A side counts as detected when any of
// its landmark coordinates is present.
func FromRow(row Row) FrameRecord {
	frame, _ := row.Frame()
	r := New(frame)

	for _, side := range Sides {
		h := r.Hand(side)
		for i := range h.Landmarks {
			x, okX := row.Float(LandmarkKey(side, i, AxisX))
			y, okY := row.Float(LandmarkKey(side, i, AxisY))
			z, _ := row.Float(LandmarkKey(side, i, AxisZ))
			if okX || okY {
				h.Detected = true
			}
			h.Landmarks[i] = detector.Point3D{X: x, Y: y, Z: z}
		}

		s := &h.Stats
		s.Speed, _ = row.Float(StatKey(side, StatSpeed))
		s.Distance, _ = row.Float(StatKey(side, StatDistance))
		changes, _ := row.Float(StatKey(side, StatDirectionChanges))
		s.DirectionChanges = int(changes)
		s.Duration, _ = row.Float(StatKey(side, StatDuration))
		s.BoundingBoxSize, _ = row.Float(StatKey(side, StatBoundingBoxSize))
		s.Confidence, _ = row.Float(StatKey(side, StatConfidence))
		s.ConvexHullArea, _ = row.Float(StatKey(side, StatConvexHullArea))
		s.ThumbIndexDistance, _ = row.Float(StatKey(side, StatThumbIndexDistance))
		s.ThumbIndexMiddleAngle, _ = row.Float(StatKey(side, StatThumbIndexMiddleAngle))
		s.Velocity, _ = row.Float(StatKey(side, StatVelocity))
		if v := row[StatKey(side, StatMovementLabel)]; v != "" {
			s.MovementLabel = v
		}
		if v := row[StatKey(side, StatMovementDirection)]; v != "" {
			s.MovementDirection = v
		}
	}

	return r
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
