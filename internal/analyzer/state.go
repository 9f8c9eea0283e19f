package analyzer

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/record"
)

// handState is the running state of one tracked hand. The zero value is the
// empty state of a hand that is not currently tracked.
type handState struct {
	tracking         bool
	startTime        float64
	lastXY           r2.Vec
	prevCenter       r2.Vec
	hasAngle         bool
	lastAngle        float64
	distance         float64
	directionChanges int
}

func (s *handState) reset() {
	*s = handState{}
}

// update folds one detection at time t (seconds) into the state and returns
// the stats for this frame.
func (s *handState) update(hand *detector.HandLandmarks, t float64) record.HandStats {
	wrist := xy(hand.Points[detector.Wrist])
	cx, cy := hand.Center()
	center := r2.Vec{X: cx, Y: cy}

	first := !s.tracking
	if first {
		s.tracking = true
		s.startTime = t
		s.lastXY = wrist
		s.prevCenter = center
	}

	delta := r2.Sub(wrist, s.lastXY)
	step := r2.Norm(delta)
	s.distance += step

	if !first {
		angle := math.Atan2(delta.Y, delta.X)
		if s.hasAngle && math.Abs(angle-s.lastAngle) > directionChangeThreshold {
			s.directionChanges++
		}
		s.lastAngle = angle
		s.hasAngle = true
	}

	duration := t - s.startTime
	speed := 0.0
	if duration > 0 {
		speed = s.distance / duration
	}

	velocity := step / FrameInterval
	direction := compassDirection(r2.Sub(center, s.prevCenter))

	s.lastXY = wrist
	s.prevCenter = center

	confidence := hand.Score
	if confidence <= 0 || math.IsNaN(confidence) {
		confidence = 1.0
	}

	return record.HandStats{
		Speed:                 speed,
		Distance:              s.distance,
		DirectionChanges:      s.directionChanges,
		Duration:              duration,
		BoundingBoxSize:       boundingBoxSize(&hand.Points),
		Confidence:            confidence,
		ConvexHullArea:        convexHullArea(&hand.Points),
		MovementLabel:         movementLabel(velocity),
		ThumbIndexDistance:    thumbIndexDistance(&hand.Points),
		ThumbIndexMiddleAngle: thumbIndexMiddleAngle(&hand.Points),
		Velocity:              velocity,
		MovementDirection:     direction,
	}
}
