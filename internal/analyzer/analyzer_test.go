package analyzer

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/record"
)

// handAt returns an open palm labelled raw, translated so its wrist sits at (x, y).
func handAt(raw string, x, y float64) detector.HandLandmarks {
	palm := detector.OpenPalmLandmarks()
	palm.Handedness = raw
	wrist := palm.Points[detector.Wrist]
	return palm.Translate(x-wrist.X, y-wrist.Y)
}

func analyzeSequence(a *Analyzer, frames [][]detector.HandLandmarks) []record.FrameRecord {
	out := make([]record.FrameRecord, len(frames))
	for i, hands := range frames {
		out[i] = a.AnalyzeHands(hands, i)
	}
	return out
}

func TestAnalyzeHands_MirrorCorrection(t *testing.T) {
	a := New(detector.NewMockDetector())

	rec := a.AnalyzeHands([]detector.HandLandmarks{handAt(detector.HandLeft, 0.3, 0.5)}, 0)

	assert.True(t, rec.Right.Detected, "raw Left label is reported as the right hand")
	assert.False(t, rec.Left.Detected)
	assert.Equal(t, 0.3, rec.Right.Landmarks[detector.Wrist].X)
	assert.Equal(t, record.BaselineStats(), rec.Left.Stats)
}

func TestAnalyzeHands_SteadyHand(t *testing.T) {
	a := New(detector.NewMockDetector())
	hand := handAt(detector.HandRight, 0.4, 0.6)

	var rec record.FrameRecord
	for i := 0; i < 5; i++ {
		rec = a.AnalyzeHands([]detector.HandLandmarks{hand}, i)
	}

	s := rec.Left.Stats
	assert.Equal(t, 0.0, s.Velocity)
	assert.Equal(t, 0.0, s.Distance)
	assert.Equal(t, 0, s.DirectionChanges)
	assert.Equal(t, record.DirectionNone, s.MovementDirection)
	assert.Equal(t, record.LabelSlow, s.MovementLabel)
	assert.InDelta(t, 4.0/30, s.Duration, 1e-12)
	assert.Equal(t, 0.0, s.Speed)
}

func TestAnalyzeHands_MoveRight(t *testing.T) {
	a := New(detector.NewMockDetector())

	a.AnalyzeHands([]detector.HandLandmarks{handAt(detector.HandRight, 0.10, 0.50)}, 0)
	rec := a.AnalyzeHands([]detector.HandLandmarks{handAt(detector.HandRight, 0.20, 0.50)}, 1)

	s := rec.Left.Stats
	assert.Equal(t, "Right", s.MovementDirection)
	assert.InDelta(t, 3.0, s.Velocity, 1e-9)
	assert.InDelta(t, 0.1, s.Distance, 1e-12)
	assert.InDelta(t, 1.0/30, s.Duration, 1e-12)
	assert.InDelta(t, 3.0, s.Speed, 1e-9)
	assert.Equal(t, record.LabelFast, s.MovementLabel)
}

func TestAnalyzeHands_DirectionChanges(t *testing.T) {
	a := New(detector.NewMockDetector())
	xs := []float64{0.1, 0.2, 0.3, 0.2, 0.1, 0.1}

	frames := make([][]detector.HandLandmarks, len(xs))
	for i, x := range xs {
		frames[i] = []detector.HandLandmarks{handAt(detector.HandRight, x, 0.5)}
	}
	recs := analyzeSequence(a, frames)

	var counts []int
	for _, rec := range recs {
		counts = append(counts, rec.Left.Stats.DirectionChanges)
	}
	// turns back at frame 3, then stops (angle 0) at frame 5
	assert.Equal(t, []int{0, 0, 0, 1, 1, 2}, counts)

	for i := 1; i < len(counts); i++ {
		assert.GreaterOrEqual(t, counts[i], counts[i-1], "direction changes never decrease while tracked")
	}
}

func TestAnalyzeHands_ResetOnMissedDetection(t *testing.T) {
	a := New(detector.NewMockDetector())
	frames := [][]detector.HandLandmarks{
		{handAt(detector.HandRight, 0.1, 0.5)},
		{handAt(detector.HandRight, 0.2, 0.5)},
		{handAt(detector.HandRight, 0.3, 0.5)},
		nil,
		{handAt(detector.HandRight, 0.4, 0.5)},
		{handAt(detector.HandRight, 0.5, 0.5)},
	}
	recs := analyzeSequence(a, frames)

	t.Run("gap frame is baseline", func(t *testing.T) {
		gap := recs[3].Left
		assert.False(t, gap.Detected)
		assert.Equal(t, record.BaselineStats(), gap.Stats)
		assert.Equal(t, record.LabelUnknown, gap.Stats.MovementLabel)
		assert.Equal(t, record.DirectionNone, gap.Stats.MovementDirection)
	})

	t.Run("state restarts after the gap", func(t *testing.T) {
		first := recs[4].Left.Stats
		assert.Equal(t, 0.0, first.Duration)
		assert.Equal(t, 0.0, first.Distance)
		assert.Equal(t, 0.0, first.Velocity)
		assert.Equal(t, 0, first.DirectionChanges)

		second := recs[5].Left.Stats
		assert.InDelta(t, 1.0/30, second.Duration, 1e-12)
		assert.InDelta(t, 0.1, second.Distance, 1e-12)
	})

	t.Run("before the gap distance accumulates", func(t *testing.T) {
		assert.InDelta(t, 0.2, recs[2].Left.Stats.Distance, 1e-12)
		assert.InDelta(t, 2.0/30, recs[2].Left.Stats.Duration, 1e-12)
	})
}

func TestAnalyzeHands_SidesAreIndependent(t *testing.T) {
	a := New(detector.NewMockDetector())
	a.AnalyzeHands([]detector.HandLandmarks{
		handAt(detector.HandLeft, 0.2, 0.5),
		handAt(detector.HandRight, 0.6, 0.5),
	}, 0)

	// only the raw Right hand moves; the raw Left hand disappears
	rec := a.AnalyzeHands([]detector.HandLandmarks{handAt(detector.HandRight, 0.7, 0.5)}, 1)

	assert.False(t, rec.Right.Detected)
	assert.True(t, rec.Left.Detected)
	assert.InDelta(t, 0.1, rec.Left.Stats.Distance, 1e-12)
}

func TestAnalyzeHands_DuplicateLabel(t *testing.T) {
	a := New(detector.NewMockDetector())
	weak := handAt(detector.HandRight, 0.2, 0.5)
	weak.Score = 0.4
	strong := handAt(detector.HandRight, 0.7, 0.5)
	strong.Score = 0.8

	rec := a.AnalyzeHands([]detector.HandLandmarks{weak, strong}, 0)

	assert.Equal(t, 0.7, rec.Left.Landmarks[detector.Wrist].X)
	assert.Equal(t, 0.8, rec.Left.Stats.Confidence)
	assert.False(t, rec.Right.Detected)
}

func TestAnalyzeHands_Confidence(t *testing.T) {
	a := New(detector.NewMockDetector())
	hand := handAt(detector.HandRight, 0.5, 0.5)
	hand.Score = 0

	rec := a.AnalyzeHands([]detector.HandLandmarks{hand}, 0)
	assert.Equal(t, 1.0, rec.Left.Stats.Confidence)
}

func TestAnalyzeHands_ShapeStats(t *testing.T) {
	a := New(detector.NewMockDetector())
	hand := handAt(detector.HandRight, 0.5, 0.8)

	rec := a.AnalyzeHands([]detector.HandLandmarks{hand}, 0)
	s := rec.Left.Stats

	minX, maxX, minY, maxY := math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	for _, p := range hand.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	assert.InDelta(t, (maxX-minX)*(maxY-minY), s.BoundingBoxSize, 1e-12)
	assert.Greater(t, s.ConvexHullArea, 0.0)
	assert.LessOrEqual(t, s.ConvexHullArea, s.BoundingBoxSize)
	assert.Greater(t, s.ThumbIndexDistance, 0.0)
}

func TestAnalyzeHands_CollapsedHand(t *testing.T) {
	a := New(detector.NewMockDetector())
	rec := a.AnalyzeHands([]detector.HandLandmarks{detector.CollapsedLandmarks(0.5, 0.5, detector.HandLeft)}, 0)

	s := rec.Right.Stats
	assert.Equal(t, 0.0, s.BoundingBoxSize)
	assert.Equal(t, 0.0, s.ConvexHullArea)
	assert.Equal(t, 0.0, s.ThumbIndexDistance)
	assert.Equal(t, 0.0, s.ThumbIndexMiddleAngle)
}

func TestReset(t *testing.T) {
	a := New(detector.NewMockDetector())
	a.AnalyzeHands([]detector.HandLandmarks{handAt(detector.HandRight, 0.1, 0.5)}, 0)
	a.Reset()

	rec := a.AnalyzeHands([]detector.HandLandmarks{handAt(detector.HandRight, 0.3, 0.5)}, 1)
	assert.Equal(t, 0.0, rec.Left.Stats.Distance)
	assert.Equal(t, 0.0, rec.Left.Stats.Duration)
}

// sizeDetector records the size of every frame it receives.
type sizeDetector struct {
	sizes []image.Point
	err   error
}

func (d *sizeDetector) Detect(frame *gocv.Mat) ([]detector.HandLandmarks, error) {
	d.sizes = append(d.sizes, image.Pt(frame.Cols(), frame.Rows()))
	if d.err != nil {
		return nil, d.err
	}
	return []detector.HandLandmarks{handAt(detector.HandRight, 0.5, 0.5)}, nil
}

func (d *sizeDetector) Close() error { return nil }

func TestAnalyzeFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping gocv test in short mode")
	}

	t.Run("downscales large frames", func(t *testing.T) {
		d := &sizeDetector{}
		a := New(d)

		frame := gocv.NewMatWithSize(1440, 2560, gocv.MatTypeCV8UC3)
		defer frame.Close()

		rec, err := a.AnalyzeFrame(&frame, 0)
		require.NoError(t, err)
		assert.True(t, rec.Left.Detected)
		require.Len(t, d.sizes, 1)
		assert.Equal(t, image.Pt(1280, 720), d.sizes[0])
	})

	t.Run("small frames pass through", func(t *testing.T) {
		d := &sizeDetector{}
		a := New(d)

		frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		defer frame.Close()

		_, err := a.AnalyzeFrame(&frame, 0)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(640, 480), d.sizes[0])
	})

	t.Run("detector error keeps state", func(t *testing.T) {
		d := &sizeDetector{}
		a := New(d)

		frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		defer frame.Close()

		_, err := a.AnalyzeFrame(&frame, 0)
		require.NoError(t, err)

		d.err = errors.New("service down")
		_, err = a.AnalyzeFrame(&frame, 1)
		assert.ErrorIs(t, err, d.err)

		d.err = nil
		rec, err := a.AnalyzeFrame(&frame, 2)
		require.NoError(t, err)
		assert.InDelta(t, 2.0/30, rec.Left.Stats.Duration, 1e-12, "failed frame must not reset the hand")
	})
}
