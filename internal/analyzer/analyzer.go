// Package analyzer turns per-frame hand detections into running motion and
// shape statistics.
//
// An Analyzer keeps one running state per hand. A hand that is missing from a
// frame has its state discarded, so a single dropped detection restarts its
// duration, distance and direction-change count.
//
// An Analyzer is not safe for concurrent use.
package analyzer

import (
	"fmt"
	"image"
	"strings"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/metrics"
	"github.com/ayusman/handtrace/internal/record"
)

const (
	// FrameRate is the nominal frame rate used to turn frame indices into time.
	FrameRate = 30.0
	// FrameInterval is the time between two consecutive frames in seconds.
	FrameInterval = 1 / FrameRate
	// DefaultMaxImageSide is the largest frame dimension passed to the detector.
	DefaultMaxImageSide = 1280
)

// Analyzer computes per-hand statistics frame by frame.
type Analyzer struct {
	detector     detector.Detector
	logger       *zap.Logger
	maxImageSide int
	states       map[record.Side]*handState
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithMaxImageSide sets the frame size above which frames are downscaled
// before detection. Values <= 0 disable downscaling.
func WithMaxImageSide(side int) Option {
	return func(a *Analyzer) {
		a.maxImageSide = side
	}
}

// New creates an Analyzer backed by d.
func New(d detector.Detector, opts ...Option) *Analyzer {
	a := &Analyzer{
		detector:     d,
		logger:       zap.NewNop(),
		maxImageSide: DefaultMaxImageSide,
		states: map[record.Side]*handState{
			record.Left:  {},
			record.Right: {},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeFrame detects hands in frame and returns the record for frameIndex.
// When the detector fails the error is returned and the running state is
// left untouched.
func (a *Analyzer) AnalyzeFrame(frame *gocv.Mat, frameIndex int) (record.FrameRecord, error) {
	input := frame
	if scaled, ok := a.downscale(frame); ok {
		defer scaled.Close()
		input = &scaled
	}

	hands, err := a.detector.Detect(input)
	if err != nil {
		metrics.DetectorErrorsTotal.Inc()
		return record.FrameRecord{}, fmt.Errorf("detect hands in frame %d: %w", frameIndex, err)
	}

	return a.AnalyzeHands(hands, frameIndex), nil
}

// AnalyzeHands updates the running state with already detected hands and
// returns the record for frameIndex. Handedness labels are taken as reported
// by the detector; the returned record is mirror corrected.
func (a *Analyzer) AnalyzeHands(hands []detector.HandLandmarks, frameIndex int) record.FrameRecord {
	t := float64(frameIndex) / FrameRate
	detected := a.bySide(hands)

	rec := record.New(frameIndex)
	for _, side := range record.Sides {
		state := a.states[side]
		hand, ok := detected[side]
		if !ok {
			if state.tracking {
				metrics.HandResetsTotal.WithLabelValues(string(side.Opposite())).Inc()
				a.logger.Debug("hand lost, running state reset",
					zap.String("side", string(side.Opposite())),
					zap.Int("frame", frameIndex),
				)
			}
			state.reset()
			continue
		}

		h := rec.Hand(side)
		h.Detected = true
		h.Landmarks = hand.Points
		h.Stats = state.update(&hand, t)

		metrics.HandsDetectedTotal.WithLabelValues(string(side.Opposite())).Inc()
	}

	metrics.FramesAnalyzedTotal.Inc()

	return rec.Mirror()
}

// Reset discards the running state of both hands.
func (a *Analyzer) Reset() {
	for _, s := range a.states {
		s.reset()
	}
}

// bySide keys detections by their raw label. When the detector reports the
// same label twice the higher-scoring hand wins; unknown labels are dropped.
func (a *Analyzer) bySide(hands []detector.HandLandmarks) map[record.Side]detector.HandLandmarks {
	out := make(map[record.Side]detector.HandLandmarks, 2)
	for _, h := range hands {
		var side record.Side
		switch strings.ToLower(strings.TrimSpace(h.Handedness)) {
		case "left":
			side = record.Left
		case "right":
			side = record.Right
		default:
			a.logger.Debug("dropping hand with unknown handedness", zap.String("handedness", h.Handedness))
			continue
		}
		if prev, ok := out[side]; ok && prev.Score >= h.Score {
			continue
		}
		out[side] = h
	}
	return out
}

// downscale shrinks frames whose larger side exceeds maxImageSide, keeping the
// aspect ratio. ok is false when frame is used as is.
func (a *Analyzer) downscale(frame *gocv.Mat) (gocv.Mat, bool) {
	if a.maxImageSide <= 0 || frame == nil || frame.Empty() {
		return gocv.Mat{}, false
	}

	rows, cols := frame.Rows(), frame.Cols()
	longest := max(rows, cols)
	if longest <= a.maxImageSide {
		return gocv.Mat{}, false
	}

	scale := float64(a.maxImageSide) / float64(longest)
	size := image.Pt(max(1, int(float64(cols)*scale)), max(1, int(float64(rows)*scale)))

	scaled := gocv.NewMat()
	gocv.Resize(*frame, &scaled, size, 0, 0, gocv.InterpolationArea)
	return scaled, true
}
