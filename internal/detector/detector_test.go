package detector

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const epsilon = 1e-9

func TestLandmarkNames(t *testing.T) {
	t.Run("names are unique and upper case", func(t *testing.T) {
		seen := make(map[string]bool)
		for i, name := range LandmarkNames {
			if name == "" {
				t.Fatalf("landmark %d has no name", i)
			}
			if seen[name] {
				t.Errorf("duplicate landmark name %q", name)
			}
			seen[name] = true
		}
	})

	t.Run("indices match names", func(t *testing.T) {
		cases := map[int]string{
			Wrist:     "WRIST",
			ThumbTip:  "THUMB_TIP",
			IndexTip:  "INDEX_FINGER_TIP",
			MiddleTip: "MIDDLE_FINGER_TIP",
			RingMCP:   "RING_FINGER_MCP",
			PinkyTip:  "PINKY_TIP",
		}
		for idx, want := range cases {
			assert.Equal(t, want, LandmarkNames[idx])
		}
	})
}

func TestHandLandmarks_Center(t *testing.T) {
	hand := CollapsedLandmarks(0.25, 0.75, HandLeft)
	x, y := hand.Center()
	if math.Abs(x-0.25) > epsilon || math.Abs(y-0.75) > epsilon {
		t.Errorf("Center() = (%f, %f), want (0.25, 0.75)", x, y)
	}
}

func TestHandLandmarks_Translate(t *testing.T) {
	hand := OpenPalmLandmarks()
	moved := hand.Translate(0.1, -0.2)

	for i := 0; i < NumLandmarks; i++ {
		assert.InDelta(t, hand.Points[i].X+0.1, moved.Points[i].X, epsilon)
		assert.InDelta(t, hand.Points[i].Y-0.2, moved.Points[i].Y, epsilon)
		assert.Equal(t, hand.Points[i].Z, moved.Points[i].Z)
	}

	// original untouched
	assert.Equal(t, 0.5, hand.Points[Wrist].X)
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		m := NewMockDetector()
		hands, err := m.Detect(nil)
		require.NoError(t, err)
		assert.Empty(t, hands)
	})

	t.Run("returns configured hands", func(t *testing.T) {
		m := NewMockDetector()
		m.SetHands([]HandLandmarks{OpenPalmLandmarks()})

		for i := 0; i < 3; i++ {
			hands, err := m.Detect(nil)
			require.NoError(t, err)
			require.Len(t, hands, 1)
			assert.Equal(t, HandRight, hands[0].Handedness)
		}
		assert.Equal(t, 3, m.Calls())
	})

	t.Run("plays back a sequence", func(t *testing.T) {
		m := NewMockDetector()
		palm := OpenPalmLandmarks()
		m.SetSequence([][]HandLandmarks{{palm}, nil, {palm, palm}})

		counts := []int{1, 0, 2, 0}
		for i, want := range counts {
			hands, err := m.Detect(nil)
			require.NoError(t, err)
			assert.Len(t, hands, want, "call %d", i)
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		m := NewMockDetector()
		wantErr := errors.New("detection failed")
		m.SetError(wantErr)

		hands, err := m.Detect(nil)
		assert.ErrorIs(t, err, wantErr)
		assert.Nil(t, hands)
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*BreakerDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestOpenPalmLandmarks(t *testing.T) {
	palm := OpenPalmLandmarks()

	t.Run("fingertips above wrist", func(t *testing.T) {
		for _, tip := range []int{IndexTip, MiddleTip, RingTip, PinkyTip} {
			if palm.Points[tip].Y >= palm.Points[Wrist].Y {
				t.Errorf("tip %s should be above wrist", LandmarkNames[tip])
			}
		}
	})

	t.Run("thumb is extended to the side", func(t *testing.T) {
		assert.Greater(t, palm.Points[ThumbTip].X, palm.Points[IndexMCP].X)
	})
}

func TestBreakerDetector(t *testing.T) {
	t.Run("passes results through", func(t *testing.T) {
		inner := NewMockDetector()
		inner.SetHands([]HandLandmarks{OpenPalmLandmarks()})
		b := NewBreakerDetector(inner, DefaultBreakerConfig(), zap.NewNop())

		hands, err := b.Detect(nil)
		require.NoError(t, err)
		assert.Len(t, hands, 1)
		assert.Equal(t, gobreaker.StateClosed, b.State())
	})

	t.Run("opens after consecutive failures", func(t *testing.T) {
		inner := NewMockDetector()
		inner.SetError(errors.New("service crashed"))
		b := NewBreakerDetector(inner, BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}, nil)

		_, err := b.Detect(nil)
		require.Error(t, err)
		_, err = b.Detect(nil)
		require.Error(t, err)

		_, err = b.Detect(nil)
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, gobreaker.StateOpen, b.State())
		assert.Equal(t, 2, inner.Calls(), "open breaker must not reach the detector")
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Script = "/nonexistent/landmark_service.py"

	_, err := NewMediaPipeDetector(cfg, nil)
	assert.Error(t, err)
}
