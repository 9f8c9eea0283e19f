package record

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handtrace/internal/detector"
)

func sampleRecord() FrameRecord {
	rec := New(7)
	rec.Left.Detected = true
	for i := range rec.Left.Landmarks {
		rec.Left.Landmarks[i] = detector.Point3D{X: 0.1 + float64(i)*0.01, Y: 0.5, Z: -0.02}
	}
	rec.Left.Stats = HandStats{
		Speed:             0.25,
		Distance:          0.5,
		DirectionChanges:  3,
		Duration:          2,
		Confidence:        0.9,
		MovementLabel:     LabelFast,
		Velocity:          3,
		MovementDirection: "Right",
	}
	return rec
}

func TestFrameRecord_Mirror(t *testing.T) {
	rec := sampleRecord()

	t.Run("swaps sides", func(t *testing.T) {
		m := rec.Mirror()
		assert.Equal(t, rec.Left, m.Right)
		assert.Equal(t, rec.Right, m.Left)
		assert.Equal(t, rec.Frame, m.Frame)
	})

	t.Run("is an involution", func(t *testing.T) {
		if diff := cmp.Diff(rec, rec.Mirror().Mirror()); diff != "" {
			t.Errorf("Mirror twice mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFrameRecord_Row(t *testing.T) {
	row := sampleRecord().Row()

	t.Run("key schema", func(t *testing.T) {
		assert.Equal(t, "7", row["frame"])
		assert.Equal(t, "0.1", row["left_WRIST_x"])
		assert.Equal(t, "0.5", row["left_PINKY_TIP_y"])
		assert.Equal(t, "-0.02", row["left_INDEX_FINGER_TIP_z"])
		assert.Equal(t, "3", row["left_direction_changes"])
		assert.Equal(t, "fast", row["left_movement_label"])
		assert.Equal(t, "Right", row["left_movement_direction"])
		assert.Equal(t, "3", row["left_velocity"])

		// 1 frame key + 2 sides * (63 coordinates + 12 stats)
		assert.Len(t, row, 1+2*(63+12))
	})

	t.Run("undetected side has blank coordinates and baseline stats", func(t *testing.T) {
		assert.Equal(t, "", row["right_WRIST_x"])
		assert.Equal(t, "unknown", row["right_movement_label"])
		assert.Equal(t, "Not moving", row["right_movement_direction"])
		assert.Equal(t, "0", row["right_speed"])

		_, _, ok := row.Point(Right, detector.Wrist)
		assert.False(t, ok)
	})

	t.Run("FromRow restores the record", func(t *testing.T) {
		want := sampleRecord()
		got := FromRow(row)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("FromRow mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"0.5", 0.5, true},
		{"-0.125", -0.125, true},
		{"0.51.3", 0.51, true},
		{"1.5.7.9", 1.5, true},
		{" 0.25 ", 0.25, true},
		{"1", 1, true},
		{"0", 0, true},
		{"1e-05", 0.00001, true},
		{"2.5e-3", 0.0025, true},
		{"", 0, false},
		{"abc", 0, false},
		{"0.5abc", 0, false},
		{"NaN", 0, false},
		{"inf", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Coerce(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}

func TestRow_Point(t *testing.T) {
	row := Row{
		"left_WRIST_x":     "0.25",
		"left_WRIST_y":     "0.75.1",
		"left_THUMB_CMC_x": "garbage",
		"left_THUMB_CMC_y": "0.1",
	}

	x, y, ok := row.Point(Left, detector.Wrist)
	require.True(t, ok)
	assert.Equal(t, 0.25, x)
	assert.Equal(t, 0.75, y)

	_, _, ok = row.Point(Left, detector.ThumbCMC)
	assert.False(t, ok)

	_, _, ok = row.Point(Left, detector.PinkyTip)
	assert.False(t, ok)
}

func TestColumns(t *testing.T) {
	rows := []Row{
		{"frame": "0", "right_speed": "0", "left_speed": "1"},
		{"frame": "1", "left_velocity": "2"},
	}

	assert.Equal(t, []string{"frame", "left_speed", "left_velocity", "right_speed"}, Columns(rows))
	assert.Equal(t, []string{"frame"}, Columns(nil))
}

func TestCSVRoundTrip(t *testing.T) {
	rows := Rows([]FrameRecord{sampleRecord(), New(8)})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.True(t, strings.HasPrefix(header, "frame,left_"), "header starts with frame: %s", header)

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("CSV mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
