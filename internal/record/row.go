package record

import (
	"sort"
	"strconv"

	"github.com/ayusman/handtrace/internal/detector"
)

// KeyFrame is the row key holding the frame index.
const KeyFrame = "frame"

// Axis is a landmark coordinate component.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// Row is the flat key/value form of a FrameRecord, one row per frame.
// Keys are "frame", "{side}_{LANDMARK}_{x|y|z}" and "{side}_{stat}".
type Row map[string]string

// LandmarkKey returns the row key of one landmark coordinate.
func LandmarkKey(side Side, landmark int, axis Axis) string {
	return string(side) + "_" + detector.LandmarkNames[landmark] + "_" + string(axis)
}

// StatKey returns the row key of a stat.
func StatKey(side Side, stat string) string {
	return string(side) + "_" + stat
}

// Frame returns the frame index stored in the row.
func (r Row) Frame() (int, bool) {
	v, ok := r.Float(KeyFrame)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// Float reads a numeric cell using Coerce.
func (r Row) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return Coerce(v)
}

// Point returns the normalized x/y position of a landmark. ok is false when
// either coordinate is missing or cannot be coerced.
func (r Row) Point(side Side, landmark int) (x, y float64, ok bool) {
	x, okX := r.Float(LandmarkKey(side, landmark, AxisX))
	y, okY := r.Float(LandmarkKey(side, landmark, AxisY))
	if !okX || !okY {
		return 0, 0, false
	}
	return x, y, true
}

// Columns returns the header for a set of rows: "frame" followed by every
// other key in sorted order.
func Columns(rows []Row) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			if k != KeyFrame {
				seen[k] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(seen)+1)
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return append([]string{KeyFrame}, keys...)
}

// Rows flattens a slice of records.
func Rows(records []FrameRecord) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = rec.Row()
	}
	return rows
}

// SetFrame overwrites the frame index of the row.
func (r Row) SetFrame(frame int) {
	r[KeyFrame] = strconv.Itoa(frame)
}
