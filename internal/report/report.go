// Package report turns stored frame records into per-hand time series,
// summary tables and charts.
package report

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/record"
)

// DefaultStats are the stats charted when none are requested.
var DefaultStats = []string{
	record.StatVelocity,
	record.StatSpeed,
	record.StatDistance,
	record.StatDirectionChanges,
}

// Series is one stat of one hand over the frames where that hand was
// detected.
type Series struct {
	Side   record.Side
	Stat   string
	Frames []float64
	Values []float64
}

// Name returns the row key the series was read from.
func (s Series) Name() string {
	return record.StatKey(s.Side, s.Stat)
}

// Collect extracts a Series per side for every stat, DefaultStats when none
// are given. Rows of frames where a hand was not detected, and cells that do
// not coerce to a number, are left out.
func Collect(rows []record.Row, stats ...string) []Series {
	if len(stats) == 0 {
		stats = DefaultStats
	}

	out := make([]Series, 0, len(stats)*len(record.Sides))
	for _, st := range stats {
		for _, side := range record.Sides {
			s := Series{Side: side, Stat: st}
			for _, row := range rows {
				if !detected(row, side) {
					continue
				}
				frame, ok := row.Frame()
				if !ok {
					continue
				}
				v, ok := row.Float(record.StatKey(side, st))
				if !ok {
					continue
				}
				s.Frames = append(s.Frames, float64(frame))
				s.Values = append(s.Values, v)
			}
			out = append(out, s)
		}
	}
	return out
}

// Summary aggregates the motion of one hand over a clip.
type Summary struct {
	Side             record.Side `json:"side"`
	DetectedFrames   int         `json:"detected_frames"`
	MaxVelocity      float64     `json:"max_velocity"`
	MeanVelocity     float64     `json:"mean_velocity"`
	MaxDistance      float64     `json:"max_distance"`
	TotalDistance    float64     `json:"total_distance"`
	DirectionChanges int         `json:"direction_changes"`
	MeanConfidence   float64     `json:"mean_confidence"`
}

// Summarize returns a Summary per side. Distance and direction changes are
// running values that reset when a hand is lost, so totals add up the final
// value of every detection run. MaxDistance is the longest single run.
func Summarize(rows []record.Row) []Summary {
	series := Collect(rows, record.StatVelocity, record.StatDistance, record.StatDirectionChanges, record.StatConfidence)
	bySide := make(map[record.Side]map[string][]float64, len(record.Sides))
	frames := make(map[record.Side]map[string][]float64, len(record.Sides))
	for _, s := range series {
		if bySide[s.Side] == nil {
			bySide[s.Side] = make(map[string][]float64)
			frames[s.Side] = make(map[string][]float64)
		}
		bySide[s.Side][s.Stat] = s.Values
		frames[s.Side][s.Stat] = s.Frames
	}

	out := make([]Summary, 0, len(record.Sides))
	for _, side := range record.Sides {
		vals := bySide[side]
		sum := Summary{Side: side, DetectedFrames: len(vals[record.StatVelocity])}
		if v := vals[record.StatVelocity]; len(v) > 0 {
			sum.MaxVelocity = floats.Max(v)
			sum.MeanVelocity = stat.Mean(v, nil)
		}
		if v := vals[record.StatDistance]; len(v) > 0 {
			sum.MaxDistance = floats.Max(v)
			sum.TotalDistance = runTotal(frames[side][record.StatDistance], v)
		}
		if v := vals[record.StatDirectionChanges]; len(v) > 0 {
			sum.DirectionChanges = int(runTotal(frames[side][record.StatDirectionChanges], v))
		}
		if v := vals[record.StatConfidence]; len(v) > 0 {
			sum.MeanConfidence = stat.Mean(v, nil)
		}
		out = append(out, sum)
	}
	return out
}

// runTotal sums the largest value of each run of consecutive frames. A run
// also ends where the value drops.
func runTotal(frames, values []float64) float64 {
	var total, runMax float64
	for i, v := range values {
		if i > 0 && (frames[i] != frames[i-1]+1 || v < values[i-1]) {
			total += runMax
			runMax = 0
		}
		runMax = max(runMax, v)
	}
	return total + runMax
}

// detected reports whether row carries coordinates for side.
func detected(row record.Row, side record.Side) bool {
	_, _, ok := row.Point(side, detector.Wrist)
	return ok
}
