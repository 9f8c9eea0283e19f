package render

import (
	"image/color"

	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/record"
)

// Finger groups used to pick a marker color.
const (
	fingerThumb = iota
	fingerIndex
	fingerMiddle
	fingerRing
	fingerPinky
	numFingers
)

type palette [numFingers]color.RGBA

var leftPalette = palette{
	{R: 0, G: 0, B: 255, A: 255},   // thumb, blue
	{R: 0, G: 255, B: 0, A: 255},   // index, green
	{R: 255, G: 255, B: 0, A: 255}, // middle, yellow
	{R: 255, G: 128, B: 0, A: 255}, // ring, orange
	{R: 255, G: 0, B: 0, A: 255},   // pinky, red
}

var rightPalette = palette{
	{R: 255, G: 0, B: 255, A: 255}, // thumb, magenta
	{R: 128, G: 0, B: 255, A: 255}, // index, violet
	{R: 255, G: 0, B: 128, A: 255}, // middle, pink
	{R: 0, G: 128, B: 255, A: 255}, // ring, light blue
	{R: 0, G: 255, B: 128, A: 255}, // pinky, spring green
}

func paletteFor(side record.Side) *palette {
	if side == record.Left {
		return &leftPalette
	}
	return &rightPalette
}

// fingerGroup maps a landmark index to its finger. The wrist counts as thumb.
func fingerGroup(landmark int) int {
	switch {
	case landmark <= detector.ThumbTip:
		return fingerThumb
	case landmark <= detector.IndexTip:
		return fingerIndex
	case landmark <= detector.MiddleTip:
		return fingerMiddle
	case landmark <= detector.RingTip:
		return fingerRing
	default:
		return fingerPinky
	}
}

// scaled multiplies the color channels by k in [0, 1].
func scaled(c color.RGBA, k float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * k),
		G: uint8(float64(c.G) * k),
		B: uint8(float64(c.B) * k),
		A: 255,
	}
}
