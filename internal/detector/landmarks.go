// Package detector provides hand landmark detection interfaces and types.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// LandmarkNames holds the canonical upper-case name of every landmark, indexed
// by landmark index. These names are part of the flat record key schema.
var LandmarkNames = [NumLandmarks]string{
	"WRIST",
	"THUMB_CMC",
	"THUMB_MCP",
	"THUMB_IP",
	"THUMB_TIP",
	"INDEX_FINGER_MCP",
	"INDEX_FINGER_PIP",
	"INDEX_FINGER_DIP",
	"INDEX_FINGER_TIP",
	"MIDDLE_FINGER_MCP",
	"MIDDLE_FINGER_PIP",
	"MIDDLE_FINGER_DIP",
	"MIDDLE_FINGER_TIP",
	"RING_FINGER_MCP",
	"RING_FINGER_PIP",
	"RING_FINGER_DIP",
	"RING_FINGER_TIP",
	"PINKY_MCP",
	"PINKY_PIP",
	"PINKY_DIP",
	"PINKY_TIP",
}

// Handedness labels reported by the detector. They describe the hand as seen
// in the (unmirrored) image, so they are swapped before records are emitted.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// Point3D represents a landmark position in normalized image coordinates.
// X and Y are fractions of the frame width and height; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Center returns the mean x/y position of all landmarks.
func (h *HandLandmarks) Center() (x, y float64) {
	for _, p := range h.Points {
		x += p.X
		y += p.Y
	}
	return x / NumLandmarks, y / NumLandmarks
}

// Translate returns a copy of the hand with every landmark shifted by (dx, dy).
func (h HandLandmarks) Translate(dx, dy float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
	}
	return h
}
