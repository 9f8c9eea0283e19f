// Package capture provides frame sources backed by GoCV (OpenCV): live
// cameras, video files and in-memory playback for tests.
package capture

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrNotOpen is returned when trying to read from a source that is not open.
var ErrNotOpen = errors.New("capture source is not open")

// Source produces BGR frames. ReadFrame returns io.EOF once a finite source is
// exhausted. The caller is responsible for closing returned Mats.
type Source interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	FPS() float64
	// FrameCount is the total number of frames, or -1 when unknown.
	FrameCount() int
	Size() (width, height int)
	IsOpen() bool
}

// Seeker is a Source with random frame access.
type Seeker interface {
	Source
	ReadFrameAt(index int) (*gocv.Mat, error)
}

// Camera manages video capture from a camera device.
type Camera struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
}

var _ Source = (*Camera)(nil)

// NewCamera creates a new Camera with the given device ID.
func NewCamera(deviceID int) *Camera {
	return &Camera{
		deviceID: deviceID,
		fps:      DefaultFPS,
	}
}

// Open opens the camera for capturing frames.
// It sets the resolution to 640x480 for performance.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases resources.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame from the camera.
func (c *Camera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// SetFPS sets the frames per second for capture.
// Values less than or equal to 0 are ignored.
func (c *Camera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the configured capture rate.
func (c *Camera) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return float64(c.fps)
}

// FrameCount is always -1 for a live device.
func (c *Camera) FrameCount() int { return -1 }

// Size returns the requested capture resolution.
func (c *Camera) Size() (width, height int) {
	return DefaultWidth, DefaultHeight
}

// IsOpen returns true if the camera is currently open and running.
func (c *Camera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
