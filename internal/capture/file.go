package capture

import (
	"fmt"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// File plays back a video file frame by frame.
type File struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	fps     float64
	frames  int
	width   int
	height  int
}

var _ Seeker = (*File)(nil)

// NewFile creates a File source for the video at path.
func NewFile(path string) *File {
	return &File{path: path, frames: -1}
}

// Path returns the video path.
func (f *File) Path() string {
	return f.path
}

// Open opens the video and reads its properties.
func (f *File) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.capture != nil {
		return nil
	}

	capture, err := gocv.VideoCaptureFile(f.path)
	if err != nil {
		return fmt.Errorf("open video %s: %w", f.path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open video %s: unsupported or missing file", f.path)
	}

	f.capture = capture
	f.fps = capture.Get(gocv.VideoCaptureFPS)
	f.width = int(capture.Get(gocv.VideoCaptureFrameWidth))
	f.height = int(capture.Get(gocv.VideoCaptureFrameHeight))
	f.frames = int(capture.Get(gocv.VideoCaptureFrameCount))
	if f.frames <= 0 {
		f.frames = -1
	}

	return nil
}

// Close releases the video.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.capture == nil {
		return nil
	}

	err := f.capture.Close()
	f.capture = nil
	return err
}

// ReadFrame returns the next frame, or io.EOF at the end of the video.
func (f *File) ReadFrame() (*gocv.Mat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.read()
}

// ReadFrameAt seeks to index and returns that frame.
func (f *File) ReadFrameAt(index int) (*gocv.Mat, error) {
	if index < 0 {
		return nil, fmt.Errorf("frame index %d out of range", index)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.capture == nil {
		return nil, ErrNotOpen
	}
	f.capture.Set(gocv.VideoCapturePosFrames, float64(index))

	mat, err := f.read()
	if err == io.EOF {
		return nil, fmt.Errorf("frame index %d out of range", index)
	}
	return mat, err
}

func (f *File) read() (*gocv.Mat, error) {
	if f.capture == nil {
		return nil, ErrNotOpen
	}

	mat := gocv.NewMat()
	if ok := f.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, io.EOF
	}

	return &mat, nil
}

// FPS returns the video frame rate reported by the container.
func (f *File) FPS() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fps
}

// FrameCount returns the number of frames reported by the container.
func (f *File) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.frames
}

// Size returns the frame dimensions.
func (f *File) Size() (width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.width, f.height
}

// IsOpen reports whether the video is open.
func (f *File) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.capture != nil
}
