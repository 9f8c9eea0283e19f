package capture

import (
	"fmt"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back in-memory frames for testing.
type MockSource struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	fps     float64
	mu      sync.Mutex
	running bool
}

var _ Seeker = (*MockSource)(nil)

// NewMockSource creates a source over frames. With loop set it restarts from
// the first frame instead of returning io.EOF.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
		fps:    30,
	}
}

// SetFPS overrides the reported frame rate.
func (m *MockSource) SetFPS(fps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fps = fps
}

func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.index = 0
	return nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockSource) ReadFrame() (*gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, ErrNotOpen
	}

	if len(m.frames) == 0 {
		return nil, io.EOF
	}

	if m.index >= len(m.frames) {
		if !m.loop {
			return nil, io.EOF
		}
		m.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := m.frames[m.index].Clone()
	m.index++

	return &frame, nil
}

func (m *MockSource) ReadFrameAt(index int) (*gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, ErrNotOpen
	}
	if index < 0 || index >= len(m.frames) {
		return nil, fmt.Errorf("frame index %d out of range", index)
	}

	frame := m.frames[index].Clone()
	m.index = index + 1
	return &frame, nil
}

func (m *MockSource) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}

func (m *MockSource) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loop {
		return -1
	}
	return len(m.frames)
}

func (m *MockSource) Size() (width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return 0, 0
	}
	return m.frames[0].Cols(), m.frames[0].Rows()
}

func (m *MockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
