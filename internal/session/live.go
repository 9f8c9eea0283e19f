package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/handtrace/internal/analyzer"
	"github.com/ayusman/handtrace/internal/capture"
	"github.com/ayusman/handtrace/internal/config"
	"github.com/ayusman/handtrace/internal/metrics"
	"github.com/ayusman/handtrace/internal/record"
	"github.com/ayusman/handtrace/internal/render"
)

// subscriberBuffer is the number of records queued per subscriber before new
// records are dropped for it.
const subscriberBuffer = 32

// SettingsFunc returns the visualization settings to render the next frame
// with.
type SettingsFunc func() config.Visualization

// Live analyzes a camera continuously. Every frame record is published to
// subscribers and the trail overlay of the latest frame is kept as a JPEG.
type Live struct {
	source   capture.Source
	analyzer *analyzer.Analyzer
	settings SettingsFunc
	logger   *zap.Logger
	interval time.Duration

	mu       sync.RWMutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	frame    int
	history  []record.Row
	latest   []byte
	latestAt time.Time

	subMu  sync.Mutex
	subs   map[int]chan record.FrameRecord
	nextID int
}

// NewLive creates a live pipeline reading src at fps frames per second.
func NewLive(src capture.Source, a *analyzer.Analyzer, settings SettingsFunc, fps int, logger *zap.Logger) *Live {
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Live{
		source:   src,
		analyzer: a,
		settings: settings,
		logger:   logger,
		interval: time.Second / time.Duration(fps),
		subs:     make(map[int]chan record.FrameRecord),
	}
}

// Start opens the source and begins the pipeline.
func (l *Live) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Don't start if already running
	if l.stopCh != nil {
		return nil
	}

	if err := l.source.Open(); err != nil {
		return err
	}

	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.run(l.stopCh, l.doneCh)

	l.logger.Info("live pipeline started", zap.Duration("interval", l.interval))
	return nil
}

// Stop halts the pipeline, closes the source and every subscriber channel.
func (l *Live) Stop() {
	l.mu.Lock()
	stopCh, doneCh := l.stopCh, l.doneCh
	l.stopCh, l.doneCh = nil, nil
	l.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh

	if err := l.source.Close(); err != nil {
		l.logger.Warn("error closing capture source", zap.Error(err))
	}

	l.subMu.Lock()
	for id, ch := range l.subs {
		close(ch)
		delete(l.subs, id)
		metrics.LiveSubscribers.Dec()
	}
	l.subMu.Unlock()

	l.logger.Info("live pipeline stopped")
}

// Running reports whether the pipeline is started.
func (l *Live) Running() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stopCh != nil
}

// Subscribe returns a channel receiving every new frame record and a func
// that unsubscribes. Records are dropped for subscribers that fall behind.
func (l *Live) Subscribe() (<-chan record.FrameRecord, func()) {
	ch := make(chan record.FrameRecord, subscriberBuffer)

	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subMu.Unlock()
	metrics.LiveSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subMu.Lock()
			defer l.subMu.Unlock()
			if _, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(ch)
				metrics.LiveSubscribers.Dec()
			}
		})
	}
}

// Latest returns the JPEG of the most recent trail overlay and when it was
// rendered. The slice is nil before the first frame.
func (l *Live) Latest() ([]byte, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest, l.latestAt
}

// Interval returns the time between two pipeline ticks.
func (l *Live) Interval() time.Duration {
	return l.interval
}

func (l *Live) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := l.step(); err != nil {
				l.logger.Debug("live frame skipped", zap.Error(err))
			}
		}
	}
}

// step processes a single frame.
func (l *Live) step() error {
	frame, err := l.source.ReadFrame()
	if err != nil {
		return err
	}
	defer frame.Close()

	// Frames that fail analysis still consume an index.
	l.mu.Lock()
	idx := l.frame
	l.frame++
	l.mu.Unlock()

	rec, err := l.analyzer.AnalyzeFrame(frame, idx)
	if err != nil {
		return err
	}

	cfg := l.settings()
	row := rec.Row()

	l.mu.Lock()
	l.history = append(l.history, row)
	if n := len(l.history) - cfg.TrailLength - 1; n > 0 {
		l.history = append(l.history[:0], l.history[n:]...)
	}
	history := append([]record.Row(nil), l.history...)
	l.mu.Unlock()

	l.publish(rec)

	jpeg, err := encodeTrail(*frame, history, cfg)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.latest = jpeg
	l.latestAt = time.Now()
	l.mu.Unlock()
	return nil
}

// publish fans rec out to subscribers without blocking.
func (l *Live) publish(rec record.FrameRecord) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for _, ch := range l.subs {
		select {
		case ch <- rec:
		default:
		}
	}
}

// encodeTrail renders the trail leading up to the newest row of history over
// frame and encodes it as JPEG.
func encodeTrail(frame gocv.Mat, history []record.Row, cfg config.Visualization) ([]byte, error) {
	overlay := render.New(cfg).Trail(frame, history, len(history)-1)
	defer overlay.Close()
	if overlay.Empty() {
		return nil, errors.New("empty overlay")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, overlay)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
