// Package session runs hand analysis over whole clips and live cameras.
//
// A Runner analyzes a finite source into a stored session, appending frame
// records in batches. A Live pipeline analyzes a camera continuously and
// fans the resulting records out to subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/handtrace/internal/analyzer"
	"github.com/ayusman/handtrace/internal/capture"
	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/metrics"
	"github.com/ayusman/handtrace/internal/record"
	"github.com/ayusman/handtrace/internal/store"
)

// DefaultBatchSize is the number of rows written per store transaction.
const DefaultBatchSize = 100

// ErrAlreadyRunning is returned by Start for a session that is being analyzed.
var ErrAlreadyRunning = errors.New("session is already running")

// Progress is called after every analyzed frame. total is -1 when the source
// does not report a frame count.
type Progress func(done, total int)

// Runner analyzes clips into stored sessions.
type Runner struct {
	store        *store.Store
	detector     detector.Detector
	logger       *zap.Logger
	batchSize    int
	analyzerOpts []analyzer.Option
	openSource   func(path string) capture.Source

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithBatchSize sets the number of rows per store transaction.
func WithBatchSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithAnalyzerOptions passes options to every Analyzer the Runner creates.
func WithAnalyzerOptions(opts ...analyzer.Option) RunnerOption {
	return func(r *Runner) {
		r.analyzerOpts = append(r.analyzerOpts, opts...)
	}
}

// WithSourceOpener replaces how Start turns a source path into a Source.
func WithSourceOpener(open func(path string) capture.Source) RunnerOption {
	return func(r *Runner) {
		r.openSource = open
	}
}

// NewRunner creates a Runner storing into st and detecting with d.
func NewRunner(st *store.Store, d detector.Detector, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:      st,
		detector:   d,
		logger:     zap.NewNop(),
		batchSize:  DefaultBatchSize,
		openSource: func(path string) capture.Source { return capture.NewFile(path) },
		cancels:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Analyze reads src to the end with a fresh Analyzer and stores every frame
// record under sessionID. The source is opened if needed and closed on
// return. The session ends completed, failed or canceled; the number of
// analyzed frames is returned along with the error that stopped analysis.
func (r *Runner) Analyze(ctx context.Context, src capture.Source, sessionID string, progress Progress) (int, error) {
	sessions := r.store.Sessions()
	logger := r.logger.With(zap.String("session", sessionID))

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	done, err := r.analyze(ctx, src, sessionID, progress, logger)

	status, msg := store.StatusCompleted, ""
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, msg = store.StatusCanceled, err.Error()
	case err != nil:
		status, msg = store.StatusFailed, err.Error()
	}
	metrics.SessionsTotal.WithLabelValues(string(status)).Inc()

	if serr := sessions.SetStatus(sessionID, status, done, msg); serr != nil {
		logger.Error("failed to record session status", zap.Error(serr))
		if err == nil {
			err = serr
		}
	}

	if err != nil {
		logger.Warn("analysis stopped", zap.String("status", string(status)), zap.Int("frames", done), zap.Error(err))
	} else {
		logger.Info("analysis completed", zap.Int("frames", done))
	}
	return done, err
}

func (r *Runner) analyze(ctx context.Context, src capture.Source, sessionID string, progress Progress, logger *zap.Logger) (int, error) {
	sessions := r.store.Sessions()
	records := r.store.Records()

	if !src.IsOpen() {
		if err := src.Open(); err != nil {
			return 0, fmt.Errorf("open source: %w", err)
		}
	}
	defer src.Close()

	w, h := src.Size()
	if err := sessions.SetVideoInfo(sessionID, src.FPS(), w, h); err != nil {
		return 0, fmt.Errorf("record video info: %w", err)
	}
	if err := sessions.SetStatus(sessionID, store.StatusRunning, 0, ""); err != nil {
		return 0, fmt.Errorf("mark session running: %w", err)
	}

	// Earlier runs of the same session are replaced.
	if err := records.DeleteBySession(sessionID); err != nil {
		return 0, fmt.Errorf("clear previous records: %w", err)
	}

	a := analyzer.New(r.detector, append([]analyzer.Option{analyzer.WithLogger(logger)}, r.analyzerOpts...)...)
	total := src.FrameCount()
	logger.Info("analysis started", zap.Int("frames", total), zap.Float64("fps", src.FPS()))

	batch := make([]record.Row, 0, r.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := records.Append(sessionID, batch); err != nil {
			return fmt.Errorf("store records: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	done := 0
	for {
		if err := ctx.Err(); err != nil {
			if ferr := flush(); ferr != nil {
				return done, ferr
			}
			return done, err
		}

		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return done, errors.Join(fmt.Errorf("read frame %d: %w", done, err), flush())
		}

		rec, err := a.AnalyzeFrame(frame, done)
		frame.Close()
		if err != nil {
			return done, errors.Join(err, flush())
		}

		batch = append(batch, rec.Row())
		done++

		if len(batch) >= r.batchSize {
			if err := flush(); err != nil {
				return done, err
			}
		}
		if progress != nil {
			progress(done, total)
		}
	}

	return done, flush()
}

// Start creates a session for the clip at path and analyzes it in the
// background. The analysis outlives ctx's cancellation; use Cancel or
// Shutdown to stop it.
func (r *Runner) Start(ctx context.Context, name, path string) (*store.Session, error) {
	sess := &store.Session{Name: name, Source: path}
	if err := r.store.Sessions().Create(sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := r.launch(ctx, sess.ID, r.openSource(path)); err != nil {
		return nil, err
	}
	return sess, nil
}

// Resume re-runs analysis of an existing session from its stored source.
func (r *Runner) Resume(ctx context.Context, sessionID string) error {
	sess, err := r.store.Sessions().GetByID(sessionID)
	if err != nil {
		return err
	}
	return r.launch(ctx, sess.ID, r.openSource(sess.Source))
}

func (r *Runner) launch(ctx context.Context, sessionID string, src capture.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.cancels[sessionID]; ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancels[sessionID] = cancel
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.cancels, sessionID)
			r.mu.Unlock()
			cancel()
		}()

		r.Analyze(runCtx, src, sessionID, nil)
	}()
	return nil
}

// Running reports whether sessionID is being analyzed.
func (r *Runner) Running(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[sessionID]
	return ok
}

// Cancel stops the background analysis of sessionID. It reports whether the
// session was running.
func (r *Runner) Cancel(sessionID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[sessionID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Wait blocks until every background analysis has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown cancels every background analysis and waits for them to finish
// or for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
