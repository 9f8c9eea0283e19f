package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ayusman/handtrace/internal/analyzer"
	"github.com/ayusman/handtrace/internal/capture"
	"github.com/ayusman/handtrace/internal/config"
	"github.com/ayusman/handtrace/internal/detector"
	"github.com/ayusman/handtrace/internal/server"
	"github.com/ayusman/handtrace/internal/session"
	"github.com/ayusman/handtrace/internal/store"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Configuration file")
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	webDir := fs.String("web", "", "Static files directory (default: search for ./web)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg, logger, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *webDir == "" {
		*webDir = findWebDir()
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	d, err := newDetector(cfg, logger)
	if err != nil {
		logger.Warn("MediaPipe not available, analysis will find no hands", zap.Error(err))
		d = detector.NewMockDetector()
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyzerOpts := []analyzer.Option{
		analyzer.WithLogger(logger),
		analyzer.WithMaxImageSide(cfg.Analysis.MaxImageSide),
	}

	runner := session.NewRunner(st, d,
		session.WithLogger(logger),
		session.WithBatchSize(cfg.Analysis.BatchSize),
		session.WithAnalyzerOptions(analyzerOpts...),
	)
	resumeInterrupted(ctx, st, runner, logger)

	var live *session.Live
	if cfg.Capture.Enabled {
		camera := capture.NewCamera(cfg.Capture.DeviceID)
		camera.SetFPS(cfg.Capture.FPS)

		live = session.NewLive(camera, analyzer.New(d, analyzerOpts...), storedVisualization(st, cfg.Visualization, logger), cfg.Capture.FPS, logger)
		if err := live.Start(); err != nil {
			return fmt.Errorf("failed to start live capture: %w", err)
		}
		defer live.Stop()
		logger.Info("live capture started", zap.Int("device", cfg.Capture.DeviceID), zap.Int("fps", cfg.Capture.FPS))
	}

	if *webDir != "" {
		logger.Info("serving static files", zap.String("dir", *webDir))
	}

	srv := server.New(server.Config{
		StaticDir:       *webDir,
		Store:           st,
		Runner:          runner,
		Live:            live,
		Visualization:   cfg.Visualization,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RenderRateLimit: cfg.Server.RenderRateLimit,
		Logger:          logger,
	})

	serveErr := srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background analysis did not stop in time", zap.Error(err))
	}

	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}

// resumeInterrupted restarts analysis of sessions left pending or running by
// a previous process.
func resumeInterrupted(ctx context.Context, st *store.Store, runner *session.Runner, logger *zap.Logger) {
	sessions, err := st.Sessions().List()
	if err != nil {
		logger.Error("failed to list sessions", zap.Error(err))
		return
	}
	for _, sess := range sessions {
		if sess.Status.Done() {
			continue
		}
		logger.Info("resuming interrupted session", zap.String("session", sess.ID), zap.String("source", sess.Source))
		if err := runner.Resume(ctx, sess.ID); err != nil {
			logger.Warn("failed to resume session", zap.String("session", sess.ID), zap.Error(err))
		}
	}
}

// storedVisualization returns the settings saved through the API, falling back
// to the configured ones.
func storedVisualization(st *store.Store, fallback config.Visualization, logger *zap.Logger) session.SettingsFunc {
	return func() config.Visualization {
		v, err := st.Settings().Visualization(fallback)
		if err != nil {
			logger.Warn("failed to load visualization settings", zap.Error(err))
			return fallback
		}
		return v
	}
}
