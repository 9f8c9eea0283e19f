// Package server provides the HTTP API for browsing analysis sessions,
// rendering overlays and following the live pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ayusman/handtrace/internal/capture"
	"github.com/ayusman/handtrace/internal/config"
	"github.com/ayusman/handtrace/internal/session"
	"github.com/ayusman/handtrace/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Runner    *session.Runner
	Live      *session.Live

	// Visualization is used for fields missing from stored settings.
	Visualization config.Visualization

	AllowedOrigins []string
	// RenderRateLimit is the number of render requests per minute per
	// client. Zero disables limiting.
	RenderRateLimit int

	// OpenVideo opens the source of a session for frame access. Defaults to
	// capture.NewFile.
	OpenVideo func(path string) capture.Seeker

	Logger *zap.Logger
}

// Server represents the HTTP server for the handtrace API.
type Server struct {
	config Config
	router chi.Router
	logger *zap.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.OpenVideo == nil {
		cfg.OpenVideo = func(path string) capture.Seeker { return capture.NewFile(path) }
	}
	if cfg.Visualization == (config.Visualization{}) {
		cfg.Visualization = config.DefaultVisualization()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		logger: cfg.Logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)
	if len(s.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.config.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Register session routes if Store is configured
	if s.config.Store != nil {
		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Post("/", s.createSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Post("/cancel", s.cancelSession)
				r.Get("/summary", s.sessionSummary)
				r.Get("/records", s.listRecords)
				r.Get("/records.csv", s.recordsCSV)

				r.Group(func(r chi.Router) {
					r.Use(s.renderLimiter())
					r.Get("/frames/{frame}/trail.jpg", s.trailImage)
					r.Get("/heatmap.jpg", s.heatmapImage)
					r.Get("/chart", s.chartHTML)
					r.Get("/chart.png", s.chartPNG)
				})
			})
		})

		r.Get("/api/settings/visualization", s.getVisualization)
		r.Put("/api/settings/visualization", s.putVisualization)
	}

	// Register live endpoints if a live pipeline is configured
	if s.config.Live != nil {
		r.Get("/api/live", s.liveRecords)
		r.Get("/api/live/stream", s.liveStream)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// renderLimiter limits the image and chart endpoints per client IP.
func (s *Server) renderLimiter() func(http.Handler) http.Handler {
	if s.config.RenderRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.config.RenderRateLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "render rate limit exceeded")
		}),
	)
}

// requestLogger logs every request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
		"live":   s.config.Live != nil && s.config.Live.Running(),
	}
	writeJSON(w, http.StatusOK, response)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
