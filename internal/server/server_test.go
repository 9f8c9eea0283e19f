package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handtrace/internal/config"
	"github.com/ayusman/handtrace/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var response map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "ok", response["status"])
		assert.Contains(t, response, "uptime")
		assert.Equal(t, false, response["live"])
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "method %s", method)
		}
	})
}

func TestServer_Metrics(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "handtrace_frames_analyzed_total")
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/nonexistent", "/api/sessions", "/api/live", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code, "path %s", path)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Hello, World!</body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644))
	cssContent := "body { color: red; }"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644))

	s := New(Config{StaticDir: tmpDir})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"serves index.html at root path", "/", http.StatusOK, testContent},
		{"serves static files from configured directory", "/style.css", http.StatusOK, cssContent},
		{"returns 404 for non-existent static files", "/nonexistent.html", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_CORS(t *testing.T) {
	s := New(Config{AllowedOrigins: []string{"http://localhost:8420"}})

	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:8420", "http://localhost:8420"},
		{"http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestServer_VisualizationSettings(t *testing.T) {
	st := newTestStore(t)
	defaults := config.DefaultVisualization()
	s := New(Config{Store: st, Visualization: defaults})

	get := func(t *testing.T) config.Visualization {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/settings/visualization", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var v config.Visualization
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
		return v
	}

	put := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/settings/visualization", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, defaults, get(t), "defaults before anything is stored")

	rec := put(`{"trail_length": 45, "heatmap_colormap": "magma"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	want := defaults
	want.TrailLength = 45
	want.HeatmapColormap = config.ColormapMagma
	assert.Equal(t, want, get(t))

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"trail_length":`},
		{"opacity out of range", `{"opacity": 5}`},
		{"unknown colormap", `{"heatmap_colormap": "sepia"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := put(tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), `"error"`))
		})
	}

	assert.Equal(t, want, get(t), "rejected updates leave settings unchanged")
}

func TestNew(t *testing.T) {
	t.Run("creates server with config", func(t *testing.T) {
		cfg := Config{StaticDir: "/some/path"}
		s := New(cfg)

		require.NotNil(t, s)
		assert.Equal(t, cfg.StaticDir, s.config.StaticDir)
		assert.Equal(t, config.DefaultVisualization(), s.config.Visualization)
		assert.NotNil(t, s.config.OpenVideo)
	})

	t.Run("server implements http.Handler", func(t *testing.T) {
		var _ http.Handler = New(Config{})
	})
}
