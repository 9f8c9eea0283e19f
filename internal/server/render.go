package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/handtrace/internal/record"
	"github.com/ayusman/handtrace/internal/render"
	"github.com/ayusman/handtrace/internal/report"
	"github.com/ayusman/handtrace/internal/store"
)

// trailImage handles GET /api/sessions/{id}/frames/{frame}/trail.jpg.
func (s *Server) trailImage(w http.ResponseWriter, r *http.Request) {
	sess, rows, ok := s.sessionRows(w, r)
	if !ok {
		return
	}

	frame, err := strconv.Atoi(chi.URLParam(r, "frame"))
	if err != nil || frame < 0 || frame >= len(rows) {
		writeError(w, http.StatusNotFound, "frame not found")
		return
	}

	renderer, ok := s.renderer(w)
	if !ok {
		return
	}

	bg, err := s.backgroundFrame(sess, frame)
	if err != nil {
		s.logger.Warn("source frame unavailable", zap.String("session", sess.ID), zap.Int("frame", frame), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "source video unavailable")
		return
	}
	defer bg.Close()

	out := renderer.Trail(bg, rows, frame)
	defer out.Close()

	s.writeJPEG(w, out)
}

// heatmapImage handles GET /api/sessions/{id}/heatmap.jpg. The image is drawn
// on the frame given by the frame query parameter, the last frame by default.
// start and end restrict the records that are stamped.
func (s *Server) heatmapImage(w http.ResponseWriter, r *http.Request) {
	sess, rows, ok := s.sessionRows(w, r)
	if !ok {
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "session has no records")
		return
	}

	q := r.URL.Query()
	last := len(rows) - 1
	frame, err := intParam(q.Get("frame"), last)
	if err != nil || frame < 0 || frame > last {
		writeError(w, http.StatusBadRequest, "frame out of range")
		return
	}

	var opts []render.HeatmapOption
	if q.Get("start") != "" || q.Get("end") != "" {
		start, err := intParam(q.Get("start"), 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be an integer")
			return
		}
		end, err := intParam(q.Get("end"), last)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be an integer")
			return
		}
		opts = append(opts, render.WithRange(start, end))
	}

	renderer, ok := s.renderer(w)
	if !ok {
		return
	}

	bg, err := s.backgroundFrame(sess, frame)
	if err != nil {
		s.logger.Warn("source frame unavailable", zap.String("session", sess.ID), zap.Int("frame", frame), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "source video unavailable")
		return
	}
	defer bg.Close()

	out := renderer.Heatmap(bg, rows, frame, opts...)
	defer out.Close()

	s.writeJPEG(w, out)
}

// chartHTML handles GET /api/sessions/{id}/chart. The stat query parameter
// may be repeated to pick the charted stats.
func (s *Server) chartHTML(w http.ResponseWriter, r *http.Request) {
	sess, rows, ok := s.sessionRows(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, sess.Name, rows, r.URL.Query()["stat"]...); err != nil {
		s.logger.Warn("failed to render chart", zap.String("session", sess.ID), zap.Error(err))
	}
}

// chartPNG handles GET /api/sessions/{id}/chart.png?stat=velocity.
func (s *Server) chartPNG(w http.ResponseWriter, r *http.Request) {
	_, rows, ok := s.sessionRows(w, r)
	if !ok {
		return
	}

	stat := r.URL.Query().Get("stat")
	if stat == "" {
		stat = record.StatVelocity
	}

	w.Header().Set("Content-Type", "image/png")
	if err := report.WritePNG(w, rows, stat); err != nil {
		s.logger.Warn("failed to render chart", zap.Error(err))
	}
}

// renderer builds a Renderer from the stored visualization settings.
func (s *Server) renderer(w http.ResponseWriter) (*render.Renderer, bool) {
	v, err := s.config.Store.Settings().Visualization(s.config.Visualization)
	if err != nil {
		s.logger.Error("failed to load visualization settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load visualization settings")
		return nil, false
	}
	return render.New(v), true
}

// backgroundFrame reads frame from the session's source video. When the
// video cannot be read but its size is known a black canvas is used.
func (s *Server) backgroundFrame(sess *store.Session, frame int) (gocv.Mat, error) {
	src := s.config.OpenVideo(sess.Source)
	mat, err := func() (*gocv.Mat, error) {
		if err := src.Open(); err != nil {
			return nil, err
		}
		defer src.Close()
		return src.ReadFrameAt(frame)
	}()
	if err == nil {
		return *mat, nil
	}

	if sess.Width > 0 && sess.Height > 0 {
		s.logger.Debug("rendering on black canvas", zap.String("session", sess.ID), zap.Error(err))
		return gocv.Zeros(sess.Height, sess.Width, gocv.MatTypeCV8UC3), nil
	}
	return gocv.Mat{}, fmt.Errorf("read frame %d of %s: %w", frame, sess.Source, err)
}

func (s *Server) writeJPEG(w http.ResponseWriter, img gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		s.logger.Error("failed to encode image", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to encode image")
		return
	}
	defer buf.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.GetBytes())
}
