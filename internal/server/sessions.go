package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ayusman/handtrace/internal/record"
	"github.com/ayusman/handtrace/internal/report"
	"github.com/ayusman/handtrace/internal/store"
)

type createSessionRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type sessionResponse struct {
	*store.Session
	Running bool `json:"running"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type recordsResponse struct {
	SessionID string       `json:"session_id"`
	Records   []record.Row `json:"records"`
}

func (s *Server) toResponse(sess *store.Session) sessionResponse {
	running := s.config.Runner != nil && s.config.Runner.Running(sess.ID)
	return sessionResponse{Session: sess, Running: running}
}

// lookupSession loads the session named in the URL or writes an error.
func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*store.Session, bool) {
	sess, err := s.config.Store.Sessions().GetByID(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("failed to load session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return sess, true
}

// listSessions handles GET /api/sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.config.Store.Sessions().List()
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, sess := range sessions {
		response.Sessions = append(response.Sessions, s.toResponse(sess))
	}
	writeJSON(w, http.StatusOK, response)
}

// createSession handles POST /api/sessions and starts background analysis.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	if s.config.Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis is not available")
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source is required")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		req.Name = req.Source
	}

	sess, err := s.config.Runner.Start(r.Context(), req.Name, req.Source)
	if err != nil {
		s.logger.Error("failed to start session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	writeJSON(w, http.StatusAccepted, s.toResponse(sess))
}

// getSession handles GET /api/sessions/{id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.toResponse(sess))
}

// deleteSession handles DELETE /api/sessions/{id}. Running sessions must be
// canceled first.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.config.Runner != nil && s.config.Runner.Running(id) {
		writeError(w, http.StatusConflict, "session is running, cancel it first")
		return
	}

	err := s.config.Store.Sessions().Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// cancelSession handles POST /api/sessions/{id}/cancel.
func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	if s.config.Runner == nil || !s.config.Runner.Cancel(sess.ID) {
		writeError(w, http.StatusConflict, "session is not running")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// sessionSummary handles GET /api/sessions/{id}/summary.
func (s *Server) sessionSummary(w http.ResponseWriter, r *http.Request) {
	sess, rows, ok := s.sessionRows(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"frames":     len(rows),
		"hands":      report.Summarize(rows),
	})
}

// listRecords handles GET /api/sessions/{id}/records. The optional start
// and end query parameters select an inclusive frame range.
func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	rows, err := s.queryRows(r, sess.ID)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if rows == nil {
		rows = []record.Row{}
	}
	writeJSON(w, http.StatusOK, recordsResponse{SessionID: sess.ID, Records: rows})
}

// recordsCSV handles GET /api/sessions/{id}/records.csv.
func (s *Server) recordsCSV(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	rows, err := s.queryRows(r, sess.ID)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sess.ID+`.csv"`)
	if err := record.WriteCSV(w, rows); err != nil {
		s.logger.Warn("failed to write csv", zap.String("session", sess.ID), zap.Error(err))
	}
}

var errBadQuery = errors.New("invalid query")

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("failed to load records", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to load records")
}

func (s *Server) queryRows(r *http.Request, sessionID string) ([]record.Row, error) {
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		return s.config.Store.Records().List(sessionID)
	}

	start, err := intParam(q.Get("start"), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: start must be an integer", errBadQuery)
	}
	end, err := intParam(q.Get("end"), math.MaxInt)
	if err != nil {
		return nil, fmt.Errorf("%w: end must be an integer", errBadQuery)
	}
	return s.config.Store.Records().Range(sessionID, start, end)
}

// sessionRows loads the session named in the URL and all of its rows.
func (s *Server) sessionRows(w http.ResponseWriter, r *http.Request) (*store.Session, []record.Row, bool) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return nil, nil, false
	}

	rows, err := s.config.Store.Records().List(sess.ID)
	if err != nil {
		s.logger.Error("failed to load records", zap.String("session", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return nil, nil, false
	}
	return sess, rows, true
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
