package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// getVisualization handles GET /api/settings/visualization.
func (s *Server) getVisualization(w http.ResponseWriter, r *http.Request) {
	v, err := s.config.Store.Settings().Visualization(s.config.Visualization)
	if err != nil {
		s.logger.Error("failed to load visualization settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load visualization settings")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// putVisualization handles PUT /api/settings/visualization. Fields missing
// from the body keep their current value.
func (s *Server) putVisualization(w http.ResponseWriter, r *http.Request) {
	settings := s.config.Store.Settings()

	v, err := settings.Visualization(s.config.Visualization)
	if err != nil {
		s.logger.Error("failed to load visualization settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load visualization settings")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := v.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := settings.SetVisualization(v); err != nil {
		s.logger.Error("failed to store visualization settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store visualization settings")
		return
	}

	writeJSON(w, http.StatusOK, v)
}
