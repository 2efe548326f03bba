package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type shelfStatusRequest struct {
	IsLitUp *bool `json:"is_lit_up"`
}

// handleSetShelfStatus stores the light state a shelf controller reports.
func (s *Server) handleSetShelfStatus(w http.ResponseWriter, r *http.Request) {
	position, ok := parseShelfPosition(w, r)
	if !ok {
		return
	}

	var req shelfStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.IsLitUp == nil {
		writeBadRequest(w, "is_lit_up is required")
		return
	}

	err := s.shelves.SetShelfLightStatus(r.Context(), chi.URLParam(r, "deviceGuid"), position, *req.IsLitUp)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleShelfMovement handles motion detected in front of a shelf.
func (s *Server) handleShelfMovement(w http.ResponseWriter, r *http.Request) {
	position, ok := parseShelfPosition(w, r)
	if !ok {
		return
	}

	if err := s.shelves.HandleMotion(r.Context(), chi.URLParam(r, "deviceGuid"), position); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// parseShelfPosition reads the 1-based {position} parameter, writing 400
// when it is not a positive integer.
func parseShelfPosition(w http.ResponseWriter, r *http.Request) (int, bool) {
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil || position < 1 {
		writeBadRequest(w, "shelf position must be a positive integer")
		return 0, false
	}
	return position, true
}
