package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/smart-inventory-core/internal/auth"
)

type itemStatusRequest struct {
	IsTaken *bool  `json:"is_taken"`
	Comment string `json:"comment"`
}

// maxCommentLength bounds the free-text comment on manual status changes.
const maxCommentLength = 500

func (s *Server) handleUpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, auth.PermItemStatusWrite) {
		return
	}

	var req itemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.IsTaken == nil {
		writeBadRequest(w, "is_taken is required")
		return
	}
	if len(req.Comment) > maxCommentLength {
		writeBadRequest(w, "comment is too long")
		return
	}

	entry, err := s.shelves.UpdateItemStatus(r.Context(), chi.URLParam(r, "id"), *req.IsTaken, req.Comment)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type shelfLightRequest struct {
	ItemID  string `json:"item_id"`
	IsLitUp *bool  `json:"is_lit_up"`
}

// handleSetShelfLight switches a shelf light on behalf of a user, naming the
// item the change is recorded against.
func (s *Server) handleSetShelfLight(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, auth.PermShelfLightWrite) {
		return
	}

	var req shelfLightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ItemID == "" || req.IsLitUp == nil {
		writeBadRequest(w, "item_id and is_lit_up are required")
		return
	}

	shelf, err := s.shelves.SetShelfLight(r.Context(), chi.URLParam(r, "id"), req.ItemID, *req.IsLitUp)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shelf)
}

func (s *Server) handleListItemHistory(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, auth.PermItemHistoryRead) {
		return
	}
	page, size, ok := parsePagination(w, r)
	if !ok {
		return
	}

	result, err := s.shelves.ListItemHistory(r.Context(), chi.URLParam(r, "id"), page, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parsePagination reads optional page and size query parameters. Absent
// values are zero and get the store defaults; malformed ones are a 400.
func parsePagination(w http.ResponseWriter, r *http.Request) (page, size int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &page}, {"size", &size}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, p.name+" must be a non-negative integer")
			return 0, 0, false
		}
		*p.dst = n
	}
	return page, size, true
}
