package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/smart-inventory-core/internal/auth"
)

// imageFormField is the multipart field carrying the uploaded image.
const imageFormField = "image"

// handleIdentifyByImage runs identification for an access point's upload.
// Found and not found both answer 200; the device only needs to know the
// request was processed.
func (s *Server) handleIdentifyByImage(w http.ResponseWriter, r *http.Request) {
	deviceGUID := chi.URLParam(r, "device")

	image, err := s.readImage(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.accessPoints.IdentifyItem(r.Context(), deviceGUID, image); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// readImage accepts either a multipart form with an "image" field or the
// raw request body.
func (s *Server) readImage(r *http.Request) ([]byte, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return io.ReadAll(r.Body)
	}

	file, _, err := r.FormFile(imageFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		// A form without the field is treated as an empty upload.
		return nil, nil
	}
	defer file.Close()
	return io.ReadAll(file)
}

// handleListScanHistory returns a page of an access point's scans.
func (s *Server) handleListScanHistory(w http.ResponseWriter, r *http.Request) {
	if !requirePermission(w, r, auth.PermScanHistoryRead) {
		return
	}
	page, size, ok := parsePagination(w, r)
	if !ok {
		return
	}

	result, err := s.accessPoints.ListScanHistory(r.Context(), chi.URLParam(r, "device"), page, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
