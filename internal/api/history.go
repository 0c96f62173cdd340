package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/heatpump-sync/internal/writelog"
)

// Pagination limits.
const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// handleGetHistory returns recent attribute changes for a device, newest first.
//
// Query parameters:
//   - attribute: only this attribute
//   - limit: max results (default 100, max 1000)
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionFor(w, r); !ok {
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history is not enabled")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	deviceID := chi.URLParam(r, "id")
	entries, err := s.history.GetHistory(r.Context(), deviceID, r.URL.Query().Get("attribute"), limit)
	if err != nil {
		s.logger.Error("failed to read history", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to read history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleListWrites returns the settled writes of a device.
//
// Query parameters:
//   - status: applied, failed or cleared
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListWrites(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionFor(w, r); !ok {
		return
	}
	if s.writes == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "write log is not enabled")
		return
	}

	q := r.URL.Query()
	filter := writelog.Filter{
		DeviceID: chi.URLParam(r, "id"),
		Status:   q.Get("status"),
	}
	switch filter.Status {
	case "", writelog.StatusApplied, writelog.StatusFailed, writelog.StatusCleared:
	default:
		writeBadRequest(w, "status must be applied, failed or cleared")
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.writes.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list writes", "device_id", filter.DeviceID, "error", err)
		writeInternalError(w, "failed to list writes")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
