package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/soochol/docbridge/internal/history"
)

const defaultHistoryLimit = 50

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}

	limit := queryInt(r, "limit", defaultHistoryLimit)
	offset := queryInt(r, "offset", 0)
	status := r.URL.Query().Get("status")

	records, total, err := s.history.List(r.Context(), limit, offset, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) getHistoryRecord(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := s.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
		} else {
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
