package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/soochol/docbridge/internal/cache"
	"github.com/soochol/docbridge/internal/remote"
)

const (
	itemContentTTL  = 0 // 0 = cache default
	defaultMaxPages = 100
)

// getItemContent downloads a drive item's bytes, through the content cache
// when one is configured.
func (s *Server) getItemContent(w http.ResponseWriter, r *http.Request) {
	driveID := chi.URLParam(r, "driveID")
	itemID := chi.URLParam(r, "itemID")
	endpoint := fmt.Sprintf("/drives/%s/items/%s/content", driveID, itemID)

	fetch := func(ctx context.Context) ([]byte, error) {
		return s.client.DownloadBytes(ctx, endpoint)
	}

	var data []byte
	var err error
	if s.contentCache != nil {
		key := cache.Key("drive", driveID, "item", itemID, "content")
		data, err = s.contentCache.GetOrSet(r.Context(), key, fetch, itemContentTTL)
	} else {
		data, err = fetch(r.Context())
	}
	if err != nil {
		writeRemoteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// putItemContent uploads a new version of a drive item, chunking large
// bodies. The cached copy is invalidated on success.
func (s *Server) putItemContent(w http.ResponseWriter, r *http.Request) {
	driveID := chi.URLParam(r, "driveID")
	itemID := chi.URLParam(r, "itemID")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	fileName := r.URL.Query().Get("name")
	if fileName == "" {
		fileName = itemID
	}

	endpoint := fmt.Sprintf("/drives/%s/items/%s/content", driveID, itemID)
	result, err := s.client.UploadBytes(r.Context(), endpoint, data, fileName, contentType, s.chunkSize)
	if err != nil {
		writeRemoteError(w, err)
		return
	}

	if s.contentCache != nil {
		pattern := cache.SubtreePattern(cache.Key("drive", driveID, "item", itemID))
		if _, err := s.contentCache.InvalidateByPattern(pattern); err != nil {
			http.Error(w, "invalidate cache", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// listItemChildren pages through a folder's children and returns them all.
func (s *Server) listItemChildren(w http.ResponseWriter, r *http.Request) {
	driveID := chi.URLParam(r, "driveID")
	itemID := chi.URLParam(r, "itemID")
	endpoint := fmt.Sprintf("/drives/%s/items/%s/children", driveID, itemID)

	items, err := s.client.GetAllPages(r.Context(), endpoint, s.maxPages)
	if err != nil {
		writeRemoteError(w, err)
		return
	}

	out := make([]json.RawMessage, len(items))
	copy(out, items)
	writeJSON(w, http.StatusOK, map[string]any{"value": out, "count": len(out)})
}

// writeRemoteError maps drive client failures onto HTTP responses.
func writeRemoteError(w http.ResponseWriter, err error) {
	var httpErr *remote.HTTPError
	if errors.As(err, &httpErr) {
		http.Error(w, httpErr.Error(), httpErr.Status)
		return
	}
	var authErr *remote.AuthError
	if errors.As(err, &authErr) {
		http.Error(w, authErr.Error(), http.StatusUnauthorized)
		return
	}
	var netErr *remote.NetworkError
	if errors.As(err, &netErr) {
		http.Error(w, netErr.Error(), http.StatusBadGateway)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
