package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/soochol/docbridge/internal/storage"
)

const previewRunes = 300

// saveAsset stores the original bytes alongside the ingestion. Best-effort:
// a storage failure never fails the ingest.
func (s *Server) saveAsset(r *http.Request, fileName, mimeType, category string, data []byte, extracted string) {
	if s.storage == nil {
		return
	}

	info, err := s.storage.Save(r.Context(), fileName, mimeType, category, bytes.NewReader(data))
	if err != nil {
		slog.Warn("asset save failed", "file", fileName, "err", err)
		return
	}

	if extracted != "" {
		info.ExtractedText = extracted
		preview := []rune(extracted)
		if len(preview) > previewRunes {
			preview = preview[:previewRunes]
		}
		info.PreviewText = string(preview)
		_ = s.storage.UpdateInfo(r.Context(), info)
	}
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		http.Error(w, "asset storage not configured", http.StatusServiceUnavailable)
		return
	}

	assets, err := s.storage.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		http.Error(w, "asset storage not configured", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	info, rc, err := s.storage.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
		} else {
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}
	defer rc.Close()

	escaped := strings.ReplaceAll(info.FileName, `"`, `\"`)
	w.Header().Set("Content-Type", info.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, escaped))
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("serveAsset: copy interrupted", "id", id, "err", err)
	}
}

func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		http.Error(w, "asset storage not configured", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.storage.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
		} else {
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
