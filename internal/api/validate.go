package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/soochol/docbridge/internal/validate"
)

func (s *Server) validateFile(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		http.Error(w, fmt.Sprintf("file too large (max %dMiB)", limit>>20), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "read file", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	opts := validate.Options{
		StrictMIME:     queryBool(r, "strict"),
		CheckStructure: queryBool(r, "structure"),
	}
	report := s.validator.Validate(data, contentType, header.Filename, opts)

	writeJSON(w, http.StatusOK, report)
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
