package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/soochol/docbridge/internal/filetype"
	"github.com/soochol/docbridge/internal/history"
	"github.com/soochol/docbridge/internal/pipeline"
	"github.com/soochol/docbridge/internal/validate"
)

const defaultMaxUpload = 250 << 20 // request body cap when no limit is configured

// maxUploadBytes is the configured cap on a whole upload form.
func (s *Server) maxUploadBytes() int64 {
	if s.limits.MaxFileSizeMiB > 0 {
		return int64(s.limits.MaxFileSizeMiB) << 20
	}
	return defaultMaxUpload
}

// ingestResponse is the JSON shape returned for a single processed file.
type ingestResponse struct {
	ID       string              `json:"id"`
	Content  *pipeline.Content   `json:"content,omitempty"`
	Error    string              `json:"error,omitempty"`
	Progress []pipeline.Progress `json:"progress,omitempty"`
}

func (s *Server) ingestFile(w http.ResponseWriter, r *http.Request) {
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

	data, contentType, err := readPart(file, header)
	if err != nil {
		http.Error(w, "read file", http.StatusInternalServerError)
		return
	}

	if !s.mimeAllowed(contentType, header.Filename) {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
		return
	}

	id := uuid.NewString()
	opts := pipeline.Options{ExtractText: s.extraction, Validation: validate.Options{}}
	events, results, err := s.processor.Process(r.Context(), id, pipeline.Input{
		Data:     data,
		MIMEType: contentType,
		FileName: header.Filename,
	}, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	progress := drainProgress(events)
	result := <-results

	resp := ingestResponse{ID: id, Progress: progress}
	if result.Err != nil {
		resp.Error = result.Err.Error()
		s.recordRun(r, id, header.Filename, contentType, int64(len(data)), nil, result.Err.Error())
		s.alertOnFailure(r, header.Filename, result.Err.Error())
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	resp.Content = result.Content
	s.recordRun(r, id, header.Filename, contentType, int64(len(data)), result.Content, "")
	s.alertOnRisk(r, header.Filename, result.Content)
	s.saveAsset(r, header.Filename, contentType, categoryOf(result.Content), data, result.Content.Text)
	writeJSON(w, http.StatusOK, resp)
}

// batchResponse is the JSON shape returned for a batch ingest.
type batchResponse struct {
	ID        string           `json:"id"`
	Succeeded int              `json:"succeeded"`
	Items     []ingestResponse `json:"items"`
}

func (s *Server) ingestBatch(w http.ResponseWriter, r *http.Request) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		http.Error(w, fmt.Sprintf("form too large (max %dMiB)", limit>>20), http.StatusBadRequest)
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		http.Error(w, "missing files field", http.StatusBadRequest)
		return
	}

	var inputs []pipeline.Input
	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			http.Error(w, "read file "+header.Filename, http.StatusInternalServerError)
			return
		}
		data, contentType, err := readPart(file, header)
		file.Close()
		if err != nil {
			http.Error(w, "read file "+header.Filename, http.StatusInternalServerError)
			return
		}
		if !s.mimeAllowed(contentType, header.Filename) {
			http.Error(w, "unsupported media type: "+header.Filename, http.StatusUnsupportedMediaType)
			return
		}
		inputs = append(inputs, pipeline.Input{Data: data, MIMEType: contentType, FileName: header.Filename})
	}

	id := uuid.NewString()
	opts := pipeline.Options{ExtractText: s.extraction, Validation: validate.Options{}}
	events, results, err := s.processor.ProcessBatch(r.Context(), id, inputs, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	drainProgress(events)
	batch := <-results

	resp := batchResponse{ID: id, Succeeded: batch.Succeeded}
	for i, item := range batch.Items {
		ir := ingestResponse{ID: id}
		if item.Err != nil {
			ir.Error = item.Err.Error()
			s.recordRun(r, id, item.FileName, inputs[i].MIMEType, int64(len(inputs[i].Data)), nil, item.Err.Error())
			s.alertOnFailure(r, item.FileName, item.Err.Error())
		} else {
			ir.Content = item.Content
			s.recordRun(r, id, item.FileName, inputs[i].MIMEType, int64(len(inputs[i].Data)), item.Content, "")
			s.alertOnRisk(r, item.FileName, item.Content)
			s.saveAsset(r, item.FileName, inputs[i].MIMEType, categoryOf(item.Content), inputs[i].Data, item.Content.Text)
		}
		resp.Items = append(resp.Items, ir)
	}

	writeJSON(w, http.StatusOK, resp)
}

// readPart buffers a multipart part and resolves its content type.
func readPart(file multipart.File, header *multipart.FileHeader) ([]byte, string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// mimeAllowed applies the configured MIME allow-list. An empty list
// accepts everything the detector knows.
func (s *Server) mimeAllowed(contentType, fileName string) bool {
	if len(s.limits.AllowedMIMEs) == 0 {
		return true
	}
	mime := filetype.NormalizeMIME(contentType)
	for _, allowed := range s.limits.AllowedMIMEs {
		if mime == filetype.NormalizeMIME(allowed) {
			return true
		}
	}
	// Generic types fall through to extension detection.
	if mime == "application/octet-stream" {
		cat := filetype.Detect(contentType, fileName)
		for _, allowed := range s.limits.AllowedMIMEs {
			if filetype.Detect(allowed, "") == cat {
				return true
			}
		}
	}
	return false
}

// drainProgress collects all progress events after the channel closes.
func drainProgress(events <-chan pipeline.Progress) []pipeline.Progress {
	var all []pipeline.Progress
	for p := range events {
		all = append(all, p)
	}
	return all
}

func categoryOf(content *pipeline.Content) string {
	if content == nil {
		return ""
	}
	cat, _ := content.Metadata["category"].(string)
	return cat
}

// alertOnRisk notifies when a processed file still looks dangerous.
func (s *Server) alertOnRisk(r *http.Request, fileName string, content *pipeline.Content) {
	if s.notifier == nil || content == nil {
		return
	}
	if risk, _ := content.Metadata["riskLevel"].(string); risk == "high" {
		s.notifier.Notify(r.Context(), fmt.Sprintf("high-risk file ingested: %s", fileName))
	}
}

// alertOnFailure notifies when ingestion rejects a file outright.
func (s *Server) alertOnFailure(r *http.Request, fileName, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(r.Context(), fmt.Sprintf("ingestion rejected %s: %s", fileName, reason))
}

// recordRun writes the run to history. Best-effort: failures are logged only.
func (s *Server) recordRun(r *http.Request, id, fileName, mimeType string, size int64, content *pipeline.Content, errMsg string) {
	if s.history == nil {
		return
	}

	now := time.Now()
	rec := &history.Record{
		ID:        id + ":" + fileName,
		FileName:  fileName,
		MIMEType:  mimeType,
		SizeBytes: size,
		Category:  string(filetype.Detect(mimeType, fileName)),
		Status:    history.StatusCompleted,
		CreatedAt: now,
	}
	if errMsg != "" {
		rec.Status = history.StatusFailed
		rec.Error = errMsg
	}
	if content != nil {
		rec.ExtractedChars = len(content.Text)
		rec.Metadata = content.Metadata
		if risk, ok := content.Metadata["riskLevel"].(string); ok {
			rec.RiskLevel = risk
		}
		if ms, ok := content.Metadata["processingTimeMs"].(int64); ok {
			rec.ProcessingMS = ms
		}
	}
	done := now
	rec.CompletedAt = &done

	if err := s.history.Create(r.Context(), rec); err != nil {
		slog.Warn("record ingestion failed", "id", rec.ID, "err", err)
	}
}
