package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/soochol/docbridge/internal/cache"
	"github.com/soochol/docbridge/internal/config"
	"github.com/soochol/docbridge/internal/filetype"
	"github.com/soochol/docbridge/internal/history"
	"github.com/soochol/docbridge/internal/notify"
	"github.com/soochol/docbridge/internal/pipeline"
	"github.com/soochol/docbridge/internal/remote"
	"github.com/soochol/docbridge/internal/storage"
	"github.com/soochol/docbridge/internal/validate"
)

type Server struct {
	processor    *pipeline.Processor
	validator    *validate.Validator
	history      history.Repository
	client       *remote.Client
	contentCache *cache.Cache[[]byte]
	storage      storage.Storage
	notifier     *notify.Notifier
	limits       config.LimitsConfig
	chunkSize    int64
	maxPages     int
	extraction   bool
}

func NewServer(processor *pipeline.Processor, validator *validate.Validator, limits config.LimitsConfig) *Server {
	return &Server{
		processor:  processor,
		validator:  validator,
		limits:     limits,
		chunkSize:  remote.DefaultChunkSize,
		maxPages:   defaultMaxPages,
		extraction: true,
	}
}

// SetHistory configures the ingestion history repository.
func (s *Server) SetHistory(repo history.Repository) {
	s.history = repo
}

// SetRemoteClient configures the drive API client for item endpoints.
func (s *Server) SetRemoteClient(client *remote.Client) {
	s.client = client
}

// SetContentCache configures the download cache for item content.
func (s *Server) SetContentCache(c *cache.Cache[[]byte]) {
	s.contentCache = c
}

// SetRemoteLimits overrides the upload chunk size and the pagination bound
// for item endpoints. Non-positive values keep the defaults.
func (s *Server) SetRemoteLimits(chunkSizeBytes int64, maxPages int) {
	if chunkSizeBytes > 0 {
		s.chunkSize = chunkSizeBytes
	}
	if maxPages > 0 {
		s.maxPages = maxPages
	}
}

// SetStorage configures the original-document store.
func (s *Server) SetStorage(store storage.Storage) {
	s.storage = store
}

// SetNotifier configures alerting for high-risk ingestions.
func (s *Server) SetNotifier(n *notify.Notifier) {
	s.notifier = n
}

// SetExtractionEnabled toggles text extraction on ingest.
func (s *Server) SetExtractionEnabled(enabled bool) {
	s.extraction = enabled
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))
	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.ingestFile)
		r.Post("/ingest/batch", s.ingestBatch)
		r.Post("/validate", s.validateFile)
		r.Get("/filetypes", s.listFileTypes)
		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.listHistory)
			r.Get("/{id}", s.getHistoryRecord)
		})
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", s.listAssets)
			r.Get("/{id}", s.serveAsset)
			r.Delete("/{id}", s.deleteAsset)
		})
		if s.client != nil {
			r.Route("/items/{driveID}/{itemID}", func(r chi.Router) {
				r.Get("/content", s.getItemContent)
				r.Put("/content", s.putItemContent)
				r.Get("/children", s.listItemChildren)
			})
		}
	})

	return r
}

// listFileTypes returns the categories and MIME types the service accepts.
func (s *Server) listFileTypes(w http.ResponseWriter, r *http.Request) {
	type typeInfo struct {
		MIMEType   string `json:"mimeType"`
		Category   string `json:"category"`
		CanExtract bool   `json:"canExtract"`
		MaxSizeMiB int64  `json:"maxSizeMiB"`
	}

	var result []typeInfo
	for _, mime := range filetype.AllSupportedMIMETypes() {
		cat := filetype.Detect(mime, "")
		info := filetype.Lookup(cat)
		result = append(result, typeInfo{
			MIMEType:   mime,
			Category:   string(cat),
			CanExtract: info.SupportsTextExtraction,
			MaxSizeMiB: info.MaxSizeBytes >> 20,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
