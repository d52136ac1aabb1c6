package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an asset does not exist.
var ErrNotFound = errors.New("asset not found")

// AssetInfo describes a stored original document.
type AssetInfo struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	MIMEType      string    `json:"mimeType"`
	Category      string    `json:"category"`
	SizeBytes     int64     `json:"sizeBytes"`
	Path          string    `json:"path"`
	CreatedAt     time.Time `json:"createdAt"`
	ExtractedText string    `json:"extractedText,omitempty"`
	PreviewText   string    `json:"previewText,omitempty"`
}

// Storage is the interface for original-document persistence backends.
type Storage interface {
	// Save stores an asset and returns its metadata.
	Save(ctx context.Context, fileName, mimeType, category string, reader io.Reader) (*AssetInfo, error)
	// Get retrieves an asset by ID.
	Get(ctx context.Context, id string) (*AssetInfo, io.ReadCloser, error)
	// Delete removes an asset by ID.
	Delete(ctx context.Context, id string) error
	// List returns all stored assets.
	List(ctx context.Context) ([]AssetInfo, error)
	// UpdateInfo stores updated metadata (e.g. after text extraction).
	UpdateInfo(ctx context.Context, info *AssetInfo) error
}
