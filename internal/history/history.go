package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Status enumerates the terminal states of an ingestion run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record captures one ingestion run: what was processed, how it went,
// and how long it took.
type Record struct {
	ID             string         `json:"id"`
	FileName       string         `json:"fileName"`
	MIMEType       string         `json:"mimeType"`
	SizeBytes      int64          `json:"sizeBytes"`
	Category       string         `json:"category"`
	Status         Status         `json:"status"`
	Error          string         `json:"error,omitempty"`
	RiskLevel      string         `json:"riskLevel,omitempty"`
	ExtractedChars int            `json:"extractedChars"`
	ProcessingMS   int64          `json:"processingTimeMs"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

// Repository abstracts persistence for ingestion records.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns records newest first. status filters by run status
	// when non-empty ("" = all).
	List(ctx context.Context, limit, offset int, status string) ([]*Record, int, error)
}
