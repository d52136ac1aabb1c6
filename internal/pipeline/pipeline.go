// Package pipeline orchestrates ingestion of one or many files: validation,
// type detection, text extraction and metadata enrichment, with staged
// progress events and per-item failure isolation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/soochol/docbridge/internal/extract"
	"github.com/soochol/docbridge/internal/filetype"
	"github.com/soochol/docbridge/internal/validate"
)

// Input is one file handed to the pipeline.
type Input struct {
	Data     []byte
	MIMEType string
	FileName string
}

// Content is the immutable result of ingesting one file. Ownership passes
// to the caller on return.
type Content struct {
	Raw       []byte         `json:"-"`
	MIMEType  string         `json:"mimeType"`
	SizeBytes int64          `json:"sizeBytes"`
	Encoding  string         `json:"encoding,omitempty"`
	Text      string         `json:"extractedText,omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// Result pairs a Content with the terminal error of its ingestion call.
type Result struct {
	Content *Content
	Err     error
}

// ItemResult is one item's outcome inside a batch. A failed item keeps its
// position with zero-length content and the error recorded.
type ItemResult struct {
	FileName string
	Content  *Content
	Err      error
}

// BatchResult is the outcome of a batch ingestion call.
type BatchResult struct {
	Items     []ItemResult
	Succeeded int
}

// Options tunes one ingestion call.
type Options struct {
	ExtractText bool
	Validation  validate.Options
}

// ErrDuplicateID is returned when an ingestion call reuses a processing id
// that is still in flight.
var ErrDuplicateID = fmt.Errorf("processing id already in flight")

// Processor runs the ingestion pipeline. Multiple calls with distinct
// processing ids may run concurrently; the in-flight set only rejects
// duplicate ids.
type Processor struct {
	validator *validate.Validator
	extractor *extract.Extractor

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a Processor.
func New(validator *validate.Validator, extractor *extract.Extractor) *Processor {
	return &Processor{
		validator: validator,
		extractor: extractor,
		inflight:  make(map[string]struct{}),
	}
}

// acquire reserves a processing id, rejecting duplicates immediately.
func (p *Processor) acquire(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[id]; busy {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	p.inflight[id] = struct{}{}
	return nil
}

func (p *Processor) release(id string) {
	p.mu.Lock()
	delete(p.inflight, id)
	p.mu.Unlock()
}

// InFlight reports whether a processing id is currently active.
func (p *Processor) InFlight(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, busy := p.inflight[id]
	return busy
}

// Process ingests a single file. It returns a progress channel and a result
// channel; both are closed when the call finishes. The processing id is
// always released, on every exit path.
func (p *Processor) Process(ctx context.Context, id string, in Input, opts Options) (<-chan Progress, <-chan Result, error) {
	if err := p.acquire(id); err != nil {
		return nil, nil, err
	}

	events := newEmitter()
	results := make(chan Result, 1)

	go func() {
		defer p.release(id)
		defer events.close()
		defer close(results)

		content, err := p.processOne(ctx, events, in, opts, 0, 1)
		if err != nil {
			results <- Result{Err: err}
			return
		}
		events.emit(Progress{
			Stage: StageComplete, Percentage: 100, Message: "done",
			BytesProcessed: content.SizeBytes, TotalBytes: content.SizeBytes,
			ItemsProcessed: 1, TotalItems: 1,
		})
		results <- Result{Content: content}
	}()

	return events.ch, results, nil
}

// ProcessBatch ingests several files under one processing id. One item's
// failure never aborts the batch: the failed slot carries the error and
// zero-length content, and progress still reaches 100%.
func (p *Processor) ProcessBatch(ctx context.Context, id string, items []Input, opts Options) (<-chan Progress, <-chan BatchResult, error) {
	if err := p.acquire(id); err != nil {
		return nil, nil, err
	}

	events := newEmitter()
	results := make(chan BatchResult, 1)

	go func() {
		defer p.release(id)
		defer events.close()
		defer close(results)

		batch := BatchResult{Items: make([]ItemResult, len(items))}
		for i, item := range items {
			if ctx.Err() != nil {
				batch.Items[i] = ItemResult{FileName: item.FileName, Content: emptyContent(item), Err: ctx.Err()}
				continue
			}
			content, err := p.processOne(ctx, events, item, opts, i, len(items))
			if err != nil {
				slog.Warn("batch item failed", "id", id, "file", item.FileName, "err", err)
				batch.Items[i] = ItemResult{FileName: item.FileName, Content: emptyContent(item), Err: err}
				continue
			}
			batch.Items[i] = ItemResult{FileName: item.FileName, Content: content}
			batch.Succeeded++
		}

		events.emit(Progress{
			Stage: StageComplete, Percentage: 100,
			Message:        fmt.Sprintf("%d of %d items succeeded", batch.Succeeded, len(items)),
			ItemsProcessed: len(items), TotalItems: len(items),
		})
		results <- batch
	}()

	return events.ch, results, nil
}

// processOne runs the staged flow for one item. itemIdx/totalItems scale the
// stage percentages so batch progress stays monotonic.
func (p *Processor) processOne(ctx context.Context, events *emitter, in Input, opts Options, itemIdx, totalItems int) (*Content, error) {
	start := time.Now()
	size := int64(len(in.Data))

	emitStage := func(stage Stage, pct int, msg string) {
		events.emit(Progress{
			Stage:          stage,
			Percentage:     (itemIdx*100 + pct) / totalItems,
			Message:        msg,
			BytesProcessed: size,
			TotalBytes:     size,
			ItemsProcessed: itemIdx,
			TotalItems:     totalItems,
		})
	}

	// Stage 1: reading (0-20%). Input is already in memory; validation is
	// the read-side screen.
	emitStage(StageReading, 0, "validating "+in.FileName)
	report := p.validator.Validate(in.Data, in.MIMEType, in.FileName, opts.Validation)
	if !report.Valid {
		return nil, fmt.Errorf("validation failed for %q: %s", in.FileName, summarizeIssues(report))
	}
	emitStage(StageReading, 20, "validated")

	// Stage 2: parsing / type detection (20-40%).
	category := filetype.Detect(in.MIMEType, in.FileName)
	emitStage(StageParsing, 40, fmt.Sprintf("detected %s", category))

	content := &Content{
		Raw:       in.Data,
		MIMEType:  in.MIMEType,
		SizeBytes: size,
		Metadata: map[string]any{
			"fileName":  in.FileName,
			"category":  string(category),
			"riskLevel": string(report.Meta.Risk),
		},
	}
	if category == filetype.CategoryText {
		content.Encoding = extract.DetectEncoding(in.Data)
	}

	// Stage 3: extraction (40-90%), best-effort.
	emitStage(StageExtracting, 40, "extracting text")
	if opts.ExtractText && report.Meta.SupportsTextExtraction {
		text, err := p.extractor.Extract(in.Data, in.MIMEType, in.FileName)
		if err != nil {
			content.Metadata["extractionSuccess"] = false
			content.Metadata["extractionError"] = err.Error()
			slog.Warn("text extraction failed", "file", in.FileName, "err", err)
		} else {
			content.Text = text
			content.Metadata["extractionSuccess"] = true
		}
	}
	emitStage(StageExtracting, 90, "extracted")

	// Stage 4: formatting (90-100%): category-specific metadata.
	emitStage(StageFormatting, 90, "enriching metadata")
	enrichMetadata(content, category)
	content.Metadata["processingTimeMs"] = time.Since(start).Milliseconds()
	emitStage(StageFormatting, 100, "formatted")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return content, nil
}

func emptyContent(in Input) *Content {
	return &Content{
		MIMEType:  in.MIMEType,
		SizeBytes: 0,
		Metadata: map[string]any{
			"fileName":          in.FileName,
			"extractionSuccess": false,
		},
	}
}

func summarizeIssues(report *validate.Result) string {
	var codes []string
	for _, issue := range report.Issues {
		if issue.Severity == validate.SeverityError {
			codes = append(codes, issue.Code)
		}
	}
	return strings.Join(codes, ", ")
}

// enrichMetadata derives category-specific figures from the extracted text.
func enrichMetadata(content *Content, category filetype.Category) {
	words := len(strings.Fields(content.Text))

	switch category {
	case filetype.CategoryDocument:
		content.Metadata["wordCount"] = words
		content.Metadata["estimatedPages"] = words/300 + 1
	case filetype.CategoryPDF:
		content.Metadata["wordCount"] = words
		content.Metadata["estimatedPages"] = int(content.SizeBytes/3500) + 1
	case filetype.CategorySpreadsheet:
		content.Metadata["sheetCount"] = strings.Count(content.Text, "=== SHEET ")
		content.Metadata["rowCount"] = nonEmptyLines(content.Text)
		content.Metadata["hasFormulas"] = strings.Contains(content.Text, ",=") || strings.HasPrefix(content.Text, "=")
	case filetype.CategoryPresentation:
		content.Metadata["slideCount"] = strings.Count(content.Text, "--- Slide ")
		content.Metadata["wordCount"] = words
	case filetype.CategoryText:
		content.Metadata["wordCount"] = words
		content.Metadata["lineCount"] = nonEmptyLines(content.Text)
	}
}

func nonEmptyLines(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
