// Package extract converts document bytes into plain text. Each file
// category has its own extraction strategy; all of them are best-effort and
// degrade to an error the pipeline records instead of failing ingestion.
package extract

import (
	"fmt"

	"github.com/soochol/docbridge/internal/filetype"
)

// Strategy extracts text from one category of document. Implementations can
// be swapped out without touching pipeline orchestration.
type Strategy interface {
	Extract(data []byte, fileName string) (string, error)
}

// Extractor dispatches to a per-category Strategy and post-processes the
// result uniformly.
type Extractor struct {
	strategies map[filetype.Category]Strategy
}

// New returns an Extractor with the default strategies registered.
func New() *Extractor {
	return &Extractor{
		strategies: map[filetype.Category]Strategy{
			filetype.CategoryText:         textStrategy{},
			filetype.CategoryPDF:          pdfStrategy{},
			filetype.CategoryDocument:     documentStrategy{},
			filetype.CategorySpreadsheet:  spreadsheetStrategy{},
			filetype.CategoryPresentation: presentationStrategy{},
		},
	}
}

// Register replaces the strategy for a category.
func (e *Extractor) Register(cat filetype.Category, s Strategy) {
	e.strategies[cat] = s
}

// Supported reports whether a strategy exists for the detected category.
func (e *Extractor) Supported(mimeType, fileName string) bool {
	_, ok := e.strategies[filetype.Detect(mimeType, fileName)]
	return ok
}

// Extract converts data into text according to its detected category.
// Categories without a strategy return an error; parser panics are caught
// and reported as errors so a corrupt file can never take the caller down.
func (e *Extractor) Extract(data []byte, mimeType, fileName string) (text string, err error) {
	cat := filetype.Detect(mimeType, fileName)
	strategy, ok := e.strategies[cat]
	if !ok {
		return "", fmt.Errorf("no text extraction for category %q (%s)", cat, mimeType)
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("extraction panic for %q: %v", fileName, r)
		}
	}()

	raw, err := strategy.Extract(data, fileName)
	if err != nil {
		return "", err
	}

	out := normalizeText(raw)
	if cat == filetype.CategoryPDF {
		out = joinBrokenWords(out)
	}
	return out, nil
}
