package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PlaceholderNoTextLayer is returned for PDFs without a recoverable text
// layer (typically scanned or image-only documents).
const PlaceholderNoTextLayer = "[No extractable text: this PDF appears to contain only scanned images.]"

// pdfStrategy extracts the text layer of a PDF page by page.
type pdfStrategy struct{}

func (pdfStrategy) Extract(data []byte, _ string) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		// An explicit marker beats an empty string the caller could
		// mistake for a failed call.
		return PlaceholderNoTextLayer, nil
	}
	return text, nil
}
