package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// spreadsheetStrategy renders workbooks sheet by sheet as CSV under
// "=== SHEET n: name ===" headers. CSV input is already text and passes
// through the text decoder.
type spreadsheetStrategy struct{}

func (spreadsheetStrategy) Extract(data []byte, fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".csv" {
		return decodeText(data)
	}

	xf, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		if ext == ".xls" {
			// Legacy binary workbook; excelize only reads OOXML.
			return decodeText(data)
		}
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer xf.Close()

	sheets := xf.GetSheetList()
	var body strings.Builder
	totalCells := 0

	for i, sheet := range sheets {
		fmt.Fprintf(&body, "=== SHEET %d: %s ===\n", i+1, sheet)

		rows, err := xf.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			body.WriteString("(empty sheet)\n\n")
			continue
		}

		w := csv.NewWriter(&body)
		written := 0
		for rowIdx, row := range rows {
			visible, err := xf.GetRowVisible(sheet, rowIdx+1)
			if err == nil && !visible {
				continue
			}
			if len(row) == 0 {
				continue
			}
			if err := w.Write(row); err != nil {
				continue
			}
			written++
			totalCells += len(row)
		}
		w.Flush()
		if written == 0 {
			body.WriteString("(empty sheet)\n")
		}
		body.WriteString("\n")
	}

	header := fmt.Sprintf("Workbook: %d sheet(s), ~%d cells\n\n", len(sheets), totalCells)
	return header + strings.TrimSpace(body.String()), nil
}
