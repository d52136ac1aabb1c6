package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// documentStrategy handles the Word family: OOXML .docx gets real
// extraction, the legacy binary .doc format gets an explicit
// limited-support marker instead of a doomed parse attempt.
type documentStrategy struct{}

func (documentStrategy) Extract(data []byte, fileName string) (string, error) {
	if strings.ToLower(filepath.Ext(fileName)) == ".doc" || looksLikeOLE(data) {
		return fmt.Sprintf("[Legacy Word document (.doc), %d bytes. Text extraction is limited; convert to .docx for full support.]", len(data)), nil
	}
	return extractDOCX(data)
}

// olePrefix is the compound-file signature of pre-OOXML Office formats.
var olePrefix = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func looksLikeOLE(data []byte) bool {
	return bytes.HasPrefix(data, olePrefix)
}

// extractDOCX reads a DOCX package (ZIP+XML) and extracts paragraph text.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx package: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document part: %w", err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return "", fmt.Errorf("word/document.xml not found in package")
}

func parseDocumentXML(r io.Reader) (string, error) {
	var sb strings.Builder
	decoder := xml.NewDecoder(r)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Truncated XML still yielded some text; keep it.
			return sb.String(), nil
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "t":
			var content struct {
				Text string `xml:",chardata"`
			}
			if err := decoder.DecodeElement(&content, &se); err == nil {
				sb.WriteString(content.Text)
			}
		case "p":
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
