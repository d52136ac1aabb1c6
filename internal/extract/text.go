package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/unicode"
)

var xmlTag = regexp.MustCompile(`<[^>]+>`)

// textStrategy decodes text and markup files. HTML and XML lose their tags,
// JSON is pretty-printed, everything else passes through.
type textStrategy struct{}

func (textStrategy) Extract(data []byte, fileName string) (string, error) {
	text, err := decodeText(data)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case ext == ".html" || ext == ".htm" || looksLikeHTML(text):
		return stripHTML(text)
	case ext == ".xml" || strings.HasPrefix(strings.TrimSpace(text), "<?xml"):
		return stripXML(text), nil
	case ext == ".json" || looksLikeJSON(text):
		return prettyJSON(text), nil
	default:
		return text, nil
	}
}

// DetectEncoding reports the character encoding decodeText would pick for
// data. Files without a byte order mark are treated as UTF-8.
func DetectEncoding(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return "utf-16le"
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return "utf-16be"
	default:
		return "utf-8"
	}
}

// decodeText sniffs a BOM and decodes accordingly: UTF-8, UTF-16LE or
// UTF-16BE, defaulting to UTF-8.
func decodeText(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeUTF16(data, unicode.LittleEndian)
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeUTF16(data, unicode.BigEndian)
	default:
		return string(data), nil
	}
}

func decodeUTF16(data []byte, endian unicode.Endianness) (string, error) {
	decoder := unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder()
	out, err := decoder.Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(out), nil
}

func looksLikeHTML(text string) bool {
	head := strings.ToLower(strings.TrimSpace(text))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func looksLikeJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// stripHTML renders the document's visible text, dropping script and style
// content.
func stripHTML(text string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		// Malformed markup still has salvageable text.
		return stripXML(text), nil
	}
	doc.Find("script, style, noscript").Remove()

	var sb strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		sb.WriteString(sel.Text())
	})
	if sb.Len() == 0 {
		return doc.Text(), nil
	}
	return sb.String(), nil
}

// stripXML removes tags and unescapes common entities.
func stripXML(text string) string {
	return html.UnescapeString(xmlTag.ReplaceAllString(text, " "))
}

// prettyJSON re-serializes valid JSON with indentation; invalid JSON is
// returned untouched.
func prettyJSON(text string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return text
	}
	return buf.String()
}
