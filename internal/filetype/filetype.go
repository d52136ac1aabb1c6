// Package filetype maps MIME types and file extensions onto a closed set of
// document categories and records what docbridge can do with each category.
package filetype

import (
	"path/filepath"
	"strings"
)

// Category is a closed set of document kinds used to select extraction and
// validation behavior.
type Category string

const (
	CategoryDocument     Category = "document"
	CategorySpreadsheet  Category = "spreadsheet"
	CategoryPresentation Category = "presentation"
	CategoryPDF          Category = "pdf"
	CategoryText         Category = "text"
	CategoryImage        Category = "image"
	CategoryArchive      Category = "archive"
	CategoryOther        Category = "other"
)

// Info describes one category: which MIME types and extensions map to it,
// whether text extraction is supported, and an optional size ceiling.
// MaxSizeBytes of 0 means no limit.
type Info struct {
	MIMETypes              []string
	Extensions             []string
	SupportsTextExtraction bool
	MaxSizeBytes           int64
}

const (
	MIMEWord      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEWordOld   = "application/msword"
	MIMEExcel     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEExcelOld  = "application/vnd.ms-excel"
	MIMEPower     = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MIMEPowerOld  = "application/vnd.ms-powerpoint"
	MIMEPDF       = "application/pdf"
	MIMEOctet     = "application/octet-stream"
	MIMEPlainText = "text/plain"
)

// registry is the static category table. Lookup order matters only in that
// MIME matching is attempted before extension matching.
var registry = map[Category]Info{
	CategoryDocument: {
		MIMETypes:              []string{MIMEWord, MIMEWordOld, "application/rtf", "application/vnd.oasis.opendocument.text"},
		Extensions:             []string{".docx", ".doc", ".rtf", ".odt"},
		SupportsTextExtraction: true,
		MaxSizeBytes:           50 << 20,
	},
	CategorySpreadsheet: {
		MIMETypes:              []string{MIMEExcel, MIMEExcelOld, "text/csv", "application/vnd.oasis.opendocument.spreadsheet"},
		Extensions:             []string{".xlsx", ".xls", ".csv", ".ods"},
		SupportsTextExtraction: true,
		MaxSizeBytes:           50 << 20,
	},
	CategoryPresentation: {
		MIMETypes:              []string{MIMEPower, MIMEPowerOld, "application/vnd.oasis.opendocument.presentation"},
		Extensions:             []string{".pptx", ".ppt", ".odp"},
		SupportsTextExtraction: true,
		MaxSizeBytes:           100 << 20,
	},
	CategoryPDF: {
		MIMETypes:              []string{MIMEPDF},
		Extensions:             []string{".pdf"},
		SupportsTextExtraction: true,
		MaxSizeBytes:           100 << 20,
	},
	CategoryText: {
		MIMETypes:              []string{MIMEPlainText, "text/markdown", "text/html", "text/xml", "application/xml", "application/json", "text/yaml", "application/x-yaml"},
		Extensions:             []string{".txt", ".md", ".markdown", ".html", ".htm", ".xml", ".json", ".yaml", ".yml", ".log"},
		SupportsTextExtraction: true,
		MaxSizeBytes:           10 << 20,
	},
	CategoryImage: {
		MIMETypes:              []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp", "image/svg+xml", "image/tiff"},
		Extensions:             []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg", ".tif", ".tiff"},
		SupportsTextExtraction: false,
		MaxSizeBytes:           25 << 20,
	},
	CategoryArchive: {
		MIMETypes:              []string{"application/zip", "application/x-tar", "application/gzip", "application/x-7z-compressed", "application/x-rar-compressed"},
		Extensions:             []string{".zip", ".tar", ".gz", ".tgz", ".7z", ".rar"},
		SupportsTextExtraction: false,
		MaxSizeBytes:           200 << 20,
	},
	CategoryOther: {},
}

// Detect resolves a declared MIME type (and optional filename) to a Category.
// MIME match wins; extension is the fallback. Unknown input maps to
// CategoryOther — Detect never fails.
func Detect(mimeType, fileName string) Category {
	mime := NormalizeMIME(mimeType)
	if mime != "" && mime != MIMEOctet {
		for cat, info := range registry {
			for _, m := range info.MIMETypes {
				if m == mime {
					return cat
				}
			}
		}
		// Broad families not worth enumerating one by one.
		if strings.HasPrefix(mime, "text/") {
			return CategoryText
		}
		if strings.HasPrefix(mime, "image/") {
			return CategoryImage
		}
	}

	if ext := strings.ToLower(filepath.Ext(fileName)); ext != "" {
		for cat, info := range registry {
			for _, e := range info.Extensions {
				if e == ext {
					return cat
				}
			}
		}
	}
	return CategoryOther
}

// Lookup returns the Info for a category. Unknown categories get the zero
// Info, which behaves like CategoryOther (no extraction, no size limit).
func Lookup(cat Category) Info {
	return registry[cat]
}

// SupportsTextExtraction reports whether the detected category of the given
// MIME type / filename can be turned into text.
func SupportsTextExtraction(mimeType, fileName string) bool {
	return registry[Detect(mimeType, fileName)].SupportsTextExtraction
}

// WithinSizeLimit reports whether size fits the category's ceiling.
// Categories without a configured limit always fit.
func WithinSizeLimit(cat Category, sizeBytes int64) bool {
	info := registry[cat]
	if info.MaxSizeBytes <= 0 {
		return true
	}
	return sizeBytes <= info.MaxSizeBytes
}

// AllSupportedMIMETypes returns the union of MIME types across all
// categories, for upload accept-filtering.
func AllSupportedMIMETypes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, info := range registry {
		for _, m := range info.MIMETypes {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// AcceptedMIMETypes returns the MIME types registered for one category.
func AcceptedMIMETypes(cat Category) []string {
	return registry[cat].MIMETypes
}

// extensionMIME maps filename extensions to their conventional MIME type.
// Used by the validator's extension/MIME consistency check.
var extensionMIME = map[string]string{
	".docx": MIMEWord, ".doc": MIMEWordOld, ".rtf": "application/rtf", ".odt": "application/vnd.oasis.opendocument.text",
	".xlsx": MIMEExcel, ".xls": MIMEExcelOld, ".csv": "text/csv", ".ods": "application/vnd.oasis.opendocument.spreadsheet",
	".pptx": MIMEPower, ".ppt": MIMEPowerOld, ".odp": "application/vnd.oasis.opendocument.presentation",
	".pdf": MIMEPDF,
	".txt": MIMEPlainText, ".md": "text/markdown", ".markdown": "text/markdown",
	".html": "text/html", ".htm": "text/html", ".xml": "text/xml",
	".json": "application/json", ".yaml": "text/yaml", ".yml": "text/yaml", ".log": MIMEPlainText,
	".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".gif": "image/gif",
	".webp": "image/webp", ".bmp": "image/bmp", ".svg": "image/svg+xml", ".tif": "image/tiff", ".tiff": "image/tiff",
	".zip": "application/zip", ".tar": "application/x-tar", ".gz": "application/gzip",
	".tgz": "application/gzip", ".7z": "application/x-7z-compressed", ".rar": "application/x-rar-compressed",
}

// MIMEForExtension returns the conventional MIME type for a filename
// extension, or "" if the extension is not registered.
func MIMEForExtension(ext string) string {
	return extensionMIME[strings.ToLower(ext)]
}

// NormalizeMIME strips parameters and lowercases a declared MIME type, so
// "Text/Plain; charset=utf-8" compares equal to "text/plain".
func NormalizeMIME(mimeType string) string {
	mime := strings.SplitN(mimeType, ";", 2)[0]
	return strings.TrimSpace(strings.ToLower(mime))
}
