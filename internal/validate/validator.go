// Package validate screens file content for safety, size and format
// consistency before it enters the ingestion pipeline. Checks are
// independent and accumulate into one report; nothing short-circuits, so a
// caller always sees the complete picture.
package validate

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/soochol/docbridge/internal/filetype"
)

// Options tunes validation behavior per call.
type Options struct {
	StrictMIME       bool // error when the declared MIME type is outside the category's accepted set
	CheckStructure   bool // opt-in format magic-byte verification
	AllowExecutables bool // suppress the executable-content error
}

// Validator runs the check suite. The zero value is usable.
type Validator struct{}

func New() *Validator { return &Validator{} }

// Issue codes. Stable identifiers consumed by the UI layer.
const (
	CodeEmptyFile            = "EMPTY_FILE"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeNearSizeLimit        = "NEAR_SIZE_LIMIT"
	CodeSuspiciousSize       = "SUSPICIOUS_SIZE"
	CodeNameTooLong          = "NAME_TOO_LONG"
	CodeInvalidNameChars     = "INVALID_NAME_CHARS"
	CodeReservedName         = "RESERVED_NAME"
	CodeSuspiciousExtension  = "SUSPICIOUS_EXTENSION"
	CodeDoubleExtension      = "DOUBLE_EXTENSION"
	CodeHiddenFile           = "HIDDEN_FILE"
	CodeDangerousMIME        = "DANGEROUS_MIME"
	CodeMIMENotAccepted      = "MIME_NOT_ACCEPTED"
	CodeGenericMIME          = "GENERIC_MIME"
	CodeExecutableContent    = "EXECUTABLE_CONTENT"
	CodeScriptContent        = "SCRIPT_CONTENT"
	CodeEmbeddedObjects      = "EMBEDDED_OBJECTS"
	CodePasswordProtected    = "PASSWORD_PROTECTED"
	CodeStructureMismatch    = "STRUCTURE_MISMATCH"
	CodeExtensionMIMEConfict = "EXTENSION_MIME_MISMATCH"
)

const maxNameLength = 255

var (
	invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	reservedNames    = map[string]bool{
		"con": true, "prn": true, "aux": true, "nul": true,
		"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
		"com6": true, "com7": true, "com8": true, "com9": true,
		"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
		"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
	}
	deniedExtensions = map[string]bool{
		".exe": true, ".dll": true, ".com": true, ".bat": true, ".cmd": true,
		".msi": true, ".scr": true, ".pif": true, ".sh": true, ".ps1": true,
		".vbs": true, ".vbe": true, ".jse": true, ".wsf": true, ".jar": true,
		".apk": true, ".app": true,
	}
	deniedMIMETypes = map[string]bool{
		"application/x-msdownload":     true,
		"application/x-executable":     true,
		"application/x-dosexec":        true,
		"application/x-sh":             true,
		"application/x-msdos-program":  true,
		"application/vnd.ms-cab-compressed": true,
	}

	scriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script\b`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)\son\w+\s*=`),
		regexp.MustCompile(`(?i)\beval\s*\(`),
	}

	embeddedObjectMarkers = [][]byte{
		[]byte("vbaProject.bin"),
		[]byte("ObjectPool"),
		[]byte("\x01Ole10Native"),
	}
)

// Executable magic bytes: DOS/PE, ELF and the Mach-O variants.
var executableMagic = [][]byte{
	{'M', 'Z'},
	{0x7F, 'E', 'L', 'F'},
	{0xFE, 0xED, 0xFA, 0xCE},
	{0xFE, 0xED, 0xFA, 0xCF},
	{0xCE, 0xFA, 0xED, 0xFE},
	{0xCF, 0xFA, 0xED, 0xFE},
}

// minStructuredSize is the smallest plausible size for packaged Office
// formats; anything below it is suspicious, not necessarily broken.
const minStructuredSize = 256

// Validate runs every check against the file and returns the accumulated
// report with a risk level.
func (v *Validator) Validate(data []byte, mimeType, fileName string, opts Options) *Result {
	result := &Result{}

	category := filetype.Detect(mimeType, fileName)
	size := int64(len(data))

	v.checkName(result, fileName)
	v.checkSize(result, category, size)
	v.checkMIME(result, category, mimeType, opts)
	v.checkSecurity(result, data, category, opts)
	if opts.CheckStructure {
		v.checkStructure(result, data, category, mimeType)
	}
	v.checkConsistency(result, mimeType, fileName)

	result.Meta = Meta{
		FileCategory:           category,
		DetectedMIMEType:       mimeType,
		SizeBytes:              size,
		WithinLimits:           filetype.WithinSizeLimit(category, size),
		SupportsTextExtraction: filetype.SupportsTextExtraction(mimeType, fileName),
		EstimatedProcessingMS:  estimateProcessingMS(category, size),
	}
	result.Valid = result.errorCount() == 0
	result.Meta.Risk = v.scoreRisk(result)
	return result
}

func (v *Validator) checkName(r *Result, fileName string) {
	if fileName == "" {
		return
	}
	if len(fileName) > maxNameLength {
		r.addIssue(CodeNameTooLong, fmt.Sprintf("file name exceeds %d characters", maxNameLength), SeverityError, CategoryName)
	}
	if invalidNameChars.MatchString(fileName) {
		r.addIssue(CodeInvalidNameChars, "file name contains control or reserved characters", SeverityError, CategoryName)
	}

	base := strings.ToLower(strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)))
	if reservedNames[base] {
		r.addIssue(CodeReservedName, fmt.Sprintf("%q is a reserved device name", base), SeverityError, CategoryName)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if deniedExtensions[ext] {
		r.addIssue(CodeSuspiciousExtension, fmt.Sprintf("extension %q is not allowed", ext), SeverityError, CategorySecurity)
	}

	// report.pdf.exe-style names, but also benign a.tar.gz: warn, never block.
	trimmed := strings.TrimSuffix(fileName, ext)
	if ext != "" && filepath.Ext(trimmed) != "" {
		r.addWarning(CodeDoubleExtension, "file name has multiple extensions", "verify the file is what its name claims")
	}

	if strings.HasPrefix(filepath.Base(fileName), ".") {
		r.addWarning(CodeHiddenFile, "file name starts with a dot (hidden file)", "")
	}
}

func (v *Validator) checkSize(r *Result, category filetype.Category, size int64) {
	if size == 0 {
		r.addIssue(CodeEmptyFile, "file is empty", SeverityError, CategorySize)
		return
	}

	limit := filetype.Lookup(category).MaxSizeBytes
	if limit > 0 {
		if size > limit {
			r.addIssue(CodeFileTooLarge, fmt.Sprintf("file size %d exceeds the %d byte limit for %s", size, limit, category), SeverityError, CategorySize)
		} else if size > limit*8/10 {
			r.addWarning(CodeNearSizeLimit, "file size is above 80% of the category limit", "")
		}
	}

	switch category {
	case filetype.CategoryDocument, filetype.CategorySpreadsheet, filetype.CategoryPresentation:
		if size < minStructuredSize {
			r.addWarning(CodeSuspiciousSize, fmt.Sprintf("%d bytes is unusually small for a packaged Office document", size), "the file may be truncated")
		}
	}
}

func (v *Validator) checkMIME(r *Result, category filetype.Category, mimeType string, opts Options) {
	mime := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if mime == "" {
		return
	}
	if deniedMIMETypes[mime] {
		r.addIssue(CodeDangerousMIME, fmt.Sprintf("MIME type %q is not allowed", mime), SeverityError, CategorySecurity)
	}
	if mime == filetype.MIMEOctet {
		r.addWarning(CodeGenericMIME, "generic octet-stream MIME type; detection may be unreliable", "supply a specific content type")
	}

	if opts.StrictMIME && category != filetype.CategoryOther {
		accepted := false
		for _, m := range filetype.AcceptedMIMETypes(category) {
			if m == mime {
				accepted = true
				break
			}
		}
		if !accepted && mime != filetype.MIMEOctet {
			r.addIssue(CodeMIMENotAccepted, fmt.Sprintf("MIME type %q is not accepted for category %s", mime, category), SeverityError, CategoryFormat)
		}
	}
}

func (v *Validator) checkSecurity(r *Result, data []byte, category filetype.Category, opts Options) {
	if len(data) == 0 {
		return
	}

	if !opts.AllowExecutables {
		for _, magic := range executableMagic {
			if bytes.HasPrefix(data, magic) {
				r.addIssue(CodeExecutableContent, "content starts with an executable header", SeverityError, CategorySecurity)
				break
			}
		}
	}

	if category == filetype.CategoryText {
		head := data
		if len(head) > 64<<10 {
			head = head[:64<<10]
		}
		for _, re := range scriptPatterns {
			if re.Match(head) {
				r.addIssue(CodeScriptContent, "text content contains script-like patterns", SeverityWarning, CategorySecurity)
				break
			}
		}
	} else {
		for _, marker := range embeddedObjectMarkers {
			if bytes.Contains(data, marker) {
				r.addIssue(CodeEmbeddedObjects, "content contains embedded object or macro markers", SeverityWarning, CategorySecurity)
				break
			}
		}
	}

	if category == filetype.CategoryPDF && bytes.Contains(data, []byte("/Encrypt")) {
		r.addWarning(CodePasswordProtected, "PDF appears to be password protected", "remove the password before ingestion")
	}
	if bytes.Contains(data, []byte("EncryptedPackage")) {
		r.addWarning(CodePasswordProtected, "Office document appears to be password protected", "remove the password before ingestion")
	}
}

var imageMagic = map[string][]byte{
	"image/png":  {0x89, 'P', 'N', 'G'},
	"image/jpeg": {0xFF, 0xD8, 0xFF},
	"image/gif":  []byte("GIF8"),
	"image/bmp":  []byte("BM"),
	"image/webp": []byte("RIFF"),
}

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// checkStructure verifies format magic bytes. Mismatches are warnings, not
// errors: some encoders omit canonical headers.
func (v *Validator) checkStructure(r *Result, data []byte, category filetype.Category, mimeType string) {
	switch category {
	case filetype.CategoryPDF:
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			r.addWarning(CodeStructureMismatch, "PDF content does not start with %PDF", "")
		}
	case filetype.CategoryDocument, filetype.CategorySpreadsheet, filetype.CategoryPresentation:
		if !bytes.HasPrefix(data, zipMagic) && !looksLikeLegacyOffice(data) {
			r.addWarning(CodeStructureMismatch, "Office document lacks a ZIP package signature", "")
		}
	case filetype.CategoryImage:
		mime := strings.ToLower(strings.SplitN(mimeType, ";", 2)[0])
		if magic, ok := imageMagic[strings.TrimSpace(mime)]; ok && !bytes.HasPrefix(data, magic) {
			r.addWarning(CodeStructureMismatch, fmt.Sprintf("content does not match the %s signature", mime), "")
		}
	}
}

var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

func looksLikeLegacyOffice(data []byte) bool {
	return bytes.HasPrefix(data, oleMagic)
}

func (v *Validator) checkConsistency(r *Result, mimeType, fileName string) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" || mimeType == "" {
		return
	}
	conventional := filetype.MIMEForExtension(ext)
	declared := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if conventional != "" && declared != "" && declared != filetype.MIMEOctet && conventional != declared {
		r.addWarning(CodeExtensionMIMEConfict,
			fmt.Sprintf("extension %s suggests %s but %s was declared", ext, conventional, declared),
			"extensions are unreliable; the declared type wins")
	}
}

// scoreRisk: any error or any security finding is high; more than two
// warnings is medium; otherwise low.
func (v *Validator) scoreRisk(r *Result) RiskLevel {
	if r.errorCount() > 0 || r.hasSecurityIssue() {
		return RiskHigh
	}
	if r.warningCount() > 2 {
		return RiskMedium
	}
	return RiskLow
}

// estimateProcessingMS is a rough planning figure: throughput scaled by how
// expensive the category's parser is.
func estimateProcessingMS(category filetype.Category, size int64) int64 {
	perMiB := int64(50)
	switch category {
	case filetype.CategoryPDF:
		perMiB = 200
	case filetype.CategoryDocument, filetype.CategoryPresentation:
		perMiB = 150
	case filetype.CategorySpreadsheet:
		perMiB = 250
	}
	est := size * perMiB / (1 << 20)
	if est < 5 {
		est = 5
	}
	return est
}
