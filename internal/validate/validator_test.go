package validate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/soochol/docbridge/internal/filetype"
)

func TestValidateEmptyFile(t *testing.T) {
	v := New()
	result := v.Validate(nil, "text/plain", "a.txt", Options{})

	if result.Valid {
		t.Error("empty file must be invalid")
	}
	if !result.HasIssue(CodeEmptyFile) {
		t.Error("expected EMPTY_FILE issue")
	}
	if result.Meta.Risk != RiskHigh {
		t.Errorf("risk = %v, want high", result.Meta.Risk)
	}
}

func TestValidateSuspiciousExtension(t *testing.T) {
	v := New()
	result := v.Validate([]byte("hello"), "application/octet-stream", "report.exe", Options{})

	if result.Valid {
		t.Error("executable extension must be invalid")
	}
	if !result.HasIssue(CodeSuspiciousExtension) {
		t.Error("expected SUSPICIOUS_EXTENSION issue")
	}
	if result.Meta.Risk != RiskHigh {
		t.Errorf("risk = %v, want high", result.Meta.Risk)
	}
}

func TestValidateDoubleExtensionIsWarningOnly(t *testing.T) {
	v := New()
	result := v.Validate([]byte("data"), "application/gzip", "a.tar.gz", Options{})

	if !result.HasWarning(CodeDoubleExtension) {
		t.Error("expected DOUBLE_EXTENSION warning")
	}
	if !result.Valid {
		t.Errorf("double extension alone must not invalidate: %+v", result.Issues)
	}
}

func TestValidateNameChecks(t *testing.T) {
	v := New()

	tests := []struct {
		name     string
		fileName string
		code     string
		valid    bool
	}{
		{"too long", strings.Repeat("a", 256) + ".txt", CodeNameTooLong, false},
		{"control chars", "bad\x01name.txt", CodeInvalidNameChars, false},
		{"reserved device", "CON.txt", CodeReservedName, false},
		{"hidden file", ".secret.txt", CodeHiddenFile, true},
		{"clean", "notes.txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate([]byte("content"), "text/plain", tt.fileName, Options{})
			if result.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (%+v)", result.Valid, tt.valid, result.Issues)
			}
			if tt.code != "" && !result.HasIssue(tt.code) && !result.HasWarning(tt.code) {
				t.Errorf("expected finding %s", tt.code)
			}
		})
	}
}

func TestValidateExecutableContent(t *testing.T) {
	v := New()
	mz := append([]byte("MZ"), make([]byte, 62)...)

	result := v.Validate(mz, "application/octet-stream", "innocent.bin", Options{})
	if result.Valid || !result.HasIssue(CodeExecutableContent) {
		t.Errorf("MZ header must invalidate: %+v", result.Issues)
	}

	allowed := v.Validate(mz, "application/octet-stream", "innocent.bin", Options{AllowExecutables: true})
	if allowed.HasIssue(CodeExecutableContent) {
		t.Error("AllowExecutables must suppress the executable check")
	}

	elf := append([]byte{0x7F, 'E', 'L', 'F'}, make([]byte, 60)...)
	if r := v.Validate(elf, "application/octet-stream", "x.bin", Options{}); !r.HasIssue(CodeExecutableContent) {
		t.Error("ELF header must be flagged")
	}
}

func TestValidateScriptContentWarning(t *testing.T) {
	v := New()
	result := v.Validate([]byte(`<p onclick=alert(1)>hi</p>`), "text/html", "page.html", Options{})

	if !result.HasWarning(CodeScriptContent) {
		t.Errorf("expected SCRIPT_CONTENT warning: %+v", result.Issues)
	}
	if !result.Valid {
		t.Error("script warning must not invalidate")
	}
	// Security-category finding forces high risk even without errors.
	if result.Meta.Risk != RiskHigh {
		t.Errorf("risk = %v, want high", result.Meta.Risk)
	}
}

func TestValidatePasswordProtectedPDF(t *testing.T) {
	v := New()
	data := []byte("%PDF-1.7\n1 0 obj\n<< /Encrypt 2 0 R >>")
	result := v.Validate(data, "application/pdf", "locked.pdf", Options{})

	if !result.HasWarning(CodePasswordProtected) {
		t.Error("expected PASSWORD_PROTECTED warning")
	}
	if !result.Valid {
		t.Error("password protection is a warning, not an error")
	}
}

func TestValidateEmbeddedMacroMarkers(t *testing.T) {
	v := New()
	data := append(bytes.Repeat([]byte{0x50, 0x4B, 0x03, 0x04}, 64), []byte("word/vbaProject.bin")...)
	result := v.Validate(data, filetype.MIMEWord, "macro.docx", Options{})

	if !result.HasWarning(CodeEmbeddedObjects) {
		t.Errorf("expected EMBEDDED_OBJECTS warning: %+v", result.Issues)
	}
}

func TestValidateStrictMIME(t *testing.T) {
	v := New()

	// Unknown MIME with a .docx extension: the category comes from the
	// extension, and the declared type is outside its accepted set.
	loose := v.Validate([]byte("x"), "application/x-weird", "doc.docx", Options{})
	if loose.HasIssue(CodeMIMENotAccepted) {
		t.Error("non-strict mode must not emit MIME_NOT_ACCEPTED")
	}

	strict := v.Validate([]byte("x"), "application/x-weird", "doc.docx", Options{StrictMIME: true})
	if !strict.HasIssue(CodeMIMENotAccepted) {
		t.Errorf("strict mode must flag an unaccepted declared type: %+v", strict.Issues)
	}

	// A matching declared type passes strict mode.
	ok := v.Validate([]byte("x"), filetype.MIMEWord, "doc.docx", Options{StrictMIME: true})
	if ok.HasIssue(CodeMIMENotAccepted) {
		t.Error("accepted MIME type must pass strict mode")
	}
}

func TestValidateGenericMIMEWarning(t *testing.T) {
	v := New()
	result := v.Validate([]byte("x"), "application/octet-stream", "blob.bin", Options{})
	if !result.HasWarning(CodeGenericMIME) {
		t.Error("expected GENERIC_MIME warning")
	}
}

func TestValidateStructureChecks(t *testing.T) {
	v := New()

	// Not opted in: no structure warnings.
	noOpt := v.Validate([]byte("not a pdf"), "application/pdf", "x.pdf", Options{})
	if noOpt.HasWarning(CodeStructureMismatch) {
		t.Error("structure check must be opt-in")
	}

	bad := v.Validate([]byte("not a pdf"), "application/pdf", "x.pdf", Options{CheckStructure: true})
	if !bad.HasWarning(CodeStructureMismatch) {
		t.Error("expected STRUCTURE_MISMATCH for a PDF without %PDF header")
	}
	if !bad.Valid {
		t.Error("structure mismatch is a warning, not an error")
	}

	good := v.Validate([]byte("%PDF-1.4 ..."), "application/pdf", "x.pdf", Options{CheckStructure: true})
	if good.HasWarning(CodeStructureMismatch) {
		t.Error("valid PDF header should pass the structure check")
	}

	img := v.Validate([]byte("GIF89a..."), "image/png", "pic.png", Options{CheckStructure: true})
	if !img.HasWarning(CodeStructureMismatch) {
		t.Error("GIF bytes declared as PNG should warn")
	}
}

func TestValidateConsistencyWarning(t *testing.T) {
	v := New()
	result := v.Validate([]byte("%PDF-1.4"), "text/plain", "report.pdf", Options{})

	if !result.HasWarning(CodeExtensionMIMEConfict) {
		t.Error("expected EXTENSION_MIME_MISMATCH warning")
	}
	if !result.Valid {
		t.Error("consistency mismatch must not invalidate")
	}
}

func TestValidateSizeLimits(t *testing.T) {
	v := New()

	over := make([]byte, (10<<20)+1) // text limit is 10 MiB
	result := v.Validate(over, "text/plain", "big.txt", Options{})
	if result.Valid || !result.HasIssue(CodeFileTooLarge) {
		t.Error("expected FILE_TOO_LARGE error")
	}
	if result.Meta.WithinLimits {
		t.Error("Meta.WithinLimits should be false")
	}

	near := make([]byte, 9<<20)
	warnResult := v.Validate(near, "text/plain", "near.txt", Options{})
	if !warnResult.HasWarning(CodeNearSizeLimit) {
		t.Error("expected NEAR_SIZE_LIMIT warning above 80% of the limit")
	}
	if !warnResult.Valid {
		t.Error("near-limit is a warning only")
	}
}

func TestValidateSuspiciouslySmallOfficeFile(t *testing.T) {
	v := New()
	result := v.Validate([]byte("PK"), filetype.MIMEWord, "tiny.docx", Options{})
	if !result.HasWarning(CodeSuspiciousSize) {
		t.Error("expected SUSPICIOUS_SIZE warning for a 2-byte docx")
	}
}

func TestRiskMediumFromWarnings(t *testing.T) {
	v := New()
	// Hidden file + double extension + generic MIME + small office size
	// stack up more than two warnings with no errors or security findings.
	result := v.Validate([]byte("PK"), "application/octet-stream", ".draft.backup.docx", Options{})

	if !result.Valid {
		t.Fatalf("expected valid result, issues: %+v", result.Issues)
	}
	if got := result.warningCount(); got <= 2 {
		t.Fatalf("test premise broken: %d warnings", got)
	}
	if result.Meta.Risk != RiskMedium {
		t.Errorf("risk = %v, want medium", result.Meta.Risk)
	}
}

func TestValidateCleanFile(t *testing.T) {
	v := New()
	result := v.Validate([]byte("plain old notes"), "text/plain", "notes.txt", Options{})

	if !result.Valid || len(result.Issues) != 0 || len(result.Warnings) != 0 {
		t.Errorf("clean file produced findings: %+v / %+v", result.Issues, result.Warnings)
	}
	if result.Meta.Risk != RiskLow {
		t.Errorf("risk = %v, want low", result.Meta.Risk)
	}
	if !result.Meta.SupportsTextExtraction {
		t.Error("text file supports extraction")
	}
	if result.Meta.FileCategory != filetype.CategoryText {
		t.Errorf("category = %v", result.Meta.FileCategory)
	}
	if result.Meta.EstimatedProcessingMS <= 0 {
		t.Error("expected a processing-time estimate")
	}
}
