package filetype

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		fileName string
		want     Category
	}{
		{"pdf by mime", "application/pdf", "", CategoryPDF},
		{"pdf by mime with params", "application/pdf; charset=binary", "", CategoryPDF},
		{"docx by mime", MIMEWord, "report.docx", CategoryDocument},
		{"legacy doc by mime", "application/msword", "", CategoryDocument},
		{"xlsx by mime", MIMEExcel, "", CategorySpreadsheet},
		{"csv by mime", "text/csv", "", CategorySpreadsheet},
		{"pptx by mime", MIMEPower, "", CategoryPresentation},
		{"plain text", "text/plain", "", CategoryText},
		{"unlisted text family", "text/x-go", "", CategoryText},
		{"unlisted image family", "image/x-icon", "", CategoryImage},
		{"octet-stream falls back to extension", "application/octet-stream", "x.pdf", CategoryPDF},
		{"empty mime falls back to extension", "", "slides.PPTX", CategoryPresentation},
		{"extension case-insensitive", "application/octet-stream", "DATA.Xlsx", CategorySpreadsheet},
		{"unknown mime no filename", "weird/type", "", CategoryOther},
		{"unknown mime unknown extension", "weird/type", "a.xyz", CategoryOther},
		{"no inputs", "", "", CategoryOther},
		{"archive by extension", "application/octet-stream", "bundle.tar", CategoryArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.mime, tt.fileName)
			if got != tt.want {
				t.Errorf("Detect(%q, %q) = %v, want %v", tt.mime, tt.fileName, got, tt.want)
			}
		})
	}
}

func TestSupportsTextExtraction(t *testing.T) {
	tests := []struct {
		mime     string
		fileName string
		want     bool
	}{
		{"application/pdf", "", true},
		{"text/plain", "", true},
		{MIMEWord, "", true},
		{"image/png", "", false},
		{"application/zip", "", false},
		{"weird/type", "", false},
	}

	for _, tt := range tests {
		if got := SupportsTextExtraction(tt.mime, tt.fileName); got != tt.want {
			t.Errorf("SupportsTextExtraction(%q, %q) = %v, want %v", tt.mime, tt.fileName, got, tt.want)
		}
	}
}

func TestWithinSizeLimit(t *testing.T) {
	if !WithinSizeLimit(CategoryPDF, 100<<20) {
		t.Error("100MB PDF should be exactly at the limit")
	}
	if WithinSizeLimit(CategoryPDF, 100<<20+1) {
		t.Error("PDF above the limit should be rejected")
	}
	if !WithinSizeLimit(CategoryOther, 1<<40) {
		t.Error("category without a limit must always fit")
	}
	if !WithinSizeLimit(Category("unknown"), 123) {
		t.Error("unknown category must always fit")
	}
}

func TestAllSupportedMIMETypes(t *testing.T) {
	all := AllSupportedMIMETypes()
	seen := make(map[string]bool)
	for _, m := range all {
		if seen[m] {
			t.Errorf("duplicate MIME type in union: %q", m)
		}
		seen[m] = true
	}
	for _, want := range []string{"application/pdf", MIMEWord, MIMEExcel, MIMEPower, "text/plain", "image/png", "application/zip"} {
		if !seen[want] {
			t.Errorf("expected %q in supported MIME types", want)
		}
	}
}

func TestMIMEForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".pdf", "application/pdf"},
		{".PDF", "application/pdf"},
		{".jpeg", "image/jpeg"},
		{".docx", MIMEWord},
		{".xyz", ""},
	}
	for _, tt := range tests {
		if got := MIMEForExtension(tt.ext); got != tt.want {
			t.Errorf("MIMEForExtension(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}
