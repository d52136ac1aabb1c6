package validate

import "github.com/soochol/docbridge/internal/filetype"

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueCategory classifies what aspect of the file an issue concerns.
type IssueCategory string

const (
	CategorySecurity IssueCategory = "security"
	CategoryFormat   IssueCategory = "format"
	CategorySize     IssueCategory = "size"
	CategoryContent  IssueCategory = "content"
	CategoryName     IssueCategory = "name"
)

// RiskLevel is the coarse summary of how suspicious a file looks.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Issue is one problem found during validation.
type Issue struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Severity Severity      `json:"severity"`
	Category IssueCategory `json:"category"`
}

// Warning is an advisory finding that never blocks validity.
type Warning struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Meta summarizes what validation learned about the file.
type Meta struct {
	FileCategory           filetype.Category `json:"fileCategory"`
	DetectedMIMEType       string            `json:"detectedMimeType"`
	SizeBytes              int64             `json:"sizeBytes"`
	WithinLimits           bool              `json:"isWithinLimits"`
	SupportsTextExtraction bool              `json:"supportsTextExtraction"`
	EstimatedProcessingMS  int64             `json:"estimatedProcessingTimeMs"`
	Risk                   RiskLevel         `json:"riskLevel"`
}

// Result is the full validation report. Valid is true iff no error-severity
// issue was found; warnings never block.
type Result struct {
	Valid    bool      `json:"isValid"`
	Issues   []Issue   `json:"issues"`
	Warnings []Warning `json:"warnings"`
	Meta     Meta      `json:"metadata"`
}

func (r *Result) addIssue(code, message string, sev Severity, cat IssueCategory) {
	r.Issues = append(r.Issues, Issue{Code: code, Message: message, Severity: sev, Category: cat})
}

func (r *Result) addWarning(code, message, suggestion string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: message, Suggestion: suggestion})
}

// HasIssue reports whether an issue with the given code was recorded.
func (r *Result) HasIssue(code string) bool {
	for _, issue := range r.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// HasWarning reports whether a warning (of either kind) with the given code
// was recorded.
func (r *Result) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	for _, issue := range r.Issues {
		if issue.Code == code && issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// errorCount and warningCount feed the risk score.
func (r *Result) errorCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *Result) warningCount() int {
	n := len(r.Warnings)
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

func (r *Result) hasSecurityIssue() bool {
	for _, issue := range r.Issues {
		if issue.Category == CategorySecurity {
			return true
		}
	}
	return false
}
