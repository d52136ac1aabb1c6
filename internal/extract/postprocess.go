package extract

import (
	"regexp"
	"strings"
)

var (
	tooManyNewlines = regexp.MustCompile(`\n{3,}`)
	repeatedTabs    = regexp.MustCompile(`\t{2,}`)
	hyphenBreak     = regexp.MustCompile(`(\w)-\n(\w)`)
	midwordBreak    = regexp.MustCompile(`([a-z,;])\n([a-z])`)
)

// normalizeText applies the uniform post-extraction cleanup: line endings to
// \n, at most one blank line in a row, single tabs, trimmed ends.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = tooManyNewlines.ReplaceAllString(s, "\n\n")
	s = repeatedTabs.ReplaceAllString(s, "\t")
	return strings.TrimSpace(s)
}

// joinBrokenWords repairs the line-break artifacts PDF text layers produce:
// hyphenated words split across lines are rejoined, and a lone newline in
// the middle of a lowercase run becomes a space.
func joinBrokenWords(s string) string {
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	s = midwordBreak.ReplaceAllString(s, "$1 $2")
	return s
}
