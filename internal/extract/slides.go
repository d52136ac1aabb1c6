package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PlaceholderLegacySlides marks the binary .ppt format we do not parse.
const PlaceholderLegacySlides = "[Legacy PowerPoint document (.ppt): text extraction is not supported. Convert to .pptx.]"

// Text-run shapes seen in slide markup. Multiple independent passes because
// attribute order and namespacing vary across producers; results are
// deduplicated afterwards.
var slideTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<a:t>([^<]+)</a:t>`),
	regexp.MustCompile(`<a:t\s[^>]*>([^<]+)</a:t>`),
	regexp.MustCompile(`<t>([^<]+)</t>`),
}

// slideFallbackRun is a last-resort pattern for slides whose text runs did
// not match any known tag shape. Best effort only: on corrupt files it can
// pick up binary noise.
var slideFallbackRun = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9 .,;:'"!?%&()/-]{19,}`)

var slidePartName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// presentationStrategy extracts text runs from OOXML slide parts and groups
// them into a pseudo-slide structure.
type presentationStrategy struct{}

func (presentationStrategy) Extract(data []byte, fileName string) (string, error) {
	if strings.ToLower(filepath.Ext(fileName)) == ".ppt" || looksLikeOLE(data) {
		return PlaceholderLegacySlides, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pptx package: %w", err)
	}

	type slidePart struct {
		number int
		markup string
	}
	var parts []slidePart
	for _, f := range zr.File {
		m := slidePartName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			continue
		}
		var buf bytes.Buffer
		_, copyErr := buf.ReadFrom(rc)
		rc.Close()
		if copyErr != nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		parts = append(parts, slidePart{number: n, markup: buf.String()})
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no slide parts found in package")
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].number < parts[j].number })

	var sb strings.Builder
	fmt.Fprintf(&sb, "Presentation: %d slide(s)\n", len(parts))
	for _, part := range parts {
		fragments := extractSlideFragments(part.markup)
		fmt.Fprintf(&sb, "\n--- Slide %d ---\n", part.number)
		if len(fragments) == 0 {
			sb.WriteString("(no text)\n")
			continue
		}
		for _, frag := range fragments {
			sb.WriteString(frag)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

// extractSlideFragments runs the text-run patterns over one slide's markup,
// deduplicates the hits and orders longer fragments first.
func extractSlideFragments(markup string) []string {
	seen := make(map[string]bool)
	var fragments []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		fragments = append(fragments, s)
	}

	for _, re := range slideTextPatterns {
		for _, m := range re.FindAllStringSubmatch(markup, -1) {
			add(m[1])
		}
	}

	if len(fragments) == 0 {
		// Strip markup before the fallback scan so tag names and
		// attribute values do not masquerade as slide text.
		stripped := xmlTag.ReplaceAllString(markup, " ")
		for _, m := range slideFallbackRun.FindAllString(stripped, -1) {
			add(m)
		}
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		return len(fragments[i]) > len(fragments[j])
	})
	return fragments
}
