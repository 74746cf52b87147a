// Package document loads budget text files and normalizes them into ordered
// line sequences for the segmenter.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Document is a normalized budget text file.
type Document struct {
	// ID is the base filename without extension, e.g. "0110_2024_budget".
	ID string
	// OrganizationCode is the 4-digit code embedded in the filename, if any.
	OrganizationCode string
	// Lines is the ordered sequence of normalized text lines.
	Lines []string
	// Year is the document year from the filename, distinct from the fiscal
	// years referenced inside the body.
	Year int
}

var (
	// Upstream extraction emits positional prefixes and page markers:
	//   [block:line:x,y] text
	//   # === PAGE 12 === [size: 612x792]
	positionPrefixRe = regexp.MustCompile(`^\[\d+:\d+:-?\d+,-?\d+\]\s?`)
	pageMarkerRe     = regexp.MustCompile(`^#\s*===\s*PAGE\s+\d+\s*===`)

	codeFromNameRe = regexp.MustCompile(`^(\d{4})_`)

	yearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`_(\d{4})_budget$`),
		regexp.MustCompile(`_(\d{4})$`),
		regexp.MustCompile(`(\d{4})_budget$`),
		regexp.MustCompile(`(\d{4})`),
	}
)

// Load reads a budget text file and normalizes it.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))

	doc := &Document{
		ID:    id,
		Lines: Normalize(string(raw)),
	}

	if m := codeFromNameRe.FindStringSubmatch(id); m != nil {
		doc.OrganizationCode = m[1]
	}
	doc.Year = yearFromID(id)

	return doc, nil
}

// Normalize strips encoding artifacts and extraction markup from raw text and
// splits it into lines. Line content is preserved apart from the stripped
// prefixes and trailing whitespace; blank lines survive so that downstream
// index arithmetic matches the source file.
func Normalize(raw string) []string {
	raw = strings.TrimPrefix(raw, "\uFEFF")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if pageMarkerRe.MatchString(strings.TrimSpace(line)) {
			out = append(out, "")
			continue
		}
		line = positionPrefixRe.ReplaceAllString(line, "")
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return out
}

// yearFromID pulls the document year out of a file identifier, trying the
// filename conventions in order of specificity.
func yearFromID(id string) int {
	for _, re := range yearPatterns {
		if m := re.FindStringSubmatch(id); m != nil {
			year, err := strconv.Atoi(m[1])
			if err == nil && year >= 2000 {
				return year
			}
		}
	}
	return 0
}
