// Package segment splits a normalized budget document into per-entity
// sections using positional and lexical heuristics, with a self-checking
// validation step before any section is released.
package segment

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/document"
	"github.com/openfiscal/fisc/internal/model"
)

// DefaultMarker is the fixed phrase separating an entity's narrative from its
// expenditure tables. Each entity normally contributes exactly one, which is
// what makes the marker count a cross-check on the header count.
const DefaultMarker = "3-YR EXPENDITURES AND POSITIONS"

const continuedSuffix = "- Continued"

var (
	// "0110   Senate": code and name on one line.
	inlineHeaderRe = regexp.MustCompile(`^(\d{4})\s+([A-Z][^\d].*)$`)
	// Bare 4-digit code; the name follows on the next non-blank line.
	bareCodeRe = regexp.MustCompile(`^(\d{4})$`)
	nameLineRe = regexp.MustCompile(`^[A-Z][A-Za-z]`)
	// Amount rows in expenditure tables: "$42,554", "46,772", or "-".
	amountLineRe = regexp.MustCompile(`^\$?-?[\d,]+$|^-$`)
)

// MismatchError reports a marker/header count gap beyond tolerance. The whole
// document is rejected; the caller escalates rather than guessing sections.
type MismatchError struct {
	DocumentID  string
	MarkerCount int
	HeaderCount int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("document %s: %d expenditure markers vs %d section headers",
		e.DocumentID, e.MarkerCount, e.HeaderCount)
}

func (e *MismatchError) Unwrap() error {
	return common.ErrSegmentation
}

// Result carries the segmented sections plus the counts the validation step
// compared. Tolerated is set when the counts differed by exactly one.
type Result struct {
	Sections    []model.RawSection
	MarkerCount int
	HeaderCount int
	Tolerated   bool
}

// Segmenter scans documents for entity headers and terminating markers.
type Segmenter struct {
	marker string
}

// New creates a segmenter using the default terminating marker.
func New() *Segmenter {
	return &Segmenter{marker: DefaultMarker}
}

// NewWithMarker creates a segmenter with a custom terminating marker.
func NewWithMarker(marker string) *Segmenter {
	return &Segmenter{marker: marker}
}

type header struct {
	code string
	name string
	line int
}

// Segment produces the ordered per-entity sections of a document. It never
// mutates the registry. When marker and header counts disagree by more than
// one, no sections are returned and the error names both counts.
func (s *Segmenter) Segment(doc *document.Document) (*Result, error) {
	markers := s.findMarkers(doc.Lines)
	headers := s.findHeaders(doc.Lines)

	res := &Result{
		MarkerCount: len(markers),
		HeaderCount: len(headers),
	}

	gap := len(markers) - len(headers)
	if gap < 0 {
		gap = -gap
	}
	if gap > 1 {
		return res, &MismatchError{
			DocumentID:  doc.ID,
			MarkerCount: len(markers),
			HeaderCount: len(headers),
		}
	}
	if gap == 1 {
		// Empirically ~2.5% of documents; one entity contributed two
		// expenditure tables. Logged for later analysis, not assumed correct.
		res.Tolerated = true
		slog.Warn("Tolerating marker/header count mismatch",
			"document", doc.ID,
			"markers", len(markers),
			"headers", len(headers))
	}

	for i, h := range headers {
		end := len(doc.Lines)
		if i+1 < len(headers) {
			end = headers[i+1].line
		}
		body := make([]string, end-h.line)
		copy(body, doc.Lines[h.line:end])

		res.Sections = append(res.Sections, model.RawSection{
			SourceDocument: doc.ID,
			HeaderCode:     h.code,
			HeaderName:     h.name,
			Body:           body,
			StartLine:      h.line,
			EndLine:        end,
		})
	}

	return res, nil
}

func (s *Segmenter) findMarkers(lines []string) []int {
	var markers []int
	for i, line := range lines {
		if strings.Contains(line, s.marker) {
			markers = append(markers, i)
		}
	}
	return markers
}

// findHeaders returns the unique entity headers in document order. A header
// is either "{code}{whitespace}{name}" on one line or a bare code followed by
// the name on the next non-blank line. Continuation footers repeat the header
// with a trailing "- Continued" and do not start a new section; nor does a
// repeat of a code already seen.
func (s *Segmenter) findHeaders(lines []string) []header {
	var headers []header
	seen := make(map[string]bool)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if m := inlineHeaderRe.FindStringSubmatch(trimmed); m != nil {
			name, continued := stripContinued(strings.TrimSpace(m[2]))
			if continued || seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			headers = append(headers, header{code: m[1], name: name, line: i})
			continue
		}

		if m := bareCodeRe.FindStringSubmatch(trimmed); m != nil {
			name, nameIdx, ok := nextNameLine(lines, i+1)
			if !ok {
				continue
			}
			// Fund-code rows inside expenditure tables share the two-line
			// shape but their name line is trailed by amount rows.
			if followedByAmount(lines, nameIdx+1) {
				continue
			}
			name, continued := stripContinued(name)
			if continued || seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			headers = append(headers, header{code: m[1], name: name, line: i})
		}
	}

	return headers
}

func stripContinued(name string) (string, bool) {
	if strings.HasSuffix(name, continuedSuffix) {
		return strings.TrimSpace(strings.TrimSuffix(name, continuedSuffix)), true
	}
	return name, false
}

func nextNameLine(lines []string, from int) (string, int, bool) {
	for i := from; i < len(lines) && i < from+2; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if nameLineRe.MatchString(trimmed) {
			return trimmed, i, true
		}
		return "", 0, false
	}
	return "", 0, false
}

func followedByAmount(lines []string, from int) bool {
	for i := from; i < len(lines) && i < from+2; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		return amountLineRe.MatchString(trimmed)
	}
	return false
}
