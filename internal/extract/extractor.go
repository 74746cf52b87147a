// Package extract parses the program-description and detailed-expenditure
// subsections of a raw section into program and fund records with provenance.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/openfiscal/fisc/internal/model"
)

// Fixed subsection header phrases. The summary-table marker terminates the
// description block: the three-year summary table sits between the
// descriptions and the detailed expenditures and its rows are not prose.
const (
	programBlockHeader     = "PROGRAM DESCRIPTIONS"
	summaryTableMarker     = "3-YR EXPENDITURES AND POSITIONS"
	expenditureBlockHeader = "DETAILED EXPENDITURES BY PROGRAM"
)

// ProgramEntry is one (projectCode, name, description) triple extracted from
// a program-description block. Codes are already expanded to 7 digits.
type ProgramEntry struct {
	ProjectCode string
	Name        string
	Description string
}

// Result carries everything extracted from one section. Failures lists
// allocation groups abandoned over structural parse errors; they are local
// to the group, never fatal to the section.
type Result struct {
	Programs    []ProgramEntry
	Allocations []model.Allocation
	Failures    []string
}

// Extractor locates the program and expenditure subsections of a section.
// Absence of either block is legitimate; sections may carry only one kind.
type Extractor struct{}

// New creates an extractor.
func New() *Extractor {
	return &Extractor{}
}

var programEntryRe = regexp.MustCompile(`^(\d{4}|\d{7})\s*-\s*(\S.*)$`)

// Extract parses both subsections of a section.
func (x *Extractor) Extract(section *model.RawSection) *Result {
	res := &Result{}

	if block := x.findBlock(section.Body, programBlockHeader, summaryTableMarker, expenditureBlockHeader); block != nil {
		res.Programs = x.parsePrograms(block)
	}

	if block := x.findBlock(section.Body, expenditureBlockHeader); block != nil {
		parser := newExpenditureParser(section)
		res.Allocations, res.Failures = parser.parse(block)
		if parser.headerMissing {
			slog.Warn("Expenditure block without fiscal-year header row",
				"document", section.SourceDocument,
				"section", section.Header())
		}
	}

	return res
}

// findBlock returns the lines strictly between the header phrase and the
// first terminating phrase (or section end when none occurs). Nil when the
// header phrase does not occur.
func (x *Extractor) findBlock(lines []string, headerPhrase string, terminators ...string) []string {
	start := -1
	for i, line := range lines {
		if strings.Contains(line, headerPhrase) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	end := len(lines)
scan:
	for i := start; i < len(lines); i++ {
		for _, terminator := range terminators {
			if strings.Contains(lines[i], terminator) {
				end = i
				break scan
			}
		}
	}
	return lines[start:end]
}

// parsePrograms walks a program-description block collecting code-name lines
// and the description text beneath each. A 4-digit program code is widened
// to 7 digits; 7-digit codes are sub-programs and pass through.
func (x *Extractor) parsePrograms(lines []string) []ProgramEntry {
	var entries []ProgramEntry
	var current *ProgramEntry
	var desc []string

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(strings.Join(desc, " "))
		entries = append(entries, *current)
		current = nil
		desc = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := programEntryRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			current = &ProgramEntry{
				ProjectCode: model.ExpandProjectCode(m[1]),
				Name:        strings.TrimSpace(m[2]),
			}
			continue
		}
		if current != nil && trimmed != "" {
			desc = append(desc, trimmed)
		}
	}
	flush()

	return entries
}
