package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openfiscal/fisc/internal/model"
)

// requirementsMarker opens the per-program detail that the state machine
// walks. It follows the fiscal-year header row.
const requirementsMarker = "PROGRAM REQUIREMENTS"

var (
	fiscalYearRe  = regexp.MustCompile(`(\d{4})-\d{2}`)
	projectLineRe = regexp.MustCompile(`^(\d{7})(?:\s*-\s*(\S.*))?$`)
	fundCodeRe    = regexp.MustCompile(`^(\d{4})$`)
	amountRe      = regexp.MustCompile(`^\$?-?[\d,]+$|^-$`)
	numericRe     = regexp.MustCompile(`^[\d,.$\s-]+$`)
)

// parserState is one state of the expenditure line walker. Each state has a
// single transition function.
type parserState int

const (
	stateSeekFundingType parserState = iota
	stateSeekFundCode
	stateSeekAmounts
)

// expenditureParser interprets the line stream of a detailed-expenditure
// block as a small state machine: funding-type line, optional new
// project-code line, fund-code line plus fund-name line, then exactly three
// amount lines bound to the three fiscal years in header order.
type expenditureParser struct {
	section *model.RawSection

	lines []string
	i     int
	state parserState

	years       [3]int
	fundingType model.FundingType
	projectCode string

	pendingFundCode string
	pendingFundName string
	amounts         []decimal.Decimal

	allocations   []model.Allocation
	failures      []string
	headerMissing bool
}

func newExpenditureParser(section *model.RawSection) *expenditureParser {
	code := section.HeaderCode
	return &expenditureParser{
		section:     section,
		projectCode: model.ExpandProjectCode(code),
		state:       stateSeekFundingType,
	}
}

func (p *expenditureParser) parse(lines []string) ([]model.Allocation, []string) {
	start, ok := p.locateHeader(lines)
	if !ok {
		p.headerMissing = true
		return nil, nil
	}

	p.lines = lines
	for p.i = start; p.i < len(p.lines); {
		line := strings.TrimSpace(p.lines[p.i])
		if line == "" {
			p.i++
			continue
		}

		var consumed bool
		switch p.state {
		case stateSeekFundingType:
			consumed = p.onSeekFundingType(line)
		case stateSeekFundCode:
			consumed = p.onSeekFundCode(line)
		case stateSeekAmounts:
			consumed = p.onSeekAmounts(line)
		}
		if consumed {
			p.i++
		}
	}

	// An amount triple still open at end of block is incomplete.
	if p.state == stateSeekAmounts {
		p.abortGroup("block ended before three amounts")
	}

	return p.allocations, p.failures
}

// locateHeader finds the 3-fiscal-year header row and the requirements
// marker after it, returning the index to start walking from.
func (p *expenditureParser) locateHeader(lines []string) (int, bool) {
	yearRow := -1
	for i, line := range lines {
		m := fiscalYearRe.FindAllStringSubmatch(line, -1)
		if len(m) >= 3 {
			for j := 0; j < 3; j++ {
				var year int
				fmt.Sscanf(m[j][1], "%d", &year)
				p.years[j] = year
			}
			yearRow = i
			break
		}
	}
	if yearRow < 0 {
		return 0, false
	}
	for i := yearRow + 1; i < len(lines); i++ {
		if strings.Contains(lines[i], requirementsMarker) {
			return i + 1, true
		}
	}
	// No requirements marker; walk from just past the year row.
	return yearRow + 1, true
}

// onSeekFundingType waits for a funding-type line, tracking project-code
// lines seen along the way; everything else in this state is narrative or
// totals and is skipped.
func (p *expenditureParser) onSeekFundingType(line string) bool {
	if ft, ok := fundingTypeFor(line); ok {
		p.fundingType = ft
		p.state = stateSeekFundCode
		return true
	}

	if m := projectLineRe.FindStringSubmatch(line); m != nil {
		p.projectCode = m[1]
		return true
	}
	// A bare 4-digit code ahead of any funding type is a program code;
	// fund codes only appear after a funding-type line.
	if m := fundCodeRe.FindStringSubmatch(line); m != nil {
		if _, nameIdx, ok := p.lookaheadName(p.i + 1); ok && !p.amountFollows(nameIdx+1) {
			p.projectCode = model.ExpandProjectCode(m[1])
			p.i = nameIdx
		}
		return true
	}

	return true
}

// onSeekFundCode dispatches on the line shape: a new funding-type line
// switches classification, a 7-digit line switches project, and a 4-digit
// line is either a fund code or a 4-digit program code, told apart by what
// follows the next name line.
func (p *expenditureParser) onSeekFundCode(line string) bool {
	if ft, ok := fundingTypeFor(line); ok {
		p.fundingType = ft
		return true
	}

	if m := projectLineRe.FindStringSubmatch(line); m != nil {
		p.projectCode = m[1]
		return true
	}

	if m := fundCodeRe.FindStringSubmatch(line); m != nil {
		name, nameIdx, ok := p.lookaheadName(p.i + 1)
		if !ok {
			p.failures = append(p.failures,
				fmt.Sprintf("fund %s: missing fund name", m[1]))
			return true
		}
		if !p.amountFollows(nameIdx + 1) {
			// A program code with its title on the following line.
			p.projectCode = model.ExpandProjectCode(m[1])
			p.i = nameIdx
			return true
		}
		p.pendingFundCode = m[1]
		p.pendingFundName = name
		p.amounts = p.amounts[:0]
		p.state = stateSeekAmounts
		p.i = nameIdx
		return true
	}

	return true
}

// onSeekAmounts collects exactly three consecutive amount lines. Any other
// line first aborts the open group, then is reprocessed in seek-fund-code.
func (p *expenditureParser) onSeekAmounts(line string) bool {
	if amountRe.MatchString(line) {
		amount, err := parseAmount(line)
		if err != nil {
			p.abortGroup(err.Error())
			return false
		}
		p.amounts = append(p.amounts, amount)
		if len(p.amounts) == 3 {
			p.emitGroup()
			p.state = stateSeekFundCode
		}
		return true
	}

	p.abortGroup(fmt.Sprintf("fund %s: expected amount, got %q", p.pendingFundCode, line))
	return false
}

func (p *expenditureParser) emitGroup() {
	for idx, amount := range p.amounts {
		p.allocations = append(p.allocations, model.Allocation{
			OrganizationCode: p.section.HeaderCode,
			FiscalYear:       p.years[idx],
			ProjectCode:      p.projectCode,
			FundingType:      p.fundingType,
			FundCode:         p.pendingFundCode,
			FundName:         p.pendingFundName,
			Amount:           amount,
			SourceDocument:   p.section.SourceDocument,
		})
	}
	p.clearPending()
}

func (p *expenditureParser) abortGroup(reason string) {
	p.failures = append(p.failures, reason)
	p.clearPending()
	p.state = stateSeekFundCode
}

func (p *expenditureParser) clearPending() {
	p.pendingFundCode = ""
	p.pendingFundName = ""
	p.amounts = p.amounts[:0]
}

// lookaheadName returns the next non-blank, non-numeric line at or after
// from, which is where a fund name must sit.
func (p *expenditureParser) lookaheadName(from int) (string, int, bool) {
	for i := from; i < len(p.lines) && i < from+2; i++ {
		trimmed := strings.TrimSpace(p.lines[i])
		if trimmed == "" {
			continue
		}
		if numericRe.MatchString(trimmed) {
			return "", 0, false
		}
		return trimmed, i, true
	}
	return "", 0, false
}

func (p *expenditureParser) amountFollows(from int) bool {
	for i := from; i < len(p.lines) && i < from+2; i++ {
		trimmed := strings.TrimSpace(p.lines[i])
		if trimmed == "" {
			continue
		}
		return amountRe.MatchString(trimmed)
	}
	return false
}

func fundingTypeFor(line string) (model.FundingType, bool) {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "totals") {
		return 0, false
	}
	if strings.Contains(lower, "state operations") {
		return model.FundingStateOperations, true
	}
	if strings.Contains(lower, "local assistance") {
		return model.FundingLocalAssistance, true
	}
	return 0, false
}

// parseAmount reads a table amount: dollar-prefixed, plain numeric with
// comma grouping, or a bare dash meaning zero.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "-" || s == "$-" {
		return decimal.Zero, nil
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable amount %q: %w", s, err)
	}
	return amount, nil
}
