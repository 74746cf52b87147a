package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FundingType classifies spending as state operations or local assistance.
type FundingType int

const (
	// FundingStateOperations is direct departmental spending.
	FundingStateOperations FundingType = 0
	// FundingLocalAssistance is pass-through spending to local government.
	FundingLocalAssistance FundingType = 1
)

// String returns the label used in budget documents.
func (f FundingType) String() string {
	switch f {
	case FundingStateOperations:
		return "State Operations"
	case FundingLocalAssistance:
		return "Local Assistance"
	default:
		return fmt.Sprintf("FundingType(%d)", int(f))
	}
}

// Allocation is a single (organization, fiscal year, project, funding type,
// fund) amount observation extracted from an expenditure table. Amounts are
// in thousands of dollars, as printed.
type Allocation struct {
	Amount           decimal.Decimal
	OrganizationCode string
	ProjectCode      string
	FundCode         string
	FundName         string
	SourceDocument   string
	FundingType      FundingType
	FiscalYear       int
}

// Key identifies the ledger slot this allocation lands in.
func (a *Allocation) Key() string {
	return fmt.Sprintf("%s/%d/%s/%d/%s",
		a.OrganizationCode, a.FiscalYear, a.ProjectCode, a.FundingType, a.FundCode)
}
