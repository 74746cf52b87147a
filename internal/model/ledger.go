package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is the stored form of an allocation: the amount currently on
// record for its key plus how many times the key has been observed since the
// last overwrite. Count resets to 1 on every overwrite.
type LedgerEntry struct {
	Allocation
	Count int
}

// OverwriteRecord is the audit trail entry written when a later document
// replaces an amount already on record for the same ledger key.
type OverwriteRecord struct {
	ReplacedAt       time.Time
	OldAmount        decimal.Decimal
	NewAmount        decimal.Decimal
	OrganizationCode string
	ProjectCode      string
	FundCode         string
	OldSource        string
	NewSource        string
	FundingType      FundingType
	FiscalYear       int
}
