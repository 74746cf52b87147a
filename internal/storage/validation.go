package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/openfiscal/fisc/internal/model"
)

// Validation errors.
var (
	ErrNilContext  = errors.New("context cannot be nil")
	ErrEmptyValue  = errors.New("value cannot be empty")
	ErrInvalidCode = errors.New("invalid code")
	ErrNilEntity   = errors.New("entity cannot be nil")
	ErrNilProgram  = errors.New("program cannot be nil")
	ErrNilFund     = errors.New("fund cannot be nil")
	ErrNilEntry    = errors.New("ledger entry cannot be nil")
)

var (
	orgCodeRe     = regexp.MustCompile(`^\d{4}$`)
	projectCodeRe = regexp.MustCompile(`^\d{7}$`)
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrEmptyValue, name)
	}
	return nil
}

func validateEntity(entity *model.CanonicalEntity) error {
	if entity == nil {
		return ErrNilEntity
	}
	if entity.Name == "" {
		return fmt.Errorf("%w: entity name", ErrEmptyValue)
	}
	if entity.OrganizationCode != "" && !orgCodeRe.MatchString(entity.OrganizationCode) {
		return fmt.Errorf("%w: organization code %q", ErrInvalidCode, entity.OrganizationCode)
	}
	if entity.OrgLevel < 0 {
		return fmt.Errorf("org level cannot be negative: %d", entity.OrgLevel)
	}
	return nil
}

func validateProgram(program *model.Program) error {
	if program == nil {
		return ErrNilProgram
	}
	if !projectCodeRe.MatchString(program.ProjectCode) {
		return fmt.Errorf("%w: project code %q", ErrInvalidCode, program.ProjectCode)
	}
	return nil
}

func validateFund(fund *model.Fund) error {
	if fund == nil {
		return ErrNilFund
	}
	if err := validateString(fund.FundCode, "fund code"); err != nil {
		return err
	}
	return validateString(fund.FundName, "fund name")
}

func validateLedgerEntry(entry *model.LedgerEntry) error {
	if entry == nil {
		return ErrNilEntry
	}
	if !orgCodeRe.MatchString(entry.OrganizationCode) {
		return fmt.Errorf("%w: organization code %q", ErrInvalidCode, entry.OrganizationCode)
	}
	if !projectCodeRe.MatchString(entry.ProjectCode) {
		return fmt.Errorf("%w: project code %q", ErrInvalidCode, entry.ProjectCode)
	}
	if err := validateString(entry.FundCode, "fund code"); err != nil {
		return err
	}
	if entry.FiscalYear < 2000 {
		return fmt.Errorf("implausible fiscal year %d", entry.FiscalYear)
	}
	if entry.Count < 1 {
		return fmt.Errorf("observation count must be at least 1, got %d", entry.Count)
	}
	return nil
}
