package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openfiscal/fisc/internal/model"
)

// GetAllocationsByOrganization returns every ledger entry recorded for an
// organization code.
func (s *SQLiteStorage) GetAllocationsByOrganization(ctx context.Context, orgCode string) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(orgCode, "orgCode"); err != nil {
		return nil, err
	}
	return s.getAllocationsByOrganization(ctx, s.db, orgCode)
}

// SaveAllocation upserts a ledger entry. The primary key enforces at most
// one entry per (org, year, project, fundingType, fundCode) tuple; a
// conflicting insert replaces amount and observation count outright.
func (s *SQLiteStorage) SaveAllocation(ctx context.Context, entry *model.LedgerEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLedgerEntry(entry); err != nil {
		return err
	}
	return s.saveAllocation(ctx, s.db, entry)
}

// RecordOverwrite appends an allocation overwrite to the audit trail.
func (s *SQLiteStorage) RecordOverwrite(ctx context.Context, record *model.OverwriteRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.recordOverwrite(ctx, s.db, record)
}

func (s *SQLiteStorage) getAllocationsByOrganization(ctx context.Context, q querier, orgCode string) ([]model.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT organization_code, fiscal_year, project_code, funding_type,
			fund_code, fund_name, amount, observation_count, source_document
		FROM allocations WHERE organization_code = ?
		ORDER BY fiscal_year, project_code, funding_type, fund_code`, orgCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var amount string
		var fundingType int
		if err := rows.Scan(&e.OrganizationCode, &e.FiscalYear, &e.ProjectCode,
			&fundingType, &e.FundCode, &e.FundName, &amount, &e.Count, &e.SourceDocument); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		e.FundingType = model.FundingType(fundingType)
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q for %s: %w", amount, e.Key(), err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStorage) saveAllocation(ctx context.Context, q querier, entry *model.LedgerEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO allocations (organization_code, fiscal_year, project_code,
			funding_type, fund_code, fund_name, amount, observation_count,
			source_document, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(organization_code, fiscal_year, project_code, funding_type, fund_code)
		DO UPDATE SET
			fund_name = excluded.fund_name,
			amount = excluded.amount,
			observation_count = excluded.observation_count,
			source_document = excluded.source_document,
			updated_at = CURRENT_TIMESTAMP`,
		entry.OrganizationCode, entry.FiscalYear, entry.ProjectCode,
		int(entry.FundingType), entry.FundCode, entry.FundName,
		entry.Amount.String(), entry.Count, entry.SourceDocument)
	if err != nil {
		return fmt.Errorf("failed to save allocation %s: %w", entry.Key(), err)
	}
	return nil
}

func (s *SQLiteStorage) recordOverwrite(ctx context.Context, q querier, record *model.OverwriteRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO allocation_overwrites (organization_code, fiscal_year,
			project_code, funding_type, fund_code, old_amount, new_amount,
			old_source, new_source, replaced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.OrganizationCode, record.FiscalYear, record.ProjectCode,
		int(record.FundingType), record.FundCode,
		record.OldAmount.String(), record.NewAmount.String(),
		record.OldSource, record.NewSource, record.ReplacedAt)
	if err != nil {
		return fmt.Errorf("failed to record overwrite: %w", err)
	}
	return nil
}
