package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/model"
)

// GetFund returns the fund with the given code.
func (s *SQLiteStorage) GetFund(ctx context.Context, fundCode string) (*model.Fund, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(fundCode, "fundCode"); err != nil {
		return nil, err
	}
	return s.getFund(ctx, s.db, fundCode)
}

// GetAllFunds returns every fund ordered by code.
func (s *SQLiteStorage) GetAllFunds(ctx context.Context) ([]model.Fund, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAllFunds(ctx, s.db)
}

// SaveFund upserts a fund. Name and description are last-write-wins.
func (s *SQLiteStorage) SaveFund(ctx context.Context, fund *model.Fund) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFund(fund); err != nil {
		return err
	}
	return s.saveFund(ctx, s.db, fund)
}

func (s *SQLiteStorage) getFund(ctx context.Context, q querier, fundCode string) (*model.Fund, error) {
	var f model.Fund
	var group, desc sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT fund_code, fund_name, fund_group, description FROM funds WHERE fund_code = ?`,
		fundCode).Scan(&f.FundCode, &f.FundName, &group, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: fund %s", common.ErrNotFound, fundCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan fund: %w", err)
	}
	f.FundGroup = group.String
	f.Description = desc.String
	return &f, nil
}

func (s *SQLiteStorage) getAllFunds(ctx context.Context, q querier) ([]model.Fund, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT fund_code, fund_name, fund_group, description FROM funds ORDER BY fund_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var funds []model.Fund
	for rows.Next() {
		var f model.Fund
		var group, desc sql.NullString
		if err := rows.Scan(&f.FundCode, &f.FundName, &group, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		f.FundGroup = group.String
		f.Description = desc.String
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

func (s *SQLiteStorage) saveFund(ctx context.Context, q querier, fund *model.Fund) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO funds (fund_code, fund_name, fund_group, description, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(fund_code) DO UPDATE SET
			fund_name = excluded.fund_name,
			fund_group = excluded.fund_group,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP`,
		fund.FundCode, fund.FundName, fund.FundGroup, fund.Description)
	if err != nil {
		return fmt.Errorf("failed to save fund %s: %w", fund.FundCode, err)
	}
	return nil
}
