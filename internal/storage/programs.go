package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/model"
)

// GetProgram returns the program with the given 7-digit project code.
func (s *SQLiteStorage) GetProgram(ctx context.Context, projectCode string) (*model.Program, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(projectCode, "projectCode"); err != nil {
		return nil, err
	}
	return s.getProgram(ctx, s.db, projectCode)
}

// GetAllPrograms returns every program with its accumulated descriptions.
func (s *SQLiteStorage) GetAllPrograms(ctx context.Context) ([]model.Program, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAllPrograms(ctx, s.db)
}

// SaveProgram upserts a program. Descriptions accumulate; the unique
// constraint keeps exact text+source duplicates out.
func (s *SQLiteStorage) SaveProgram(ctx context.Context, program *model.Program) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProgram(program); err != nil {
		return err
	}
	return s.saveProgram(ctx, s.db, program)
}

func (s *SQLiteStorage) getProgram(ctx context.Context, q querier, projectCode string) (*model.Program, error) {
	var p model.Program
	err := q.QueryRowContext(ctx,
		`SELECT project_code, name FROM programs WHERE project_code = ?`, projectCode).
		Scan(&p.ProjectCode, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: program %s", common.ErrNotFound, projectCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan program: %w", err)
	}

	descs, err := s.loadDescriptions(ctx, q, p.ProjectCode)
	if err != nil {
		return nil, err
	}
	p.Descriptions = descs
	return &p, nil
}

func (s *SQLiteStorage) getAllPrograms(ctx context.Context, q querier) ([]model.Program, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT project_code, name FROM programs ORDER BY project_code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query programs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var programs []model.Program
	for rows.Next() {
		var p model.Program
		if err := rows.Scan(&p.ProjectCode, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate programs: %w", err)
	}

	for i := range programs {
		descs, err := s.loadDescriptions(ctx, q, programs[i].ProjectCode)
		if err != nil {
			return nil, err
		}
		programs[i].Descriptions = descs
	}
	return programs, nil
}

func (s *SQLiteStorage) loadDescriptions(ctx context.Context, q querier, projectCode string) ([]model.ProgramDescription, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT description, source FROM program_descriptions WHERE project_code = ? ORDER BY id`,
		projectCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query program descriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var descs []model.ProgramDescription
	for rows.Next() {
		var d model.ProgramDescription
		if err := rows.Scan(&d.Text, &d.Source); err != nil {
			return nil, fmt.Errorf("failed to scan program description: %w", err)
		}
		descs = append(descs, d)
	}
	return descs, rows.Err()
}

func (s *SQLiteStorage) saveProgram(ctx context.Context, q querier, program *model.Program) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO programs (project_code, name, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project_code) DO UPDATE SET
			name = excluded.name,
			updated_at = CURRENT_TIMESTAMP`,
		program.ProjectCode, program.Name)
	if err != nil {
		return fmt.Errorf("failed to save program %s: %w", program.ProjectCode, err)
	}

	for _, d := range program.Descriptions {
		if _, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO program_descriptions (project_code, description, source)
			VALUES (?, ?, ?)`,
			program.ProjectCode, d.Text, d.Source); err != nil {
			return fmt.Errorf("failed to save program description: %w", err)
		}
	}
	return nil
}
