package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/model"
)

// GetEntity returns the entity with the given name.
func (s *SQLiteStorage) GetEntity(ctx context.Context, name string) (*model.CanonicalEntity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.getEntity(ctx, s.db, name)
}

// GetEntityByCode returns the entity holding the given organization code.
func (s *SQLiteStorage) GetEntityByCode(ctx context.Context, code string) (*model.CanonicalEntity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}
	return s.getEntityByCode(ctx, s.db, code)
}

// GetAllEntities returns every registry entity, aliases included.
func (s *SQLiteStorage) GetAllEntities(ctx context.Context) ([]model.CanonicalEntity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getAllEntities(ctx, s.db)
}

// SaveEntity upserts an entity and replaces its alias set.
func (s *SQLiteStorage) SaveEntity(ctx context.Context, entity *model.CanonicalEntity) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntity(entity); err != nil {
		return err
	}
	return s.saveEntity(ctx, s.db, entity)
}

const entityColumns = `name, organization_code, canonical_name, parent_agency,
	org_level, budget_status, description, subordinate_count`

func (s *SQLiteStorage) getEntity(ctx context.Context, q querier, name string) (*model.CanonicalEntity, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE name = ?`, name)
	return s.scanEntity(ctx, q, row)
}

func (s *SQLiteStorage) getEntityByCode(ctx context.Context, q querier, code string) (*model.CanonicalEntity, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE organization_code = ?`, code)
	return s.scanEntity(ctx, q, row)
}

func (s *SQLiteStorage) scanEntity(ctx context.Context, q querier, row *sql.Row) (*model.CanonicalEntity, error) {
	var e model.CanonicalEntity
	var code, parent, desc sql.NullString
	err := row.Scan(&e.Name, &code, &e.CanonicalName, &parent,
		&e.OrgLevel, &e.BudgetStatus, &desc, &e.SubordinateCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: entity", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}
	e.OrganizationCode = code.String
	e.ParentAgency = parent.String
	e.Description = desc.String

	aliases, err := s.loadAliases(ctx, q, e.Name)
	if err != nil {
		return nil, err
	}
	e.Aliases = aliases
	return &e, nil
}

func (s *SQLiteStorage) getAllEntities(ctx context.Context, q querier) ([]model.CanonicalEntity, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []model.CanonicalEntity
	for rows.Next() {
		var e model.CanonicalEntity
		var code, parent, desc sql.NullString
		if err := rows.Scan(&e.Name, &code, &e.CanonicalName, &parent,
			&e.OrgLevel, &e.BudgetStatus, &desc, &e.SubordinateCount); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.OrganizationCode = code.String
		e.ParentAgency = parent.String
		e.Description = desc.String
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}

	// Aliases in a second pass; sqlite with one connection dislikes nested
	// open row sets.
	for i := range entities {
		aliases, err := s.loadAliases(ctx, q, entities[i].Name)
		if err != nil {
			return nil, err
		}
		entities[i].Aliases = aliases
	}
	return entities, nil
}

func (s *SQLiteStorage) loadAliases(ctx context.Context, q querier, entityName string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT alias FROM entity_aliases WHERE entity_name = ? ORDER BY position, alias`, entityName)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

func (s *SQLiteStorage) saveEntity(ctx context.Context, q querier, entity *model.CanonicalEntity) error {
	code := sql.NullString{String: entity.OrganizationCode, Valid: entity.OrganizationCode != ""}

	_, err := q.ExecContext(ctx, `
		INSERT INTO entities (name, organization_code, canonical_name, parent_agency,
			org_level, budget_status, description, subordinate_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			organization_code = excluded.organization_code,
			canonical_name = excluded.canonical_name,
			parent_agency = excluded.parent_agency,
			org_level = excluded.org_level,
			budget_status = excluded.budget_status,
			description = excluded.description,
			subordinate_count = excluded.subordinate_count,
			updated_at = CURRENT_TIMESTAMP`,
		entity.Name, code, entity.CanonicalName, entity.ParentAgency,
		entity.OrgLevel, entity.BudgetStatus, entity.Description, entity.SubordinateCount)
	if err != nil {
		return fmt.Errorf("failed to save entity %q: %w", entity.Name, err)
	}

	if _, err := q.ExecContext(ctx,
		`DELETE FROM entity_aliases WHERE entity_name = ?`, entity.Name); err != nil {
		return fmt.Errorf("failed to clear aliases for %q: %w", entity.Name, err)
	}
	for i, alias := range entity.Aliases {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO entity_aliases (entity_name, alias, position) VALUES (?, ?, ?)`,
			entity.Name, alias, i); err != nil {
			return fmt.Errorf("failed to save alias %q: %w", alias, err)
		}
	}
	return nil
}
