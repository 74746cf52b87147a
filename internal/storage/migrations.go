package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. Failure to reach it is fatal.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Canonical registry: entities, aliases, programs, funds",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS entities (
					name TEXT PRIMARY KEY,
					organization_code TEXT UNIQUE,
					canonical_name TEXT NOT NULL,
					parent_agency TEXT,
					org_level INTEGER NOT NULL DEFAULT 0,
					budget_status TEXT NOT NULL DEFAULT 'active',
					description TEXT,
					subordinate_count INTEGER NOT NULL DEFAULT 0,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_entities_parent ON entities(parent_agency)`,

				`CREATE TABLE IF NOT EXISTS entity_aliases (
					entity_name TEXT NOT NULL,
					alias TEXT NOT NULL,
					position INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (entity_name, alias),
					FOREIGN KEY (entity_name) REFERENCES entities(name)
				)`,

				`CREATE TABLE IF NOT EXISTS programs (
					project_code TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS program_descriptions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					project_code TEXT NOT NULL,
					description TEXT NOT NULL,
					source TEXT NOT NULL,
					UNIQUE (project_code, description, source),
					FOREIGN KEY (project_code) REFERENCES programs(project_code)
				)`,

				`CREATE TABLE IF NOT EXISTS funds (
					fund_code TEXT PRIMARY KEY,
					fund_name TEXT NOT NULL,
					fund_group TEXT,
					description TEXT,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Budget ledger and idempotency log",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// Amounts are decimal strings; REAL would corrupt them.
				`CREATE TABLE IF NOT EXISTS allocations (
					organization_code TEXT NOT NULL,
					fiscal_year INTEGER NOT NULL,
					project_code TEXT NOT NULL,
					funding_type INTEGER NOT NULL,
					fund_code TEXT NOT NULL,
					fund_name TEXT,
					amount TEXT NOT NULL,
					observation_count INTEGER NOT NULL DEFAULT 1,
					source_document TEXT,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (organization_code, fiscal_year, project_code, funding_type, fund_code)
				)`,
				`CREATE INDEX idx_allocations_org ON allocations(organization_code)`,
				`CREATE INDEX idx_allocations_year ON allocations(fiscal_year)`,

				`CREATE TABLE IF NOT EXISTS processed_files (
					document_id TEXT PRIMARY KEY,
					processed_at DATETIME NOT NULL
				)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Allocation overwrite audit trail",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS allocation_overwrites (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					organization_code TEXT NOT NULL,
					fiscal_year INTEGER NOT NULL,
					project_code TEXT NOT NULL,
					funding_type INTEGER NOT NULL,
					fund_code TEXT NOT NULL,
					old_amount TEXT NOT NULL,
					new_amount TEXT NOT NULL,
					old_source TEXT,
					new_source TEXT,
					replaced_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_overwrites_key ON allocation_overwrites(organization_code, fiscal_year, project_code)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion, applying each
// pending migration in its own transaction.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		slog.Info("Applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}
