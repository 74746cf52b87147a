// Package storage implements the persistence sink over SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openfiscal/fisc/internal/model"
	"github.com/openfiscal/fisc/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// querier abstracts *sql.DB and *sql.Tx so every operation can run either
// standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The pipeline is the single writer; SQLite doesn't benefit from more.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqliteTransaction{tx: tx, storage: s}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) GetEntity(ctx context.Context, name string) (*model.CanonicalEntity, error) {
	return t.storage.getEntity(ctx, t.tx, name)
}

func (t *sqliteTransaction) GetEntityByCode(ctx context.Context, code string) (*model.CanonicalEntity, error) {
	return t.storage.getEntityByCode(ctx, t.tx, code)
}

func (t *sqliteTransaction) GetAllEntities(ctx context.Context) ([]model.CanonicalEntity, error) {
	return t.storage.getAllEntities(ctx, t.tx)
}

func (t *sqliteTransaction) SaveEntity(ctx context.Context, entity *model.CanonicalEntity) error {
	return t.storage.saveEntity(ctx, t.tx, entity)
}

func (t *sqliteTransaction) GetProgram(ctx context.Context, projectCode string) (*model.Program, error) {
	return t.storage.getProgram(ctx, t.tx, projectCode)
}

func (t *sqliteTransaction) GetAllPrograms(ctx context.Context) ([]model.Program, error) {
	return t.storage.getAllPrograms(ctx, t.tx)
}

func (t *sqliteTransaction) SaveProgram(ctx context.Context, program *model.Program) error {
	return t.storage.saveProgram(ctx, t.tx, program)
}

func (t *sqliteTransaction) GetFund(ctx context.Context, fundCode string) (*model.Fund, error) {
	return t.storage.getFund(ctx, t.tx, fundCode)
}

func (t *sqliteTransaction) GetAllFunds(ctx context.Context) ([]model.Fund, error) {
	return t.storage.getAllFunds(ctx, t.tx)
}

func (t *sqliteTransaction) SaveFund(ctx context.Context, fund *model.Fund) error {
	return t.storage.saveFund(ctx, t.tx, fund)
}

func (t *sqliteTransaction) GetAllocationsByOrganization(ctx context.Context, orgCode string) ([]model.LedgerEntry, error) {
	return t.storage.getAllocationsByOrganization(ctx, t.tx, orgCode)
}

func (t *sqliteTransaction) SaveAllocation(ctx context.Context, entry *model.LedgerEntry) error {
	return t.storage.saveAllocation(ctx, t.tx, entry)
}

func (t *sqliteTransaction) RecordOverwrite(ctx context.Context, record *model.OverwriteRecord) error {
	return t.storage.recordOverwrite(ctx, t.tx, record)
}

func (t *sqliteTransaction) IsProcessed(ctx context.Context, documentID string) (bool, error) {
	return t.storage.isProcessed(ctx, t.tx, documentID)
}

func (t *sqliteTransaction) MarkProcessed(ctx context.Context, documentID string, at time.Time) error {
	return t.storage.markProcessed(ctx, t.tx, documentID, at)
}

func (t *sqliteTransaction) ClearProcessed(ctx context.Context) error {
	return t.storage.clearProcessed(ctx, t.tx)
}

func (t *sqliteTransaction) LastProcessed(ctx context.Context) (string, time.Time, error) {
	return t.storage.lastProcessed(ctx, t.tx)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
