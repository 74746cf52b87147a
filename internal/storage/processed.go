package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IsProcessed reports whether a document id is already in the idempotency log.
func (s *SQLiteStorage) IsProcessed(ctx context.Context, documentID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(documentID, "documentID"); err != nil {
		return false, err
	}
	return s.isProcessed(ctx, s.db, documentID)
}

// MarkProcessed appends a document id to the idempotency log.
func (s *SQLiteStorage) MarkProcessed(ctx context.Context, documentID string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(documentID, "documentID"); err != nil {
		return err
	}
	return s.markProcessed(ctx, s.db, documentID, at)
}

// ClearProcessed empties the idempotency log (the force-reprocess flag).
func (s *SQLiteStorage) ClearProcessed(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.clearProcessed(ctx, s.db)
}

// LastProcessed returns the most recently logged document id and timestamp.
// Returns empty values when the log is empty.
func (s *SQLiteStorage) LastProcessed(ctx context.Context) (string, time.Time, error) {
	if err := validateContext(ctx); err != nil {
		return "", time.Time{}, err
	}
	return s.lastProcessed(ctx, s.db)
}

func (s *SQLiteStorage) isProcessed(ctx context.Context, q querier, documentID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processed_files WHERE document_id = ?`, documentID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check processed log: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStorage) markProcessed(ctx context.Context, q querier, documentID string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO processed_files (document_id, processed_at) VALUES (?, ?)`,
		documentID, at)
	if err != nil {
		return fmt.Errorf("failed to mark %q processed: %w", documentID, err)
	}
	return nil
}

func (s *SQLiteStorage) clearProcessed(ctx context.Context, q querier) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM processed_files`); err != nil {
		return fmt.Errorf("failed to clear processed log: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) lastProcessed(ctx context.Context, q querier) (string, time.Time, error) {
	var id string
	var at time.Time
	err := q.QueryRowContext(ctx,
		`SELECT document_id, processed_at FROM processed_files ORDER BY processed_at DESC, document_id DESC LIMIT 1`).
		Scan(&id, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read processed log: %w", err)
	}
	return id, at, nil
}
