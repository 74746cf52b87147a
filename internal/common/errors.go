// Package common provides shared utilities and error types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Registry errors.
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCode = errors.New("duplicate organization code")

	// Segmentation errors.
	ErrSegmentation = errors.New("section marker/header count mismatch")

	// Matching errors.
	ErrAmbiguousMatch = errors.New("ambiguous entity match")

	// Hierarchy errors.
	ErrCycle       = errors.New("attach would create a cycle")
	ErrConsistency = errors.New("hierarchy consistency violation")

	// Ingestion errors.
	ErrRejected = errors.New("rejected by reviewer")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the operator.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsFatal reports whether an error must halt the entire run rather than the
// current section or document. Consistency violations mean the tree invariant
// is already broken and nothing further may be persisted.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConsistency)
}
