// Package audit writes the durable, append-only run log. Every approval,
// rejection, overwrite, tolerated mismatch, and error lands here so each
// decision is auditable after the fact, separate from console output.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Event kinds appended during a run.
const (
	KindApproval   = "approval"
	KindRejection  = "rejection"
	KindOverwrite  = "overwrite"
	KindRename     = "rename"
	KindMismatch   = "mismatch-tolerated"
	KindParseError = "parse-error"
	KindError      = "error"
	KindSummary    = "summary"
)

// Event is one audit record. Events are JSON lines in the run's log file.
type Event struct {
	Time     time.Time      `json:"time"`
	Kind     string         `json:"kind"`
	Document string         `json:"document,omitempty"`
	Section  string         `json:"section,omitempty"`
	Message  string         `json:"message"`
	Detail   map[string]any `json:"detail,omitempty"`
}

// RunLog is an append-only log for a single run, named by its run id.
type RunLog struct {
	file  *os.File
	enc   *json.Encoder
	RunID string
	Path  string
}

// NewRunLog creates the log file under dir, generating a fresh run id.
func NewRunLog(dir string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runID := uuid.New().String()
	path := filepath.Join(dir, fmt.Sprintf("run_%s.jsonl", runID))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}

	return &RunLog{
		file:  file,
		enc:   json.NewEncoder(file),
		RunID: runID,
		Path:  path,
	}, nil
}

// Append writes one event. Append errors are returned, not swallowed; a run
// log that cannot be written is an I/O failure the caller must surface.
func (l *RunLog) Append(event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	if err := l.enc.Encode(event); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Close syncs and closes the log file.
func (l *RunLog) Close() error {
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	return l.file.Close()
}
