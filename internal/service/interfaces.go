// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/openfiscal/fisc/internal/model"
)

// Storage defines the contract for the persistence sink. The pipeline is the
// single writer; reads back out of the store feed the website and the
// inspection commands.
type Storage interface {
	// Entity operations
	GetEntity(ctx context.Context, name string) (*model.CanonicalEntity, error)
	GetEntityByCode(ctx context.Context, code string) (*model.CanonicalEntity, error)
	GetAllEntities(ctx context.Context) ([]model.CanonicalEntity, error)
	SaveEntity(ctx context.Context, entity *model.CanonicalEntity) error

	// Program operations
	GetProgram(ctx context.Context, projectCode string) (*model.Program, error)
	GetAllPrograms(ctx context.Context) ([]model.Program, error)
	SaveProgram(ctx context.Context, program *model.Program) error

	// Fund operations
	GetFund(ctx context.Context, fundCode string) (*model.Fund, error)
	GetAllFunds(ctx context.Context) ([]model.Fund, error)
	SaveFund(ctx context.Context, fund *model.Fund) error

	// Ledger operations
	GetAllocationsByOrganization(ctx context.Context, orgCode string) ([]model.LedgerEntry, error)
	SaveAllocation(ctx context.Context, entry *model.LedgerEntry) error
	RecordOverwrite(ctx context.Context, record *model.OverwriteRecord) error

	// Idempotency log
	IsProcessed(ctx context.Context, documentID string) (bool, error)
	MarkProcessed(ctx context.Context, documentID string, at time.Time) error
	ClearProcessed(ctx context.Context) error
	LastProcessed(ctx context.Context) (string, time.Time, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// Decision is a reviewer's verdict on a proposed change.
type Decision string

const (
	// DecisionApprove commits the proposed change.
	DecisionApprove Decision = "approve"
	// DecisionReject skips the proposed change and continues.
	DecisionReject Decision = "reject"
	// DecisionAbort rejects at the document level: remaining sections in the
	// document are skipped, already-committed sections stay committed.
	DecisionAbort Decision = "abort"
)

// EntityAction describes what the engine wants to do with a section header.
type EntityAction string

const (
	// ActionUseMatch links the section to the matched registry entity.
	ActionUseMatch EntityAction = "use-match"
	// ActionAddAlias links the section and records the header as a new alias.
	ActionAddAlias EntityAction = "add-alias"
	// ActionCreateEntity creates a new registry entity from the header.
	ActionCreateEntity EntityAction = "create-entity"
	// ActionResolveAmbiguous asks the reviewer to pick among tied candidates.
	ActionResolveAmbiguous EntityAction = "resolve-ambiguous"
)

// EntityProposal is presented to the reviewer before any registry mutation.
type EntityProposal struct {
	Section  *model.RawSection
	Match    *model.MatchResult
	Proposed *model.CanonicalEntity
	Action   EntityAction
}

// EntityDecision is the reviewer's verdict on an entity proposal. For
// ambiguous matches an approval carries the chosen candidate; an edit
// carries a corrected entity.
type EntityDecision struct {
	Chosen   *model.CanonicalEntity
	Edited   *model.CanonicalEntity
	Decision Decision
}

// BudgetProposal summarizes the program, fund, and allocation changes the
// engine wants to commit for one section.
type BudgetProposal struct {
	Section     *model.RawSection
	Entity      *model.CanonicalEntity
	Programs    []model.Program
	Funds       []model.Fund
	Allocations []model.Allocation
	// Overwrites lists allocation keys that already hold a different amount.
	Overwrites []model.OverwriteRecord
}

// Approver is the human approval gate. Processing suspends on these calls;
// no registry, program, fund, or ledger mutation is committed without a
// prior decision. A test double returns scripted decisions.
type Approver interface {
	ReviewEntityChange(ctx context.Context, proposal EntityProposal) (EntityDecision, error)
	ReviewBudgetChanges(ctx context.Context, proposal BudgetProposal) (Decision, error)
}

// RunSummary shows the results of a reconciliation run.
type RunSummary struct {
	Duration               time.Duration
	DocumentsProcessed     int
	DocumentsSkipped       int
	SectionsProcessed      int
	SectionsRejected       int
	EntitiesMatched        int
	EntitiesCreated        int
	AliasesAdded           int
	ProgramsFound          int
	ProgramsUpdated        int
	FundsFound             int
	FundsNew               int
	FundsUpdated           int
	AllocationsInserted    int
	AllocationsOverwritten int
}
