package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openfiscal/fisc/internal/audit"
	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/extract"
	"github.com/openfiscal/fisc/internal/ledger"
	"github.com/openfiscal/fisc/internal/model"
	"github.com/openfiscal/fisc/internal/service"
)

// loadOrgLedger primes the in-memory ledger with the allocations already on
// record for an organization, once per run. Entries for other organizations
// never collide because the org code is part of every key.
func (e *Engine) loadOrgLedger(ctx context.Context, orgCode string) error {
	if orgCode == "" || e.loadedOrgs[orgCode] {
		return nil
	}
	entries, err := e.storage.GetAllocationsByOrganization(ctx, orgCode)
	if err != nil {
		return fmt.Errorf("failed to load allocations for organization %s: %w", orgCode, err)
	}
	e.ledger.LoadEntries(entries)
	e.loadedOrgs[orgCode] = true
	return nil
}

// fundRename records a fund display name a commit would replace. The old
// name is logged on commit; names are never silently dropped.
type fundRename struct {
	FundCode string
	OldName  string
	NewName  string
}

// sectionChanges carries the proposal shown to the reviewer plus the
// bookkeeping that must not take effect unless the section commits. Summary
// counters and rename logs for rejected sections would misstate the run.
type sectionChanges struct {
	proposal        *service.BudgetProposal
	newPrograms     int
	updatedPrograms int
	newFunds        int
	knownFunds      int
	renames         []fundRename
}

// buildBudgetProposal merges extracted programs and funds with what storage
// already holds, so the reviewer sees the post-commit state of each record
// and which ledger amounts an approval would replace. Nothing here mutates
// storage, the ledger, or the run summary.
func (e *Engine) buildBudgetProposal(ctx context.Context, section *model.RawSection, entity *model.CanonicalEntity, extracted *extract.Result) (*sectionChanges, error) {
	changes := &sectionChanges{
		proposal: &service.BudgetProposal{
			Section: section,
			Entity:  entity,
		},
	}

	for _, entry := range extracted.Programs {
		program, err := e.mergeProgram(ctx, entry, section.SourceDocument, changes)
		if err != nil {
			return nil, err
		}
		changes.proposal.Programs = append(changes.proposal.Programs, *program)
	}

	funds, err := e.mergeFunds(ctx, extracted.Allocations, changes)
	if err != nil {
		return nil, err
	}
	changes.proposal.Funds = funds

	changes.proposal.Allocations = extracted.Allocations
	changes.proposal.Overwrites = e.ledger.Preview(extracted.Allocations)
	return changes, nil
}

// mergeProgram folds an extracted entry into the stored program record.
// Names follow last-write-wins; descriptions accumulate with dedup.
func (e *Engine) mergeProgram(ctx context.Context, entry extract.ProgramEntry, source string, changes *sectionChanges) (*model.Program, error) {
	program, err := e.storage.GetProgram(ctx, entry.ProjectCode)
	switch {
	case errors.Is(err, common.ErrNotFound):
		program = &model.Program{ProjectCode: entry.ProjectCode, Name: entry.Name}
		changes.newPrograms++
	case err != nil:
		return nil, fmt.Errorf("failed to load program %s: %w", entry.ProjectCode, err)
	default:
		if entry.Name != "" && entry.Name != program.Name {
			program.Name = entry.Name
		}
		changes.updatedPrograms++
	}

	if entry.Description != "" {
		program.AddDescription(entry.Description, source)
	}
	return program, nil
}

// mergeFunds collects the distinct funds referenced by the allocations,
// classifies new ones into their code-band group, and renames known funds
// when a document spells the name differently. Renames are staged so the
// replaced name can be logged if the section commits.
func (e *Engine) mergeFunds(ctx context.Context, allocations []model.Allocation, changes *sectionChanges) ([]model.Fund, error) {
	seen := make(map[string]*model.Fund)
	var order []string

	for i := range allocations {
		a := &allocations[i]
		if a.FundCode == "" || seen[a.FundCode] != nil {
			continue
		}

		fund, err := e.storage.GetFund(ctx, a.FundCode)
		switch {
		case errors.Is(err, common.ErrNotFound):
			fund = &model.Fund{
				FundCode:  a.FundCode,
				FundName:  a.FundName,
				FundGroup: model.FundGroupFor(a.FundCode),
			}
			changes.newFunds++
		case err != nil:
			return nil, fmt.Errorf("failed to load fund %s: %w", a.FundCode, err)
		default:
			changes.knownFunds++
			if a.FundName != "" && a.FundName != fund.FundName {
				changes.renames = append(changes.renames, fundRename{
					FundCode: a.FundCode,
					OldName:  fund.FundName,
					NewName:  a.FundName,
				})
				fund.FundName = a.FundName
			}
		}

		seen[a.FundCode] = fund
		order = append(order, a.FundCode)
	}

	sort.Strings(order)
	funds := make([]model.Fund, 0, len(order))
	for _, code := range order {
		funds = append(funds, *seen[code])
	}
	return funds, nil
}

// commitSection flushes every approved change for one section in a single
// transaction: the resolved entity (with any new alias and refreshed tree
// fields), touched ancestors, programs, funds, ledger entries, and the
// overwrite audit trail. Nothing is written before this point, and the
// staged counters and rename logs apply only here.
func (e *Engine) commitSection(ctx context.Context, section *model.RawSection, entity *model.CanonicalEntity, changes *sectionChanges, pendingAlias string) error {
	proposal := changes.proposal

	if pendingAlias != "" && !entity.HasAlias(pendingAlias, func(a, b string) bool { return a == b }) {
		entity.Aliases = append(entity.Aliases, pendingAlias)
		e.summary.AliasesAdded++
		slog.Info("Alias recorded", "entity", entity.Name, "alias", pendingAlias)
	}

	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := e.saveEntityChain(ctx, tx, entity); err != nil {
		return err
	}

	for i := range proposal.Programs {
		if err := tx.SaveProgram(ctx, &proposal.Programs[i]); err != nil {
			return fmt.Errorf("failed to save program %s: %w", proposal.Programs[i].ProjectCode, err)
		}
	}
	for i := range proposal.Funds {
		if err := tx.SaveFund(ctx, &proposal.Funds[i]); err != nil {
			return fmt.Errorf("failed to save fund %s: %w", proposal.Funds[i].FundCode, err)
		}
	}

	for _, a := range proposal.Allocations {
		switch e.ledger.Apply(a) {
		case ledger.Inserted:
			e.summary.AllocationsInserted++
		case ledger.Overwritten:
			e.summary.AllocationsOverwritten++
		}
	}
	for _, entry := range e.ledger.DirtyEntries() {
		if err := tx.SaveAllocation(ctx, &entry); err != nil {
			return fmt.Errorf("failed to save allocation %s: %w", entry.Key(), err)
		}
	}
	for _, record := range e.ledger.TakeOverwrites() {
		if err := tx.RecordOverwrite(ctx, &record); err != nil {
			return fmt.Errorf("failed to record overwrite: %w", err)
		}
		e.appendAudit(audit.Event{
			Kind:     audit.KindOverwrite,
			Document: section.SourceDocument,
			Section:  section.Header(),
			Message:  "allocation amount replaced",
			Detail: map[string]any{
				"project":      record.ProjectCode,
				"fund":         record.FundCode,
				"fiscal_year":  record.FiscalYear,
				"funding_type": record.FundingType.String(),
				"old_amount":   record.OldAmount.String(),
				"new_amount":   record.NewAmount.String(),
				"old_source":   record.OldSource,
			},
		})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit section: %w", err)
	}

	e.summary.ProgramsFound += changes.newPrograms
	e.summary.ProgramsUpdated += changes.updatedPrograms
	e.summary.FundsNew += changes.newFunds
	e.summary.FundsFound += changes.knownFunds
	e.summary.FundsUpdated += len(changes.renames)
	for _, rename := range changes.renames {
		e.appendAudit(audit.Event{
			Kind:     audit.KindRename,
			Document: section.SourceDocument,
			Section:  section.Header(),
			Message:  "fund name replaced",
			Detail: map[string]any{
				"fund":     rename.FundCode,
				"old_name": rename.OldName,
				"new_name": rename.NewName,
			},
		})
		slog.Info("Fund renamed",
			"fund", rename.FundCode,
			"old_name", rename.OldName,
			"new_name", rename.NewName)
	}

	e.appendAudit(audit.Event{
		Kind:     audit.KindApproval,
		Document: section.SourceDocument,
		Section:  section.Header(),
		Message:  "section committed",
		Detail: map[string]any{
			"entity":      entity.Name,
			"programs":    len(proposal.Programs),
			"funds":       len(proposal.Funds),
			"allocations": len(proposal.Allocations),
			"overwrites":  len(proposal.Overwrites),
		},
	})
	slog.Info("Committed section",
		"section", section.Header(),
		"entity", entity.Name,
		"allocations", len(proposal.Allocations))
	return nil
}

// saveEntityChain persists the resolved entity and every ancestor whose
// derived tree fields may have moved when the entity was inserted.
func (e *Engine) saveEntityChain(ctx context.Context, tx service.Transaction, entity *model.CanonicalEntity) error {
	name := entity.Name
	for name != "" {
		node := e.tree.Node(name)
		if node == nil {
			break
		}
		if current, ok := e.byName[name]; ok {
			current.OrgLevel = node.Level
			current.SubordinateCount = node.SubordinateCount
			if err := tx.SaveEntity(ctx, current); err != nil {
				return fmt.Errorf("failed to save entity %q: %w", name, err)
			}
		}
		name = node.Parent
	}
	return nil
}
