// Package engine orchestrates the document reconciliation pipeline:
// segmentation, entity matching, hierarchy maintenance, extraction, and
// ledger accumulation, suspended on a human approval gate before every
// committed mutation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/openfiscal/fisc/internal/audit"
	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/document"
	"github.com/openfiscal/fisc/internal/extract"
	"github.com/openfiscal/fisc/internal/hierarchy"
	"github.com/openfiscal/fisc/internal/ledger"
	"github.com/openfiscal/fisc/internal/match"
	"github.com/openfiscal/fisc/internal/model"
	"github.com/openfiscal/fisc/internal/segment"
	"github.com/openfiscal/fisc/internal/service"
)

// Config holds the engine's tunable parameters.
type Config struct {
	Matching match.Config
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{Matching: match.DefaultConfig()}
}

// Engine drives one reconciliation run. Documents are processed strictly in
// order, one at a time; overwrite semantics depend on it.
type Engine struct {
	storage   service.Storage
	approver  service.Approver
	runLog    *audit.RunLog
	segmenter *segment.Segmenter
	matcher   *match.Matcher
	extractor *extract.Extractor
	ledger    *ledger.Ledger

	tree       *hierarchy.Tree
	registry   []*model.CanonicalEntity
	byName     map[string]*model.CanonicalEntity
	loadedOrgs map[string]bool

	summary service.RunSummary
}

// New creates a reconciliation engine with the given dependencies.
func New(storage service.Storage, approver service.Approver, runLog *audit.RunLog, cfg Config) *Engine {
	return &Engine{
		storage:    storage,
		approver:   approver,
		runLog:     runLog,
		segmenter:  segment.New(),
		matcher:    match.New(cfg.Matching),
		extractor:  extract.New(),
		ledger:     ledger.New(),
		loadedOrgs: make(map[string]bool),
	}
}

// Run reconciles every budget text file under inputDir, in filename order.
// With force set, the idempotency log is cleared first; otherwise documents
// already logged are skipped without even being segmented.
func (e *Engine) Run(ctx context.Context, inputDir string, force bool) (service.RunSummary, error) {
	started := time.Now()
	defer func() { e.summary.Duration = time.Since(started) }()

	if force {
		if err := e.storage.ClearProcessed(ctx); err != nil {
			return e.summary, fmt.Errorf("failed to clear processed log: %w", err)
		}
		slog.Info("Cleared idempotency log", "reason", "force flag")
	}

	if err := e.loadRegistry(ctx); err != nil {
		return e.summary, err
	}

	paths, err := filepath.Glob(filepath.Join(inputDir, "*.txt"))
	if err != nil {
		return e.summary, fmt.Errorf("failed to scan input directory: %w", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		slog.Info("No budget documents found", "dir", inputDir)
		return e.summary, nil
	}

	for _, path := range paths {
		select {
		case <-ctx.Done():
			return e.summary, ctx.Err()
		default:
		}

		if err := e.processDocument(ctx, path); err != nil {
			return e.summary, err
		}
	}

	e.appendAudit(audit.Event{
		Kind:    audit.KindSummary,
		Message: "run complete",
		Detail: map[string]any{
			"documents_processed":     e.summary.DocumentsProcessed,
			"documents_skipped":       e.summary.DocumentsSkipped,
			"sections_processed":      e.summary.SectionsProcessed,
			"sections_rejected":       e.summary.SectionsRejected,
			"entities_matched":        e.summary.EntitiesMatched,
			"entities_created":        e.summary.EntitiesCreated,
			"allocations_inserted":    e.summary.AllocationsInserted,
			"allocations_overwritten": e.summary.AllocationsOverwritten,
		},
	})
	return e.summary, nil
}

func (e *Engine) loadRegistry(ctx context.Context) error {
	entities, err := e.storage.GetAllEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	e.registry = make([]*model.CanonicalEntity, 0, len(entities))
	e.byName = make(map[string]*model.CanonicalEntity, len(entities))
	for i := range entities {
		entity := &entities[i]
		e.registry = append(e.registry, entity)
		e.byName[entity.Name] = entity
	}
	if _, ok := e.byName[model.RootEntityName]; !ok {
		root := &model.CanonicalEntity{
			Name:          model.RootEntityName,
			CanonicalName: model.RootEntityName,
			BudgetStatus:  model.StatusActive,
		}
		e.registry = append(e.registry, root)
		e.byName[root.Name] = root
	}

	e.tree = hierarchy.Build(e.registry)
	if err := e.tree.Validate(); err != nil {
		return fmt.Errorf("registry hierarchy invalid at startup: %w", err)
	}

	slog.Info("Loaded canonical registry", "entities", len(e.registry))
	return nil
}

// processDocument reconciles one file. A segmentation mismatch beyond
// tolerance halts the whole run rather than silently skipping malformed
// input; a document-level rejection does the same.
func (e *Engine) processDocument(ctx context.Context, path string) error {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	processed, err := e.storage.IsProcessed(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to consult processed log: %w", err)
	}
	if processed {
		e.summary.DocumentsSkipped++
		slog.Info("Skipping already-processed document", "document", id)
		return nil
	}

	doc, err := document.Load(path)
	if err != nil {
		return err
	}

	slog.Info("Processing document", "document", doc.ID, "lines", len(doc.Lines))

	res, err := e.segmenter.Segment(doc)
	if err != nil {
		e.appendAudit(audit.Event{
			Kind:     audit.KindError,
			Document: doc.ID,
			Message:  "segmentation failure",
			Detail:   map[string]any{"markers": res.MarkerCount, "headers": res.HeaderCount},
		})
		return err
	}
	if res.Tolerated {
		e.appendAudit(audit.Event{
			Kind:     audit.KindMismatch,
			Document: doc.ID,
			Message:  "marker/header counts differ by one",
			Detail:   map[string]any{"markers": res.MarkerCount, "headers": res.HeaderCount},
		})
	}

	if pt, ok := e.approver.(interface{ SetTotalSections(int) }); ok {
		pt.SetTotalSections(len(res.Sections))
	}

	for i := range res.Sections {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := e.processSection(ctx, &res.Sections[i])
		if errors.Is(err, common.ErrRejected) {
			// Document-level rejection: already-committed sections stay
			// committed, everything after stops.
			e.appendAudit(audit.Event{
				Kind:     audit.KindRejection,
				Document: doc.ID,
				Section:  res.Sections[i].Header(),
				Message:  "document-level rejection",
			})
			return err
		}
		if err != nil {
			return err
		}
	}

	if err := e.storage.MarkProcessed(ctx, doc.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}
	e.summary.DocumentsProcessed++
	return nil
}

// processSection runs analysis for one section, suspends on the approval
// gate, and commits the approved changes in a single transaction. A
// rejection here is non-fatal; processing continues with the next section.
func (e *Engine) processSection(ctx context.Context, section *model.RawSection) error {
	entity, pendingAlias, err := e.resolveEntity(ctx, section)
	if err != nil || entity == nil {
		return err
	}

	extracted := e.extractor.Extract(section)
	for _, failure := range extracted.Failures {
		e.appendAudit(audit.Event{
			Kind:     audit.KindParseError,
			Document: section.SourceDocument,
			Section:  section.Header(),
			Message:  failure,
		})
	}

	if err := e.loadOrgLedger(ctx, section.HeaderCode); err != nil {
		return err
	}

	changes, err := e.buildBudgetProposal(ctx, section, entity, extracted)
	if err != nil {
		return err
	}

	decision, err := e.approver.ReviewBudgetChanges(ctx, *changes.proposal)
	if err != nil {
		return err
	}
	switch decision {
	case service.DecisionReject:
		e.summary.SectionsRejected++
		e.appendAudit(audit.Event{
			Kind:     audit.KindRejection,
			Document: section.SourceDocument,
			Section:  section.Header(),
			Message:  "budget changes rejected",
		})
		return nil
	case service.DecisionAbort:
		return fmt.Errorf("%w: budget review aborted document", common.ErrRejected)
	case service.DecisionApprove:
	}

	if err := e.commitSection(ctx, section, entity, changes, pendingAlias); err != nil {
		return err
	}

	e.summary.SectionsProcessed++
	return nil
}

func (e *Engine) appendAudit(event audit.Event) {
	if e.runLog == nil {
		return
	}
	if err := e.runLog.Append(event); err != nil {
		slog.Error("Failed to append audit event", "error", err)
	}
}
