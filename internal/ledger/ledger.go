// Package ledger accumulates extracted allocations into the nested
// per-entity/per-year/per-project/per-fund budget structure, with explicit
// overwrite-vs-insert semantics and an audit trail for replaced amounts.
package ledger

import (
	"time"

	"github.com/openfiscal/fisc/internal/model"
)

// Outcome reports what Apply did with an allocation.
type Outcome int

const (
	// Inserted means the key was new; observation count starts at 1.
	Inserted Outcome = iota
	// Overwritten means the key existed. The amount is replaced and the
	// observation count resets to 1; amounts are never summed. Later
	// documents are authoritative because budget documents restate and
	// correct the two preceding years' figures.
	Overwritten
)

// Ledger is the in-memory working set of allocation entries, keyed by the
// (org, year, project, fundingType, fundCode) tuple. At most one entry
// exists per key at any time.
type Ledger struct {
	entries    map[string]*model.LedgerEntry
	dirty      map[string]bool
	overwrites []model.OverwriteRecord
	now        func() time.Time
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		entries: make(map[string]*model.LedgerEntry),
		dirty:   make(map[string]bool),
		now:     time.Now,
	}
}

// LoadEntries primes the ledger with entries already on record. Loaded
// entries are not marked dirty.
func (l *Ledger) LoadEntries(entries []model.LedgerEntry) {
	for i := range entries {
		e := entries[i]
		l.entries[e.Key()] = &e
	}
}

// Len returns the number of entries currently held.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entry returns the entry for an allocation's key, or nil.
func (l *Ledger) Entry(a *model.Allocation) *model.LedgerEntry {
	return l.entries[a.Key()]
}

// Preview reports which of the given allocations would overwrite an existing
// entry with a different amount, without mutating the ledger. Used to show
// the reviewer what approval will replace.
func (l *Ledger) Preview(allocations []model.Allocation) []model.OverwriteRecord {
	var records []model.OverwriteRecord
	for i := range allocations {
		a := &allocations[i]
		existing := l.entries[a.Key()]
		if existing == nil || existing.Amount.Equal(a.Amount) {
			continue
		}
		records = append(records, l.record(existing, a))
	}
	return records
}

// Apply locates or creates the entry for the allocation's key. An existing
// key is an overwrite: the prior amount is recorded for audit when it
// differs, the amount is replaced, and the observation count resets to 1.
func (l *Ledger) Apply(a model.Allocation) Outcome {
	key := a.Key()
	existing := l.entries[key]

	if existing == nil {
		l.entries[key] = &model.LedgerEntry{Allocation: a, Count: 1}
		l.dirty[key] = true
		return Inserted
	}

	if !existing.Amount.Equal(a.Amount) {
		l.overwrites = append(l.overwrites, l.record(existing, &a))
	}
	existing.Allocation = a
	existing.Count = 1
	l.dirty[key] = true
	return Overwritten
}

// DirtyEntries returns the entries touched since the last call and clears
// the dirty set. The caller flushes them to storage.
func (l *Ledger) DirtyEntries() []model.LedgerEntry {
	if len(l.dirty) == 0 {
		return nil
	}
	out := make([]model.LedgerEntry, 0, len(l.dirty))
	for key := range l.dirty {
		out = append(out, *l.entries[key])
	}
	l.dirty = make(map[string]bool)
	return out
}

// TakeOverwrites returns the audit records accumulated since the last call
// and clears them.
func (l *Ledger) TakeOverwrites() []model.OverwriteRecord {
	out := l.overwrites
	l.overwrites = nil
	return out
}

func (l *Ledger) record(existing *model.LedgerEntry, incoming *model.Allocation) model.OverwriteRecord {
	return model.OverwriteRecord{
		ReplacedAt:       l.now(),
		OldAmount:        existing.Amount,
		NewAmount:        incoming.Amount,
		OrganizationCode: incoming.OrganizationCode,
		ProjectCode:      incoming.ProjectCode,
		FundCode:         incoming.FundCode,
		OldSource:        existing.SourceDocument,
		NewSource:        incoming.SourceDocument,
		FundingType:      incoming.FundingType,
		FiscalYear:       incoming.FiscalYear,
	}
}
