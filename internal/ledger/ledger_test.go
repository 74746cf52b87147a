package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfiscal/fisc/internal/model"
)

func alloc(amount string, year int, doc string) model.Allocation {
	return model.Allocation{
		Amount:           decimal.RequireFromString(amount),
		OrganizationCode: "0110",
		ProjectCode:      "0001000",
		FundCode:         "0001",
		FundName:         "General Fund",
		SourceDocument:   doc,
		FundingType:      model.FundingStateOperations,
		FiscalYear:       year,
	}
}

func TestApplyInsertsNewKey(t *testing.T) {
	l := New()

	outcome := l.Apply(alloc("42554", 2023, "0110_2024_budget"))

	assert.Equal(t, Inserted, outcome)
	dirty := l.DirtyEntries()
	require.Len(t, dirty, 1)
	assert.Equal(t, 1, dirty[0].Count)
	assert.Empty(t, l.TakeOverwrites())
}

func TestApplyOverwritesDifferentAmount(t *testing.T) {
	l := New()
	l.now = func() time.Time { return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC) }

	l.Apply(alloc("42554", 2023, "0110_2024_budget"))
	l.DirtyEntries()

	outcome := l.Apply(alloc("43000", 2023, "0110_2025_budget"))

	assert.Equal(t, Overwritten, outcome)

	dirty := l.DirtyEntries()
	require.Len(t, dirty, 1)
	assert.True(t, decimal.RequireFromString("43000").Equal(dirty[0].Amount),
		"amount replaced, never summed")
	assert.Equal(t, 1, dirty[0].Count)
	assert.Equal(t, "0110_2025_budget", dirty[0].SourceDocument)

	records := l.TakeOverwrites()
	require.Len(t, records, 1)
	assert.True(t, decimal.RequireFromString("42554").Equal(records[0].OldAmount))
	assert.True(t, decimal.RequireFromString("43000").Equal(records[0].NewAmount))
	assert.Equal(t, "0110_2024_budget", records[0].OldSource)
	assert.Equal(t, "0110_2025_budget", records[0].NewSource)
	assert.Equal(t, 2026, records[0].ReplacedAt.Year())
}

func TestApplySameAmountIsIdempotent(t *testing.T) {
	l := New()

	l.Apply(alloc("42554", 2023, "0110_2024_budget"))
	first := l.DirtyEntries()

	outcome := l.Apply(alloc("42554", 2023, "0110_2024_budget"))

	// Same state as after the first apply: count stays 1, no audit record.
	assert.Equal(t, Overwritten, outcome)
	second := l.DirtyEntries()
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Count, second[0].Count)
	assert.True(t, first[0].Amount.Equal(second[0].Amount))
	assert.Empty(t, l.TakeOverwrites())
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	l := New()

	assert.Equal(t, Inserted, l.Apply(alloc("1", 2022, "doc")))
	assert.Equal(t, Inserted, l.Apply(alloc("2", 2023, "doc")))

	other := alloc("3", 2022, "doc")
	other.FundingType = model.FundingLocalAssistance
	assert.Equal(t, Inserted, l.Apply(other))

	assert.Equal(t, 3, l.Len())
}

func TestLoadEntriesAreNotDirty(t *testing.T) {
	l := New()

	l.LoadEntries([]model.LedgerEntry{{Allocation: alloc("42554", 2023, "old_doc"), Count: 1}})

	assert.Empty(t, l.DirtyEntries())
	assert.Equal(t, 1, l.Len())
}

func TestPreviewReportsWithoutMutating(t *testing.T) {
	l := New()
	l.LoadEntries([]model.LedgerEntry{{Allocation: alloc("42554", 2023, "old_doc"), Count: 1}})

	records := l.Preview([]model.Allocation{
		alloc("43000", 2023, "new_doc"),
		alloc("42554", 2023, "new_doc"), // same key, same amount: not an overwrite
		alloc("99", 2024, "new_doc"),    // new key: not an overwrite
	})

	require.Len(t, records, 1)
	assert.True(t, decimal.RequireFromString("42554").Equal(records[0].OldAmount))

	// Preview must not touch the ledger.
	assert.Empty(t, l.DirtyEntries())
	assert.Empty(t, l.TakeOverwrites())
	entry := l.Entry(&model.Allocation{
		OrganizationCode: "0110", ProjectCode: "0001000", FundCode: "0001",
		FundingType: model.FundingStateOperations, FiscalYear: 2023,
	})
	require.NotNil(t, entry)
	assert.True(t, decimal.RequireFromString("42554").Equal(entry.Amount))
}
