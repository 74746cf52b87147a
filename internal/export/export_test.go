package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfiscal/fisc/internal/model"
	"github.com/openfiscal/fisc/internal/storage"
)

func newExportStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	require.NoError(t, store.SaveEntity(ctx, &model.CanonicalEntity{
		Name:             "Senate",
		CanonicalName:    "Senate",
		OrganizationCode: "0110",
		ParentAgency:     model.RootEntityName,
		BudgetStatus:     model.StatusActive,
		Aliases:          []string{"California State Senate"},
		OrgLevel:         1,
	}))
	require.NoError(t, store.SaveProgram(ctx, &model.Program{
		ProjectCode: "0001000",
		Name:        "Legislative Activities",
		Descriptions: []model.ProgramDescription{
			{Text: "Supports the legislative process.", Source: "0110_2024_budget"},
		},
	}))
	require.NoError(t, store.SaveFund(ctx, &model.Fund{
		FundCode: "0001", FundName: "General Fund", FundGroup: "General Fund",
	}))
	require.NoError(t, store.SaveAllocation(ctx, &model.LedgerEntry{
		Allocation: model.Allocation{
			Amount:           decimal.RequireFromString("42554"),
			OrganizationCode: "0110",
			ProjectCode:      "0001000",
			FundCode:         "0001",
			FundName:         "General Fund",
			SourceDocument:   "0110_2024_budget",
			FundingType:      model.FundingStateOperations,
			FiscalYear:       2023,
		},
		Count: 1,
	}))
	return store
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path) //nolint:gosec // test-owned temp path
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(raw)), "\n")
}

func TestExportAll(t *testing.T) {
	store := newExportStorage(t)
	dir := filepath.Join(t.TempDir(), "export")

	written, err := New(store).ExportAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	entities := readLines(t, filepath.Join(dir, "entities.csv"))
	require.Len(t, entities, 2)
	assert.Contains(t, entities[0], "organization_code")
	assert.Contains(t, entities[1], "Senate")
	assert.Contains(t, entities[1], "California State Senate")

	programs := readLines(t, filepath.Join(dir, "programs.csv"))
	require.Len(t, programs, 2)
	assert.Contains(t, programs[1], "0001000")
	assert.Contains(t, programs[1], "Supports the legislative process.")

	funds := readLines(t, filepath.Join(dir, "funds.csv"))
	require.Len(t, funds, 2)
	assert.Contains(t, funds[1], "General Fund")

	allocations := readLines(t, filepath.Join(dir, "allocations.csv"))
	require.Len(t, allocations, 2)
	assert.Contains(t, allocations[1], "42554")
	assert.Contains(t, allocations[1], "2023")
	assert.Contains(t, allocations[1], model.FundingStateOperations.String())
}

func TestExportAllEmptyStore(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	dir := filepath.Join(t.TempDir(), "export")
	written, err := New(store).ExportAll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 4, written)

	// Header-only files are still written for empty tables.
	for _, name := range []string{"entities.csv", "programs.csv", "funds.csv", "allocations.csv"} {
		lines := readLines(t, filepath.Join(dir, name))
		assert.Len(t, lines, 1, name)
	}
}
