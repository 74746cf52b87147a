// Package export writes the reconciled registry, program, fund, and ledger
// state to CSV files for downstream publication.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/openfiscal/fisc/internal/service"
)

// EntityRow is the CSV shape of one canonical entity.
type EntityRow struct {
	OrganizationCode string `csv:"organization_code"`
	Name             string `csv:"name"`
	CanonicalName    string `csv:"canonical_name"`
	ParentAgency     string `csv:"parent_agency"`
	BudgetStatus     string `csv:"budget_status"`
	Aliases          string `csv:"aliases"`
	OrgLevel         int    `csv:"org_level"`
	SubordinateCount int    `csv:"subordinate_count"`
}

// ProgramRow is the CSV shape of one program with its accumulated
// descriptions joined.
type ProgramRow struct {
	ProjectCode  string `csv:"project_code"`
	Name         string `csv:"name"`
	Descriptions string `csv:"descriptions"`
}

// FundRow is the CSV shape of one fund.
type FundRow struct {
	FundCode  string `csv:"fund_code"`
	FundName  string `csv:"fund_name"`
	FundGroup string `csv:"fund_group"`
}

// AllocationRow is the CSV shape of one ledger entry. Amounts stay in
// thousands of dollars, as printed in the source documents.
type AllocationRow struct {
	OrganizationCode string `csv:"organization_code"`
	FiscalYear       int    `csv:"fiscal_year"`
	ProjectCode      string `csv:"project_code"`
	FundingType      string `csv:"funding_type"`
	FundCode         string `csv:"fund_code"`
	Amount           string `csv:"amount_thousands"`
	SourceDocument   string `csv:"source_document"`
}

// Exporter reads reconciled state from storage and writes CSV files.
type Exporter struct {
	store service.Storage
}

// New creates an exporter backed by the given storage.
func New(store service.Storage) *Exporter {
	return &Exporter{store: store}
}

// ExportAll writes entities.csv, programs.csv, funds.csv, and
// allocations.csv under dir, creating it if needed. Returns the number of
// files written.
func (x *Exporter) ExportAll(ctx context.Context, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	written := 0
	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"entities.csv", x.exportEntities},
		{"programs.csv", x.exportPrograms},
		{"funds.csv", x.exportFunds},
		{"allocations.csv", x.exportAllocations},
	}
	for _, step := range steps {
		path := filepath.Join(dir, step.name)
		if err := step.fn(ctx, path); err != nil {
			return written, err
		}
		written++
		slog.Info("Wrote export file", "path", path)
	}
	return written, nil
}

func (x *Exporter) exportEntities(ctx context.Context, path string) error {
	entities, err := x.store.GetAllEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entities: %w", err)
	}

	rows := make([]EntityRow, 0, len(entities))
	for i := range entities {
		e := &entities[i]
		rows = append(rows, EntityRow{
			OrganizationCode: e.OrganizationCode,
			Name:             e.Name,
			CanonicalName:    e.CanonicalName,
			ParentAgency:     e.ParentAgency,
			BudgetStatus:     string(e.BudgetStatus),
			Aliases:          strings.Join(e.Aliases, "; "),
			OrgLevel:         e.OrgLevel,
			SubordinateCount: e.SubordinateCount,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return writeCSV(path, &rows)
}

func (x *Exporter) exportPrograms(ctx context.Context, path string) error {
	programs, err := x.store.GetAllPrograms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load programs: %w", err)
	}

	rows := make([]ProgramRow, 0, len(programs))
	for i := range programs {
		p := &programs[i]
		texts := make([]string, 0, len(p.Descriptions))
		for _, d := range p.Descriptions {
			texts = append(texts, d.Text)
		}
		rows = append(rows, ProgramRow{
			ProjectCode:  p.ProjectCode,
			Name:         p.Name,
			Descriptions: strings.Join(texts, " | "),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProjectCode < rows[j].ProjectCode })
	return writeCSV(path, &rows)
}

func (x *Exporter) exportFunds(ctx context.Context, path string) error {
	funds, err := x.store.GetAllFunds(ctx)
	if err != nil {
		return fmt.Errorf("failed to load funds: %w", err)
	}

	rows := make([]FundRow, 0, len(funds))
	for i := range funds {
		f := &funds[i]
		rows = append(rows, FundRow{
			FundCode:  f.FundCode,
			FundName:  f.FundName,
			FundGroup: f.FundGroup,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].FundCode < rows[j].FundCode })
	return writeCSV(path, &rows)
}

func (x *Exporter) exportAllocations(ctx context.Context, path string) error {
	entities, err := x.store.GetAllEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to load entities: %w", err)
	}

	var rows []AllocationRow
	for i := range entities {
		code := entities[i].OrganizationCode
		if code == "" {
			continue
		}
		entries, err := x.store.GetAllocationsByOrganization(ctx, code)
		if err != nil {
			return fmt.Errorf("failed to load allocations for organization %s: %w", code, err)
		}
		for j := range entries {
			e := &entries[j]
			rows = append(rows, AllocationRow{
				OrganizationCode: e.OrganizationCode,
				FiscalYear:       e.FiscalYear,
				ProjectCode:      e.ProjectCode,
				FundingType:      e.FundingType.String(),
				FundCode:         e.FundCode,
				Amount:           e.Amount.String(),
				SourceDocument:   e.SourceDocument,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if a.OrganizationCode != b.OrganizationCode {
			return a.OrganizationCode < b.OrganizationCode
		}
		if a.FiscalYear != b.FiscalYear {
			return a.FiscalYear < b.FiscalYear
		}
		if a.ProjectCode != b.ProjectCode {
			return a.ProjectCode < b.ProjectCode
		}
		return a.FundCode < b.FundCode
	})
	return writeCSV(path, &rows)
}

func writeCSV(path string, rows any) error {
	file, err := os.Create(path) //nolint:gosec // export path comes from config
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("Failed to close export file", "path", path, "error", closeErr)
		}
	}()

	if err := gocsv.MarshalFile(rows, file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
