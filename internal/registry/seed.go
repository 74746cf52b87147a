// Package registry loads canonical entity seed files and installs them in
// storage with derived hierarchy fields.
package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/hierarchy"
	"github.com/openfiscal/fisc/internal/model"
	"github.com/openfiscal/fisc/internal/service"
)

// SeedFile is the YAML seed format: a flat entity list with free-text
// parent references.
type SeedFile struct {
	Entities []model.CanonicalEntity `yaml:"entities"`
}

// LoadSeedFile reads and parses a YAML seed file. The distinguished root is
// prepended when the file does not carry it, and duplicate names or
// organization codes are rejected before anything touches storage.
func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(seed.Entities) == 0 {
		return nil, fmt.Errorf("%w: seed file contains no entities", common.ErrInvalidConfig)
	}

	names := make(map[string]bool, len(seed.Entities))
	codes := make(map[string]string, len(seed.Entities))
	hasRoot := false
	for i := range seed.Entities {
		e := &seed.Entities[i]
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entity %d has no name", common.ErrInvalidConfig, i)
		}
		if names[e.Name] {
			return nil, fmt.Errorf("%w: entity name %q", common.ErrDuplicateCode, e.Name)
		}
		names[e.Name] = true
		if e.OrganizationCode != "" {
			if prior, ok := codes[e.OrganizationCode]; ok {
				return nil, fmt.Errorf("%w: organization code %s on both %q and %q",
					common.ErrDuplicateCode, e.OrganizationCode, prior, e.Name)
			}
			codes[e.OrganizationCode] = e.Name
		}
		if e.CanonicalName == "" {
			e.CanonicalName = e.Name
		}
		if e.BudgetStatus == "" {
			e.BudgetStatus = model.StatusActive
		}
		if e.IsRoot() {
			hasRoot = true
		}
	}

	if !hasRoot {
		root := model.CanonicalEntity{
			Name:          model.RootEntityName,
			CanonicalName: model.RootEntityName,
			BudgetStatus:  model.StatusActive,
		}
		seed.Entities = append([]model.CanonicalEntity{root}, seed.Entities...)
	}

	return &seed, nil
}

// Install writes the seed entities to storage in one transaction, with
// levels and subordinate counts computed from the parent references. The
// whole hierarchy is validated before any row is written.
func Install(ctx context.Context, store service.Storage, seed *SeedFile) (int, error) {
	refs := make([]*model.CanonicalEntity, len(seed.Entities))
	for i := range seed.Entities {
		refs[i] = &seed.Entities[i]
	}

	tree := hierarchy.Build(refs)
	if err := tree.Validate(); err != nil {
		return 0, err
	}
	for _, e := range refs {
		if node := tree.Node(e.Name); node != nil {
			e.OrgLevel = node.Level
			e.SubordinateCount = node.SubordinateCount
		}
	}

	tx, err := store.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range refs {
		if err := tx.SaveEntity(ctx, e); err != nil {
			return 0, fmt.Errorf("failed to save entity %q: %w", e.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}
	return len(refs), nil
}
