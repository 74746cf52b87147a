// Package model defines the core domain types shared across the reconciliation pipeline.
package model

// BudgetStatus indicates whether an entity currently participates in the budget hierarchy.
type BudgetStatus string

const (
	// StatusActive indicates the entity has recorded headcount and sits in the hierarchy.
	StatusActive BudgetStatus = "active"
	// StatusInactive indicates a historical entity kept for reference only.
	StatusInactive BudgetStatus = "inactive"
)

// RootEntityName is the fixed name of the distinguished hierarchy root.
const RootEntityName = "State of California"

// CanonicalEntity is a department/agency record in the canonical registry.
type CanonicalEntity struct {
	OrganizationCode string       `yaml:"organization_code,omitempty"`
	Name             string       `yaml:"name"`
	CanonicalName    string       `yaml:"canonical_name"`
	ParentAgency     string       `yaml:"parent_agency,omitempty"`
	Description      string       `yaml:"description,omitempty"`
	BudgetStatus     BudgetStatus `yaml:"budget_status"`
	Aliases          []string     `yaml:"aliases,omitempty"`
	OrgLevel         int          `yaml:"org_level"`
	SubordinateCount int          `yaml:"-"`
}

// IsActive reports whether the entity participates in the hierarchy.
func (e *CanonicalEntity) IsActive() bool {
	return e.BudgetStatus == StatusActive
}

// IsRoot reports whether the entity is the distinguished hierarchy root.
func (e *CanonicalEntity) IsRoot() bool {
	return e.Name == RootEntityName
}

// HasAlias reports whether alias is already recorded, compared with eq
// (normally a normalizing comparison, so "Dept. of X" equals "dept of x").
func (e *CanonicalEntity) HasAlias(alias string, eq func(a, b string) bool) bool {
	for _, a := range e.Aliases {
		if eq(a, alias) {
			return true
		}
	}
	return false
}
