package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfiscal/fisc/internal/model"
)

func testRegistry() []*model.CanonicalEntity {
	return []*model.CanonicalEntity{
		{
			Name:             "Senate",
			CanonicalName:    "Senate",
			OrganizationCode: "0110",
			BudgetStatus:     model.StatusActive,
		},
		{
			Name:             "State Energy Resources Conservation and Development Commission",
			CanonicalName:    "State Energy Resources Conservation and Development Commission",
			OrganizationCode: "3360",
			Aliases:          []string{"Energy Commission", "CEC"},
			BudgetStatus:     model.StatusActive,
		},
		{
			Name:             "Department of Water Resources",
			CanonicalName:    "Department of Water Resources",
			OrganizationCode: "3860",
			BudgetStatus:     model.StatusActive,
		},
	}
}

func TestMatchDirectCode(t *testing.T) {
	m := New(DefaultConfig())
	res := m.Match("0110", "Senate", testRegistry())

	assert.Equal(t, model.MatchDirect, res.Status)
	require.NotNil(t, res.Entity)
	assert.Equal(t, "Senate", res.Entity.Name)
	assert.Equal(t, 100, res.Confidence)
	assert.Empty(t, res.ProposedAlias)
}

func TestMatchDirectCodeWinsOverName(t *testing.T) {
	// The code decides even when the header name spells another entity.
	m := New(DefaultConfig())
	res := m.Match("0110", "Department of Water Resources", testRegistry())

	assert.Equal(t, model.MatchDirect, res.Status)
	assert.Equal(t, "Senate", res.Entity.Name)
	// The unfamiliar spelling is proposed as an alias, never auto-added.
	assert.Equal(t, "Department of Water Resources", res.ProposedAlias)
}

func TestMatchExactName(t *testing.T) {
	m := New(DefaultConfig())
	res := m.Match("", "senate", testRegistry())

	assert.Equal(t, model.MatchMatched, res.Status)
	assert.Equal(t, "Senate", res.Entity.Name)
	assert.Equal(t, 95, res.Confidence)
}

func TestMatchExactAlias(t *testing.T) {
	m := New(DefaultConfig())
	res := m.Match("", "Energy Commission", testRegistry())

	assert.Equal(t, model.MatchMatched, res.Status)
	assert.Equal(t, "State Energy Resources Conservation and Development Commission", res.Entity.Name)
	assert.Equal(t, 85, res.Confidence)
}

func TestMatchFuzzyMisspelling(t *testing.T) {
	// "Energy Commision" is one edit from the known alias.
	m := New(DefaultConfig())
	res := m.Match("", "Energy Commision", testRegistry())

	assert.Equal(t, model.MatchMatched, res.Status)
	require.NotNil(t, res.Entity)
	assert.Equal(t, "State Energy Resources Conservation and Development Commission", res.Entity.Name)
	assert.Equal(t, "Energy Commision", res.ProposedAlias)
	assert.Greater(t, res.Confidence, 80)
	assert.Less(t, res.Confidence, 100)
}

func TestMatchFuzzyCodeConflictPenalty(t *testing.T) {
	m := New(DefaultConfig())

	clean := m.Match("", "Energy Commision", testRegistry())
	conflicted := m.Match("9999", "Energy Commision", testRegistry())

	assert.Equal(t, model.MatchMatched, conflicted.Status)
	assert.Equal(t, clean.Confidence-DefaultConfig().CodeConflictPenalty, conflicted.Confidence)
}

func TestNewHonorsZeroPenalty(t *testing.T) {
	// A configured penalty of zero disables the deduction; only a fully
	// zero-value Config falls back to the defaults.
	m := New(Config{Threshold: 0.8, CodeConflictPenalty: 0})

	clean := m.Match("", "Energy Commision", testRegistry())
	conflicted := m.Match("9999", "Energy Commision", testRegistry())

	assert.Equal(t, model.MatchMatched, conflicted.Status)
	assert.Equal(t, clean.Confidence, conflicted.Confidence)

	def := New(Config{})
	assert.Equal(t, DefaultConfig(), def.cfg)
}

func TestMatchAmbiguousTies(t *testing.T) {
	registry := []*model.CanonicalEntity{
		{Name: "Department of Education", CanonicalName: "Department of Education"},
		{Name: "Department of Educations", CanonicalName: "Department of Educations"},
	}

	m := New(DefaultConfig())
	res := m.Match("", "Department of Educatio", registry)

	assert.Equal(t, model.MatchAmbiguous, res.Status)
	assert.Nil(t, res.Entity)
	require.Len(t, res.Candidates, 2)
}

func TestMatchUnmatched(t *testing.T) {
	m := New(DefaultConfig())
	res := m.Match("9999", "Commission on Completely Novel Affairs", testRegistry())

	assert.Equal(t, model.MatchUnmatched, res.Status)
	assert.Nil(t, res.Entity)
	assert.Empty(t, res.Candidates)
}

func TestMatchThresholdBoundary(t *testing.T) {
	registry := []*model.CanonicalEntity{
		{Name: "abcdefghij", CanonicalName: "abcdefghij"},
	}

	// Two edits over ten characters scores exactly 0.8.
	m := New(Config{Threshold: 0.8, CodeConflictPenalty: 20})
	res := m.Match("", "abcdefghxx", registry)
	assert.Equal(t, model.MatchMatched, res.Status, "score at threshold should match")

	strict := New(Config{Threshold: 0.81, CodeConflictPenalty: 20})
	res = strict.Match("", "abcdefghxx", registry)
	assert.Equal(t, model.MatchUnmatched, res.Status)
}

func TestSplitAbbreviation(t *testing.T) {
	tests := []struct {
		input      string
		wantName   string
		wantAbbrev string
	}{
		{"Energy Commission (CEC)", "Energy Commission", "CEC"},
		{"Senate", "Senate", ""},
		{"(CEC)", "(CEC)", ""},
		{"Department of Motor Vehicles (DMV) ", "Department of Motor Vehicles", "DMV"},
	}

	for _, tt := range tests {
		name, abbrev := splitAbbreviation(tt.input)
		assert.Equal(t, tt.wantName, name, "input %q", tt.input)
		assert.Equal(t, tt.wantAbbrev, abbrev, "input %q", tt.input)
	}
}

func TestMatchAbbreviationTrackedSeparately(t *testing.T) {
	m := New(DefaultConfig())
	res := m.Match("9999", "Commission on Novel Affairs (CNA)", testRegistry())

	assert.Equal(t, model.MatchUnmatched, res.Status)
	assert.Equal(t, "CNA", res.Abbreviation)
}
