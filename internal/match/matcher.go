// Package match resolves section headers against the canonical entity
// registry: direct code match first, then exact name, alias, and similarity
// matching with a single-best-match rule and ambiguity detection.
package match

import (
	"math"
	"regexp"
	"strings"

	"github.com/openfiscal/fisc/internal/model"
	"github.com/openfiscal/fisc/internal/similarity"
)

// Confidence values for the exact match tiers.
const (
	confidenceDirect = 100
	confidenceName   = 95
	confidenceAlias  = 85
)

// Config holds the tunable matching parameters. The defaults are empirical,
// not derived; both are exposed through run configuration.
type Config struct {
	// Threshold is the minimum similarity score for a fuzzy match.
	Threshold float64
	// CodeConflictPenalty is subtracted from a fuzzy confidence when the
	// matched entity's recorded organization code disagrees with the
	// header's. Conflicting codes are never silently reconciled.
	CodeConflictPenalty int
}

// DefaultConfig returns the default matching parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:           0.8,
		CodeConflictPenalty: 20,
	}
}

// Matcher resolves raw section headers to registry entities.
type Matcher struct {
	cfg Config
}

// New creates a matcher with the given configuration. A zero-value Config
// gets the defaults; an explicit zero penalty is honored, since disabling
// the penalty is a valid configuration.
func New(cfg Config) *Matcher {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.CodeConflictPenalty < 0 {
		cfg.CodeConflictPenalty = 0
	}
	return &Matcher{cfg: cfg}
}

var parentheticalRe = regexp.MustCompile(`\s*\(([^)]+)\)\s*$`)

// Match resolves a header (code + name) against the registry. Tiers are tried
// in order, short-circuiting on the first success; if two or more entities
// tie above the similarity threshold the result is ambiguous and carries all
// ties, never the best one alone.
func (m *Matcher) Match(headerCode, headerName string, registry []*model.CanonicalEntity) *model.MatchResult {
	name, abbrev := splitAbbreviation(headerName)

	result := &model.MatchResult{
		Status:       model.MatchUnmatched,
		Abbreviation: abbrev,
	}

	// (a) exact organization-code match
	if headerCode != "" {
		for _, e := range registry {
			if e.OrganizationCode == headerCode {
				result.Status = model.MatchDirect
				result.Entity = e
				result.Confidence = confidenceDirect
				m.suggestAlias(result, e, name)
				return result
			}
		}
	}

	// (b) normalized exact match against canonical name or name
	for _, e := range registry {
		if similarity.Equal(name, e.CanonicalName) || similarity.Equal(name, e.Name) {
			result.Status = model.MatchMatched
			result.Entity = e
			result.Confidence = confidenceName
			return result
		}
	}

	// (c) exact alias match
	for _, e := range registry {
		if e.HasAlias(name, similarity.Equal) {
			result.Status = model.MatchMatched
			result.Entity = e
			result.Confidence = confidenceAlias
			return result
		}
	}

	// (d) similarity match; accept only an outright single winner
	var ties []model.Candidate
	for _, e := range registry {
		score := m.bestScore(name, e)
		if score >= m.cfg.Threshold {
			ties = append(ties, model.Candidate{Entity: e, Score: score})
		}
	}

	switch len(ties) {
	case 0:
		return result
	case 1:
		winner := ties[0]
		result.Status = model.MatchMatched
		result.Entity = winner.Entity
		result.Confidence = m.fuzzyConfidence(winner.Score, headerCode, winner.Entity)
		m.suggestAlias(result, winner.Entity, name)
		return result
	default:
		result.Status = model.MatchAmbiguous
		result.Candidates = ties
		return result
	}
}

// bestScore scores a header name against an entity's canonical name, name,
// and every alias, keeping the highest.
func (m *Matcher) bestScore(name string, e *model.CanonicalEntity) float64 {
	best := similarity.Score(name, e.CanonicalName)
	if s := similarity.Score(name, e.Name); s > best {
		best = s
	}
	for _, alias := range e.Aliases {
		if s := similarity.Score(name, alias); s > best {
			best = s
		}
	}
	return best
}

func (m *Matcher) fuzzyConfidence(score float64, headerCode string, e *model.CanonicalEntity) int {
	confidence := int(math.Round(score * 100))
	if headerCode != "" && e.OrganizationCode != "" && headerCode != e.OrganizationCode {
		confidence -= m.cfg.CodeConflictPenalty
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// suggestAlias records the header spelling as a proposed alias when it is not
// already a known name for the entity. Parenthetical abbreviations were
// stripped earlier and are reported separately, never proposed.
func (m *Matcher) suggestAlias(result *model.MatchResult, e *model.CanonicalEntity, name string) {
	if similarity.Equal(name, e.CanonicalName) || similarity.Equal(name, e.Name) {
		return
	}
	if e.HasAlias(name, similarity.Equal) {
		return
	}
	result.ProposedAlias = name
}

// splitAbbreviation separates a trailing parenthetical abbreviation from a
// header name: "Energy Commission (CEC)" yields ("Energy Commission", "CEC").
func splitAbbreviation(name string) (string, string) {
	m := parentheticalRe.FindStringSubmatch(name)
	if m == nil {
		return strings.TrimSpace(name), ""
	}
	base := strings.TrimSpace(parentheticalRe.ReplaceAllString(name, ""))
	if base == "" {
		return strings.TrimSpace(name), ""
	}
	return base, strings.TrimSpace(m[1])
}
