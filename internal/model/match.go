package model

// MatchStatus describes how (or whether) a section header was resolved
// against the canonical registry.
type MatchStatus string

const (
	// MatchDirect is an exact organization-code match.
	MatchDirect MatchStatus = "direct"
	// MatchMatched is a name, alias, or similarity match.
	MatchMatched MatchStatus = "matched"
	// MatchAmbiguous means two or more entities tied above the similarity
	// threshold. Callers must never silently pick one of the ties.
	MatchAmbiguous MatchStatus = "ambiguous"
	// MatchUnmatched means no registry entity qualified.
	MatchUnmatched MatchStatus = "unmatched"
)

// Candidate is one registry entity considered during fuzzy matching.
type Candidate struct {
	Entity *CanonicalEntity
	Score  float64
}

// MatchResult is the outcome of resolving one section header.
type MatchResult struct {
	// Entity is the single best match. Nil unless Status is direct or matched.
	Entity *CanonicalEntity
	// Candidates holds the tied entities when Status is ambiguous.
	Candidates []Candidate
	// ProposedAlias is a header spelling worth recording as an alias for the
	// matched entity. Empty when the header already matches a known name.
	ProposedAlias string
	// Abbreviation is a parenthetical abbreviation found in the header.
	// Tracked separately; never auto-added as an alias.
	Abbreviation string
	Status       MatchStatus
	// Confidence is 0-100: 100 direct code, 95 exact name, 85 exact alias,
	// scaled similarity for fuzzy matches.
	Confidence int
}
