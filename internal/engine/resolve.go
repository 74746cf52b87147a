package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/openfiscal/fisc/internal/audit"
	"github.com/openfiscal/fisc/internal/common"
	"github.com/openfiscal/fisc/internal/model"
	"github.com/openfiscal/fisc/internal/service"
)

// resolveEntity matches a section header against the registry, routes the
// result through the approval gate, and applies any approved registry
// change (new entity, ambiguity resolution). It returns the resolved entity
// plus an approved alias for the commit step to record; the entity itself is
// not mutated here, so a later budget rejection drops the alias with the
// rest of the section. A nil entity means the section was rejected.
func (e *Engine) resolveEntity(ctx context.Context, section *model.RawSection) (*model.CanonicalEntity, string, error) {
	result := e.matcher.Match(section.HeaderCode, section.HeaderName, e.registry)

	proposal := service.EntityProposal{
		Section: section,
		Match:   result,
	}

	switch result.Status {
	case model.MatchDirect:
		proposal.Action = service.ActionUseMatch
	case model.MatchMatched:
		if result.ProposedAlias != "" {
			proposal.Action = service.ActionAddAlias
		} else {
			proposal.Action = service.ActionUseMatch
		}
	case model.MatchAmbiguous:
		proposal.Action = service.ActionResolveAmbiguous
	case model.MatchUnmatched:
		proposal.Action = service.ActionCreateEntity
		proposal.Proposed = e.draftEntity(section, result)
	}

	decision, err := e.approver.ReviewEntityChange(ctx, proposal)
	if err != nil {
		return nil, "", err
	}

	switch decision.Decision {
	case service.DecisionReject:
		e.summary.SectionsRejected++
		e.appendAudit(audit.Event{
			Kind:     audit.KindRejection,
			Document: section.SourceDocument,
			Section:  section.Header(),
			Message:  "entity change rejected",
		})
		return nil, "", nil
	case service.DecisionAbort:
		return nil, "", fmt.Errorf("%w: entity review aborted document", common.ErrRejected)
	case service.DecisionApprove:
	}

	switch proposal.Action {
	case service.ActionUseMatch:
		e.summary.EntitiesMatched++
		return result.Entity, "", nil

	case service.ActionAddAlias:
		alias := result.ProposedAlias
		if decision.Edited != nil && decision.Edited.Name != "" {
			alias = decision.Edited.Name
		}
		e.summary.EntitiesMatched++
		return result.Entity, alias, nil

	case service.ActionResolveAmbiguous:
		chosen := decision.Chosen
		if chosen == nil {
			return nil, "", fmt.Errorf("%w: ambiguity resolved without a chosen entity", common.ErrAmbiguousMatch)
		}
		e.summary.EntitiesMatched++
		return chosen, "", nil

	case service.ActionCreateEntity:
		entity := proposal.Proposed
		if decision.Edited != nil {
			entity = decision.Edited
		}
		if err := e.registerEntity(entity); err != nil {
			return nil, "", err
		}
		e.summary.EntitiesCreated++
		return entity, "", nil
	}

	return nil, "", fmt.Errorf("unhandled entity action %q", proposal.Action)
}

// draftEntity proposes a new canonical entity from an unmatched header. New
// entities attach under the root until an operator re-parents them.
func (e *Engine) draftEntity(section *model.RawSection, result *model.MatchResult) *model.CanonicalEntity {
	name := section.HeaderName
	var aliases []string
	if result.Abbreviation != "" {
		name = strings.TrimSpace(strings.TrimSuffix(name, "("+result.Abbreviation+")"))
		aliases = []string{result.Abbreviation}
	}
	return &model.CanonicalEntity{
		Name:             name,
		CanonicalName:    name,
		OrganizationCode: section.HeaderCode,
		Aliases:          aliases,
		ParentAgency:     model.RootEntityName,
		BudgetStatus:     model.StatusActive,
	}
}

// registerEntity inserts a new entity into the registry and the hierarchy,
// then revalidates the tree before the entity becomes visible to matching.
func (e *Engine) registerEntity(entity *model.CanonicalEntity) error {
	if _, exists := e.byName[entity.Name]; exists {
		return fmt.Errorf("%w: entity %q already registered", common.ErrDuplicateCode, entity.Name)
	}
	if entity.ParentAgency == "" || e.tree.Node(entity.ParentAgency) == nil {
		entity.ParentAgency = model.RootEntityName
	}

	e.tree.Insert(entity.Name)
	if err := e.tree.Attach(entity.Name, entity.ParentAgency); err != nil {
		return err
	}
	if err := e.tree.Validate(); err != nil {
		return fmt.Errorf("%w: hierarchy invalid after inserting %q: %w", common.ErrConsistency, entity.Name, err)
	}

	e.registry = append(e.registry, entity)
	e.byName[entity.Name] = entity
	e.syncTreeFields(entity.Name)
	return nil
}

// syncTreeFields copies level and subordinate count from the tree onto the
// named entity and every ancestor up to the root, since an insert changes
// counts along the whole parent chain.
func (e *Engine) syncTreeFields(name string) {
	for name != "" && name != model.RootEntityName {
		node := e.tree.Node(name)
		if node == nil {
			return
		}
		if entity, ok := e.byName[name]; ok {
			entity.OrgLevel = node.Level
			entity.SubordinateCount = node.SubordinateCount
		}
		name = node.Parent
	}
}
