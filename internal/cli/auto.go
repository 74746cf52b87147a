package cli

import (
	"context"
	"log/slog"

	"github.com/openfiscal/fisc/internal/service"
)

// AutoApprover approves every proposal without prompting, for unattended
// runs over trusted input. Ambiguous matches are still rejected: picking
// among tied candidates needs a human.
type AutoApprover struct{}

// ReviewEntityChange approves everything except ambiguity resolutions.
func (AutoApprover) ReviewEntityChange(_ context.Context, proposal service.EntityProposal) (service.EntityDecision, error) {
	if proposal.Action == service.ActionResolveAmbiguous {
		slog.Warn("Rejecting ambiguous match in auto-approve mode",
			"section", proposal.Section.Header(),
			"candidates", len(proposal.Match.Candidates))
		return service.EntityDecision{Decision: service.DecisionReject}, nil
	}
	return service.EntityDecision{Decision: service.DecisionApprove}, nil
}

// ReviewBudgetChanges approves unconditionally.
func (AutoApprover) ReviewBudgetChanges(_ context.Context, _ service.BudgetProposal) (service.Decision, error) {
	return service.DecisionApprove, nil
}

var _ service.Approver = AutoApprover{}
