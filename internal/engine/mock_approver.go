package engine

import (
	"context"

	"github.com/openfiscal/fisc/internal/service"
)

// MockApprover is a scripted approval gate for tests. With no script it
// approves everything; for ambiguous matches it picks the first candidate
// unless ChooseFn overrides the choice.
type MockApprover struct {
	// EntityDecisions is consumed in order by ReviewEntityChange; when
	// exhausted, approvals continue.
	EntityDecisions []service.EntityDecision
	// BudgetDecisions is consumed in order by ReviewBudgetChanges.
	BudgetDecisions []service.Decision
	// ChooseFn, when set, resolves ambiguous proposals.
	ChooseFn func(proposal service.EntityProposal) *service.EntityDecision

	EntityCalls []service.EntityProposal
	BudgetCalls []service.BudgetProposal
}

// ReviewEntityChange returns the next scripted decision, or an approval.
func (m *MockApprover) ReviewEntityChange(_ context.Context, proposal service.EntityProposal) (service.EntityDecision, error) {
	m.EntityCalls = append(m.EntityCalls, proposal)

	if len(m.EntityDecisions) > 0 {
		d := m.EntityDecisions[0]
		m.EntityDecisions = m.EntityDecisions[1:]
		return d, nil
	}
	if proposal.Action == service.ActionResolveAmbiguous {
		if m.ChooseFn != nil {
			if d := m.ChooseFn(proposal); d != nil {
				return *d, nil
			}
		}
		return service.EntityDecision{
			Decision: service.DecisionApprove,
			Chosen:   proposal.Match.Candidates[0].Entity,
		}, nil
	}
	return service.EntityDecision{Decision: service.DecisionApprove}, nil
}

// ReviewBudgetChanges returns the next scripted decision, or an approval.
func (m *MockApprover) ReviewBudgetChanges(_ context.Context, proposal service.BudgetProposal) (service.Decision, error) {
	m.BudgetCalls = append(m.BudgetCalls, proposal)

	if len(m.BudgetDecisions) > 0 {
		d := m.BudgetDecisions[0]
		m.BudgetDecisions = m.BudgetDecisions[1:]
		return d, nil
	}
	return service.DecisionApprove, nil
}
