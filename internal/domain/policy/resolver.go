package policy

import (
	"sort"

	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Chain is a resolved approval chain: approvers in position order (index 0
// is position 1) and the completion rule.
type Chain struct {
	ApproverIDs []string
	Rule        Rule
	Completion  entity.CompletionRule
	PolicyID    int64
}

// Steps materializes the chain as pending approval steps
func (c *Chain) Steps(claimID int64) []*entity.ApprovalStep {
	steps := make([]*entity.ApprovalStep, 0, len(c.ApproverIDs))
	for i, approverID := range c.ApproverIDs {
		steps = append(steps, &entity.ApprovalStep{
			ClaimID:    claimID,
			ApproverID: approverID,
			Status:     entity.StepStatusPending,
			Position:   i + 1,
		})
	}
	return steps
}

// Resolve builds the approval chain for a submitting employee. A nil policy
// means the company has none configured: a single step for the employee's
// direct manager.
//
// The submitter is never placed on their own chain and repeated approvers
// keep their first position.
func Resolve(employee *entity.User, p *entity.ApprovalPolicy) (*Chain, error) {
	completion := entity.CompletionRule{Kind: entity.PolicyKindSequential}
	var policyID int64
	var sequence []string
	var managerFirst bool

	if p != nil {
		completion = p.CompletionRule()
		policyID = p.ID
		sequence = orderedSequence(p.Sequence)
		managerFirst = p.ManagerIsApprover
	}

	rule, err := NewRule(completion)
	if err != nil {
		return nil, err
	}

	var candidates []string
	if managerFirst {
		candidates = append(candidates, employee.ManagerID)
	}
	if len(sequence) > 0 {
		candidates = append(candidates, sequence...)
	} else if !managerFirst {
		candidates = append(candidates, employee.ManagerID)
	}
	if completion.SpecificApproverID != "" {
		candidates = append(candidates, completion.SpecificApproverID)
	}

	approvers := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		if id == "" || id == employee.ID || seen[id] {
			continue
		}
		seen[id] = true
		approvers = append(approvers, id)
	}

	if len(approvers) == 0 {
		return nil, apperr.Validation("no approver could be resolved for employee %s", employee.ID)
	}

	return &Chain{
		ApproverIDs: approvers,
		Rule:        rule,
		Completion:  completion,
		PolicyID:    policyID,
	}, nil
}

func orderedSequence(seq []*entity.ApprovalSequence) []string {
	sorted := append([]*entity.ApprovalSequence(nil), seq...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ApproverID < sorted[j].ApproverID
	})

	ids := make([]string, 0, len(sorted))
	for _, s := range sorted {
		ids = append(ids, s.ApproverID)
	}
	return ids
}
