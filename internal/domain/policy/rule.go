// Package policy resolves a company's approval policy into an ordered
// approver chain and evaluates whether a chain's steps complete a claim.
//
// Each policy kind has exactly one Rule implementation, registered in rules.
// Adding a kind means adding an implementation and a registry entry.
package policy

import (
	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// epsilon absorbs float error in approved/total >= threshold
const epsilon = 1e-9

// Rule is the completion predicate of a resolved approval chain
type Rule interface {
	Kind() entity.PolicyKind

	// Complete reports whether the tally satisfies the rule. Rejections are
	// handled before any rule is consulted.
	Complete(t Tally) bool
}

type ruleFactory func(r entity.CompletionRule) (Rule, error)

var rules = map[entity.PolicyKind]ruleFactory{
	entity.PolicyKindSequential: func(entity.CompletionRule) (Rule, error) {
		return sequentialRule{}, nil
	},
	entity.PolicyKindPercentage: func(r entity.CompletionRule) (Rule, error) {
		if err := validateThreshold(r.PercentageThreshold); err != nil {
			return nil, err
		}
		return percentageRule{threshold: r.PercentageThreshold}, nil
	},
	entity.PolicyKindSpecificApprover: func(r entity.CompletionRule) (Rule, error) {
		if r.SpecificApproverID == "" {
			return nil, apperr.Validation("specific_approver policy requires specific_approver_id")
		}
		return specificApproverRule{approverID: r.SpecificApproverID}, nil
	},
	entity.PolicyKindHybrid: func(r entity.CompletionRule) (Rule, error) {
		if err := validateThreshold(r.PercentageThreshold); err != nil {
			return nil, err
		}
		if r.SpecificApproverID == "" {
			return nil, apperr.Validation("hybrid policy requires specific_approver_id")
		}
		return hybridRule{
			percentage: percentageRule{threshold: r.PercentageThreshold},
			specific:   specificApproverRule{approverID: r.SpecificApproverID},
		}, nil
	},
}

// NewRule builds the Rule for a completion rule. An empty kind means the
// default sequential rule.
func NewRule(r entity.CompletionRule) (Rule, error) {
	if r.Kind == "" {
		r.Kind = entity.PolicyKindSequential
	}
	factory, ok := rules[r.Kind]
	if !ok {
		return nil, apperr.Validation("unknown policy kind %q", r.Kind)
	}
	return factory(r)
}

// IsKnownKind reports whether k has a registered Rule
func IsKnownKind(k entity.PolicyKind) bool {
	_, ok := rules[k]
	return ok
}

// ValidatePolicy checks a policy before it is stored
func ValidatePolicy(p *entity.ApprovalPolicy) error {
	if p.CompanyID == "" {
		return apperr.Validation("company_id is required")
	}
	if _, err := NewRule(p.CompletionRule()); err != nil {
		return err
	}

	positions := make(map[int]bool, len(p.Sequence))
	for _, s := range p.Sequence {
		if s.ApproverID == "" {
			return apperr.Validation("sequence entry at position %d has no approver", s.Position)
		}
		if s.Position < 1 {
			return apperr.Validation("sequence positions start at 1, got %d", s.Position)
		}
		if positions[s.Position] {
			return apperr.Validation("duplicate sequence position %d", s.Position)
		}
		positions[s.Position] = true
	}

	switch p.Kind {
	case entity.PolicyKindPercentage, entity.PolicyKindHybrid:
		if len(p.Sequence) == 0 && !p.ManagerIsApprover {
			return apperr.Validation("%s policy needs an approver sequence or manager_is_approver", p.Kind)
		}
	}
	return nil
}

func validateThreshold(threshold float64) error {
	if threshold <= 0 || threshold > 1 {
		return apperr.Validation("percentage_threshold must be in (0, 1], got %g", threshold)
	}
	return nil
}

// sequentialRule completes once no step is pending
type sequentialRule struct{}

func (sequentialRule) Kind() entity.PolicyKind { return entity.PolicyKindSequential }

func (sequentialRule) Complete(t Tally) bool {
	return t.Total > 0 && t.Pending == 0 && t.Rejected == 0
}

type percentageRule struct {
	threshold float64
}

func (percentageRule) Kind() entity.PolicyKind { return entity.PolicyKindPercentage }

func (r percentageRule) Complete(t Tally) bool {
	if t.Total == 0 {
		return false
	}
	return float64(t.Approved)/float64(t.Total)+epsilon >= r.threshold
}

// specificApproverRule completes on the designated approver's approval and
// otherwise behaves like sequentialRule.
type specificApproverRule struct {
	approverID string
}

func (specificApproverRule) Kind() entity.PolicyKind { return entity.PolicyKindSpecificApprover }

func (r specificApproverRule) Complete(t Tally) bool {
	return t.ApprovedBy[r.approverID] || sequentialRule{}.Complete(t)
}

type hybridRule struct {
	percentage percentageRule
	specific   specificApproverRule
}

func (hybridRule) Kind() entity.PolicyKind { return entity.PolicyKindHybrid }

func (r hybridRule) Complete(t Tally) bool {
	return r.percentage.Complete(t) || r.specific.Complete(t)
}
