package entity

import "time"

// PolicyKind selects how a policy decides that a claim is fully approved
type PolicyKind string

const (
	PolicyKindSequential       PolicyKind = "sequential"
	PolicyKindPercentage       PolicyKind = "percentage"
	PolicyKindSpecificApprover PolicyKind = "specific_approver"
	PolicyKindHybrid           PolicyKind = "hybrid"
)

// ApprovalPolicy is a company-level approval configuration.
// PercentageThreshold is a fraction in (0, 1] and only meaningful for
// percentage and hybrid policies.
type ApprovalPolicy struct {
	ID                  int64               `json:"id"`
	CompanyID           string              `json:"company_id"`
	Name                string              `json:"name"`
	Kind                PolicyKind          `json:"kind"`
	PercentageThreshold float64             `json:"percentage_threshold,omitempty"`
	SpecificApproverID  string              `json:"specific_approver_id,omitempty"`
	ManagerIsApprover   bool                `json:"manager_is_approver"`
	Sequence            []*ApprovalSequence `json:"sequence"`
	CreatedAt           time.Time           `json:"created_at"`
}

// CompletionRule returns the policy's completion rule
func (p *ApprovalPolicy) CompletionRule() CompletionRule {
	return CompletionRule{
		Kind:                p.Kind,
		PercentageThreshold: p.PercentageThreshold,
		SpecificApproverID:  p.SpecificApproverID,
	}
}

// ApprovalSequence is one ordered entry of a policy's approver list
type ApprovalSequence struct {
	ID         int64  `json:"id"`
	PolicyID   int64  `json:"policy_id"`
	Position   int    `json:"position"`
	ApproverID string `json:"approver_id"`
}

// CompletionRule is the part of a policy that decides when a claim is fully
// approved. It is snapshotted onto each claim at submission.
type CompletionRule struct {
	Kind                PolicyKind `json:"kind"`
	PercentageThreshold float64    `json:"percentage_threshold,omitempty"`
	SpecificApproverID  string     `json:"specific_approver_id,omitempty"`
}
