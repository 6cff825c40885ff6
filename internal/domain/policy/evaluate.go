package policy

import "github.com/garyjia/expense-approval/internal/domain/entity"

// Outcome is the claim state derived from a chain's persisted steps
type Outcome struct {
	Status            entity.ClaimStatus
	CurrentApproverID string
}

// Evaluate derives the claim outcome purely from the step set. Any rejected
// step rejects the claim regardless of the rule.
func Evaluate(rule Rule, steps []*entity.ApprovalStep) Outcome {
	t := TallySteps(steps)

	if t.Rejected > 0 {
		return Outcome{Status: entity.ClaimStatusRejected}
	}
	if rule.Complete(t) {
		return Outcome{Status: entity.ClaimStatusApproved}
	}
	return Outcome{
		Status:            entity.ClaimStatusPending,
		CurrentApproverID: NextApprover(steps),
	}
}
