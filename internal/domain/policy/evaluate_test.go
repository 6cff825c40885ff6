package policy

import (
	"testing"

	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steps(statuses ...entity.StepStatus) []*entity.ApprovalStep {
	out := make([]*entity.ApprovalStep, 0, len(statuses))
	for i, st := range statuses {
		out = append(out, &entity.ApprovalStep{
			ApproverID: string(rune('a' + i)),
			Position:   i + 1,
			Status:     st,
		})
	}
	return out
}

const (
	pending  = entity.StepStatusPending
	approved = entity.StepStatusApproved
	rejected = entity.StepStatusRejected
)

func TestEvaluate_SequentialAdvancesCurrentApprover(t *testing.T) {
	rule, err := NewRule(entity.CompletionRule{})
	require.NoError(t, err)

	out := Evaluate(rule, steps(pending, pending, pending))
	assert.Equal(t, Outcome{Status: entity.ClaimStatusPending, CurrentApproverID: "a"}, out)

	out = Evaluate(rule, steps(approved, pending, pending))
	assert.Equal(t, Outcome{Status: entity.ClaimStatusPending, CurrentApproverID: "b"}, out)

	out = Evaluate(rule, steps(approved, approved, approved))
	assert.Equal(t, Outcome{Status: entity.ClaimStatusApproved}, out)
}

func TestEvaluate_RejectionWinsOverRule(t *testing.T) {
	rule, err := NewRule(entity.CompletionRule{Kind: entity.PolicyKindPercentage, PercentageThreshold: 0.5})
	require.NoError(t, err)

	out := Evaluate(rule, steps(approved, approved, rejected, pending))
	assert.Equal(t, entity.ClaimStatusRejected, out.Status)
	assert.Empty(t, out.CurrentApproverID)
}

func TestEvaluate_PercentageThreeOfFive(t *testing.T) {
	rule, err := NewRule(entity.CompletionRule{Kind: entity.PolicyKindPercentage, PercentageThreshold: 0.6})
	require.NoError(t, err)

	out := Evaluate(rule, steps(approved, approved, pending, pending, pending))
	assert.Equal(t, entity.ClaimStatusPending, out.Status)
	assert.Equal(t, "c", out.CurrentApproverID)

	out = Evaluate(rule, steps(approved, pending, approved, pending, approved))
	assert.Equal(t, entity.ClaimStatusApproved, out.Status)
}

func TestEvaluate_SpecificApprover(t *testing.T) {
	rule, err := NewRule(entity.CompletionRule{Kind: entity.PolicyKindSpecificApprover, SpecificApproverID: "c"})
	require.NoError(t, err)

	out := Evaluate(rule, steps(pending, pending, approved))
	assert.Equal(t, entity.ClaimStatusApproved, out.Status)
}

func TestNextApprover_TieBreaksOnApproverID(t *testing.T) {
	s := []*entity.ApprovalStep{
		{ApproverID: "zed", Position: 1, Status: pending},
		{ApproverID: "amy", Position: 1, Status: pending},
		{ApproverID: "bob", Position: 0, Status: approved},
	}

	assert.Equal(t, "amy", NextApprover(s))
	assert.Equal(t, "zed", s[0].ApproverID, "input order untouched")
}

func TestTallySteps(t *testing.T) {
	tally := TallySteps(steps(approved, rejected, pending, entity.StepStatusSuperseded))

	assert.Equal(t, 4, tally.Total)
	assert.Equal(t, 1, tally.Approved)
	assert.Equal(t, 1, tally.Rejected)
	assert.Equal(t, 1, tally.Pending)
	assert.Equal(t, 1, tally.Superseded)
	assert.True(t, tally.ApprovedBy["a"])
}
