package policy

import (
	"testing"

	"github.com/garyjia/expense-approval/internal/domain/apperr"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRule_Kinds(t *testing.T) {
	tests := []struct {
		name    string
		rule    entity.CompletionRule
		want    entity.PolicyKind
		wantErr bool
	}{
		{"empty kind defaults to sequential", entity.CompletionRule{}, entity.PolicyKindSequential, false},
		{"sequential", entity.CompletionRule{Kind: entity.PolicyKindSequential}, entity.PolicyKindSequential, false},
		{"percentage", entity.CompletionRule{Kind: entity.PolicyKindPercentage, PercentageThreshold: 0.6}, entity.PolicyKindPercentage, false},
		{"percentage full", entity.CompletionRule{Kind: entity.PolicyKindPercentage, PercentageThreshold: 1}, entity.PolicyKindPercentage, false},
		{"percentage zero", entity.CompletionRule{Kind: entity.PolicyKindPercentage}, "", true},
		{"percentage over one", entity.CompletionRule{Kind: entity.PolicyKindPercentage, PercentageThreshold: 60}, "", true},
		{"specific", entity.CompletionRule{Kind: entity.PolicyKindSpecificApprover, SpecificApproverID: "cfo"}, entity.PolicyKindSpecificApprover, false},
		{"specific without approver", entity.CompletionRule{Kind: entity.PolicyKindSpecificApprover}, "", true},
		{"hybrid", entity.CompletionRule{Kind: entity.PolicyKindHybrid, PercentageThreshold: 0.5, SpecificApproverID: "cfo"}, entity.PolicyKindHybrid, false},
		{"hybrid without approver", entity.CompletionRule{Kind: entity.PolicyKindHybrid, PercentageThreshold: 0.5}, "", true},
		{"unknown", entity.CompletionRule{Kind: "quorum"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewRule(tt.rule)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperr.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Kind())
		})
	}
}

func TestPercentageRule_ThreeOfFive(t *testing.T) {
	rule, err := NewRule(entity.CompletionRule{Kind: entity.PolicyKindPercentage, PercentageThreshold: 0.6})
	require.NoError(t, err)

	assert.False(t, rule.Complete(Tally{Total: 5, Approved: 2, Pending: 3}))
	assert.True(t, rule.Complete(Tally{Total: 5, Approved: 3, Pending: 2}))
}

func TestPercentageRule_ThresholdFloatEdge(t *testing.T) {
	// 0.7 * 10 is not exactly 7 in binary floating point
	rule, err := NewRule(entity.CompletionRule{Kind: entity.PolicyKindPercentage, PercentageThreshold: 0.7})
	require.NoError(t, err)

	assert.True(t, rule.Complete(Tally{Total: 10, Approved: 7, Pending: 3}))
	assert.False(t, rule.Complete(Tally{Total: 10, Approved: 6, Pending: 4}))
}

func TestSequentialRule(t *testing.T) {
	rule, err := NewRule(entity.CompletionRule{})
	require.NoError(t, err)

	assert.False(t, rule.Complete(Tally{}))
	assert.False(t, rule.Complete(Tally{Total: 3, Approved: 2, Pending: 1}))
	assert.True(t, rule.Complete(Tally{Total: 3, Approved: 3}))
}

func TestSpecificApproverRule(t *testing.T) {
	rule, err := NewRule(entity.CompletionRule{Kind: entity.PolicyKindSpecificApprover, SpecificApproverID: "cfo"})
	require.NoError(t, err)

	assert.True(t, rule.Complete(Tally{Total: 3, Approved: 1, Pending: 2, ApprovedBy: map[string]bool{"cfo": true}}))
	assert.False(t, rule.Complete(Tally{Total: 3, Approved: 1, Pending: 2, ApprovedBy: map[string]bool{"mgr": true}}))
	assert.True(t, rule.Complete(Tally{Total: 2, Approved: 2, ApprovedBy: map[string]bool{"mgr": true, "dir": true}}))
}

func TestHybridRule(t *testing.T) {
	rule, err := NewRule(entity.CompletionRule{Kind: entity.PolicyKindHybrid, PercentageThreshold: 0.5, SpecificApproverID: "cfo"})
	require.NoError(t, err)

	assert.True(t, rule.Complete(Tally{Total: 4, Approved: 1, Pending: 3, ApprovedBy: map[string]bool{"cfo": true}}), "specific approver alone")
	assert.True(t, rule.Complete(Tally{Total: 4, Approved: 2, Pending: 2, ApprovedBy: map[string]bool{"a": true, "b": true}}), "threshold alone")
	assert.False(t, rule.Complete(Tally{Total: 4, Approved: 1, Pending: 3, ApprovedBy: map[string]bool{"a": true}}))
}

func TestIsKnownKind(t *testing.T) {
	assert.True(t, IsKnownKind(entity.PolicyKindHybrid))
	assert.False(t, IsKnownKind("quorum"))
}

func TestValidatePolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  *entity.ApprovalPolicy
		wantErr bool
	}{
		{"sequential with sequence", &entity.ApprovalPolicy{CompanyID: "acme", Kind: entity.PolicyKindSequential, Sequence: seq("a", "b")}, false},
		{"sequential empty falls back to manager", &entity.ApprovalPolicy{CompanyID: "acme", Kind: entity.PolicyKindSequential}, false},
		{"missing company", &entity.ApprovalPolicy{Kind: entity.PolicyKindSequential}, true},
		{"percentage needs approvers", &entity.ApprovalPolicy{CompanyID: "acme", Kind: entity.PolicyKindPercentage, PercentageThreshold: 0.5}, true},
		{"percentage with manager", &entity.ApprovalPolicy{CompanyID: "acme", Kind: entity.PolicyKindPercentage, PercentageThreshold: 0.5, ManagerIsApprover: true}, false},
		{"duplicate positions", &entity.ApprovalPolicy{CompanyID: "acme", Kind: entity.PolicyKindSequential, Sequence: []*entity.ApprovalSequence{{Position: 1, ApproverID: "a"}, {Position: 1, ApproverID: "b"}}}, true},
		{"blank approver", &entity.ApprovalPolicy{CompanyID: "acme", Kind: entity.PolicyKindSequential, Sequence: []*entity.ApprovalSequence{{Position: 1}}}, true},
		{"zero position", &entity.ApprovalPolicy{CompanyID: "acme", Kind: entity.PolicyKindSequential, Sequence: []*entity.ApprovalSequence{{Position: 0, ApproverID: "a"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePolicy(tt.policy)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
