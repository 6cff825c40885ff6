package policy

import (
	"sort"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Tally counts a chain's steps by status
type Tally struct {
	Total      int
	Approved   int
	Rejected   int
	Pending    int
	Superseded int
	ApprovedBy map[string]bool
}

// TallySteps counts steps by status
func TallySteps(steps []*entity.ApprovalStep) Tally {
	t := Tally{Total: len(steps), ApprovedBy: make(map[string]bool)}
	for _, s := range steps {
		switch s.Status {
		case entity.StepStatusApproved:
			t.Approved++
			t.ApprovedBy[s.ApproverID] = true
		case entity.StepStatusRejected:
			t.Rejected++
		case entity.StepStatusPending:
			t.Pending++
		case entity.StepStatusSuperseded:
			t.Superseded++
		}
	}
	return t
}

// SortSteps orders steps by ascending position, ties by ascending approver id.
// The input slice is not modified.
func SortSteps(steps []*entity.ApprovalStep) []*entity.ApprovalStep {
	sorted := append([]*entity.ApprovalStep(nil), steps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ApproverID < sorted[j].ApproverID
	})
	return sorted
}

// NextApprover returns the approver of the lowest-position pending step, or
// "" when nothing is pending.
func NextApprover(steps []*entity.ApprovalStep) string {
	for _, s := range SortSteps(steps) {
		if s.IsPending() {
			return s.ApproverID
		}
	}
	return ""
}
