package entity

// ClaimStatus is the lifecycle status of a Claim
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

// IsTerminal returns true for approved and rejected
func (s ClaimStatus) IsTerminal() bool {
	return s == ClaimStatusApproved || s == ClaimStatusRejected
}

// StepStatus is the status of a single ApprovalStep
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusApproved   StepStatus = "approved"
	StepStatusRejected   StepStatus = "rejected"
	StepStatusSuperseded StepStatus = "superseded"
)

// Decision is the value an approver submits for their step
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// IsValid returns true for approved and rejected
func (d Decision) IsValid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// StepStatus maps a decision onto the status it leaves on the step
func (d Decision) StepStatus() StepStatus {
	if d == DecisionRejected {
		return StepStatusRejected
	}
	return StepStatusApproved
}

// Expense categories accepted at submission
const (
	CategoryFood           = "Food"
	CategoryTravel         = "Travel"
	CategoryOfficeSupplies = "Office Supplies"
	CategoryTransportation = "Transportation"
	CategoryAccommodation  = "Accommodation"
	CategoryEntertainment  = "Entertainment"
	CategoryOther          = "Other"
)

// Categories lists every accepted expense category in display order
var Categories = []string{
	CategoryFood,
	CategoryTravel,
	CategoryOfficeSupplies,
	CategoryTransportation,
	CategoryAccommodation,
	CategoryEntertainment,
	CategoryOther,
}

// IsValidCategory reports whether c is one of Categories
func IsValidCategory(c string) bool {
	for _, category := range Categories {
		if category == c {
			return true
		}
	}
	return false
}
