package entity

import "time"

// Claim is a submitted expense awaiting or having received an approval outcome.
// CurrentApproverID is derived from the step set and is recomputed on every
// decision; it is never consulted to decide completion.
type Claim struct {
	ID                      int64       `json:"id"`
	EmployeeID              string      `json:"employee_id"`
	CompanyID               string      `json:"company_id"`
	Amount                  float64     `json:"amount"`
	Currency                string      `json:"currency"`
	AmountInCompanyCurrency float64     `json:"amount_in_company_currency"`
	CompanyCurrency         string      `json:"company_currency"`
	ExchangeRate            float64     `json:"exchange_rate"`
	Category                string      `json:"category"`
	Description             string      `json:"description"`
	Merchant                string      `json:"merchant,omitempty"`
	ClaimDate               time.Time   `json:"claim_date"`
	Status                  ClaimStatus `json:"status"`
	CurrentApproverID       string      `json:"current_approver_id,omitempty"`
	PolicyID                int64       `json:"policy_id,omitempty"`
	SubmittedAt             time.Time   `json:"submitted_at"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`

	// Rule is the completion rule resolved at submission. Later policy
	// edits never change how an in-flight claim completes.
	Rule CompletionRule `json:"rule"`

	Items []*ClaimItem    `json:"items,omitempty"`
	Steps []*ApprovalStep `json:"steps,omitempty"`
}

// IsTerminal reports whether the claim has reached approved or rejected.
func (c *Claim) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// ClaimItem is an optional line item of a claim
type ClaimItem struct {
	ID      int64   `json:"id"`
	ClaimID int64   `json:"claim_id"`
	Name    string  `json:"name"`
	Amount  float64 `json:"amount"`
}

// ApprovalStep is one approver's slot in a claim's approval chain.
type ApprovalStep struct {
	ID         int64      `json:"id"`
	ClaimID    int64      `json:"claim_id"`
	ApproverID string     `json:"approver_id"`
	Status     StepStatus `json:"status"`
	Position   int        `json:"position"`
	Comment    string     `json:"comment,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsPending reports whether the step can still be decided
func (s *ApprovalStep) IsPending() bool {
	return s.Status == StepStatusPending
}
