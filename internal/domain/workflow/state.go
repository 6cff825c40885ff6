// Package workflow holds the claim and approval-step lifecycles. Every status
// change the decision processor makes is checked against these tables first.
package workflow

import (
	"errors"

	"github.com/garyjia/expense-approval/internal/domain/apperr"
)

// State is a lifecycle state shared by claims and approval steps
type State string

const (
	StatePending    State = "pending"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
	StateSuperseded State = "superseded"
)

// Trigger is what moves a claim or step out of its current state
type Trigger string

const (
	TriggerApprove   Trigger = "approve"
	TriggerReject    Trigger = "reject"
	TriggerSupersede Trigger = "supersede"
)

var (
	// ErrInvalidTransition is a Conflict: the target already left the state
	// the caller expected
	ErrInvalidTransition = &apperr.Error{Kind: apperr.KindConflict, Message: "invalid state transition"}

	// ErrInvalidState means a stored status is outside the lifecycle
	ErrInvalidState = errors.New("invalid lifecycle state")
)

// IsTerminal returns true once nothing may leave the state
func (s State) IsTerminal() bool {
	return s != StatePending && s.IsValid()
}

// IsValid returns true if the state is a known lifecycle state
func (s State) IsValid() bool {
	switch s {
	case StatePending, StateApproved, StateRejected, StateSuperseded:
		return true
	}
	return false
}
