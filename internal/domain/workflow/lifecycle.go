package workflow

import (
	"fmt"
	"sort"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

type edge struct {
	from State
	on   Trigger
	to   State
}

// Lifecycle is an immutable transition table
type Lifecycle struct {
	name   string
	states map[State]bool
	next   map[State]map[Trigger]State
}

func newLifecycle(name string, states []State, edges ...edge) *Lifecycle {
	l := &Lifecycle{
		name:   name,
		states: make(map[State]bool, len(states)),
		next:   make(map[State]map[Trigger]State),
	}
	for _, s := range states {
		l.states[s] = true
	}
	for _, e := range edges {
		if !l.states[e.from] || !l.states[e.to] {
			panic(fmt.Sprintf("%s lifecycle: edge %s -%s-> %s uses an unknown state", name, e.from, e.on, e.to))
		}
		if l.next[e.from] == nil {
			l.next[e.from] = make(map[Trigger]State)
		}
		l.next[e.from][e.on] = e.to
	}
	return l
}

// Claims: pending → approved | rejected
var Claims = newLifecycle("claim",
	[]State{StatePending, StateApproved, StateRejected},
	edge{StatePending, TriggerApprove, StateApproved},
	edge{StatePending, TriggerReject, StateRejected},
)

// Steps: pending → approved | rejected | superseded
var Steps = newLifecycle("step",
	[]State{StatePending, StateApproved, StateRejected, StateSuperseded},
	edge{StatePending, TriggerApprove, StateApproved},
	edge{StatePending, TriggerReject, StateRejected},
	edge{StatePending, TriggerSupersede, StateSuperseded},
)

// Next returns the state trigger leads to from from
func (l *Lifecycle) Next(from State, trigger Trigger) (State, error) {
	if !l.states[from] {
		return from, fmt.Errorf("%w: %s status %q", ErrInvalidState, l.name, from)
	}
	to, ok := l.next[from][trigger]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s a %s that is %s", ErrInvalidTransition, trigger, l.name, from)
	}
	return to, nil
}

// Triggers lists what may fire from state, sorted
func (l *Lifecycle) Triggers(from State) []Trigger {
	out := make([]Trigger, 0, len(l.next[from]))
	for t := range l.next[from] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TriggerFor maps an approver's decision to its trigger
func TriggerFor(decision entity.Decision) Trigger {
	if decision == entity.DecisionRejected {
		return TriggerReject
	}
	return TriggerApprove
}

// AdvanceClaim validates a claim transition and returns the new status
func AdvanceClaim(status entity.ClaimStatus, trigger Trigger) (entity.ClaimStatus, error) {
	to, err := Claims.Next(State(status), trigger)
	return entity.ClaimStatus(to), err
}

// AdvanceStep validates a step transition and returns the new status
func AdvanceStep(status entity.StepStatus, trigger Trigger) (entity.StepStatus, error) {
	to, err := Steps.Next(State(status), trigger)
	return entity.StepStatus(to), err
}
