package workflows

import "fmt"

// State names a node in a state machine.
type State string

// StateMachine enforces allowed state transitions.
type StateMachine struct {
	allowedTransitions map[State][]State
}

// NewStateMachine creates a state machine from an adjacency table.
func NewStateMachine(transitions map[State][]State) *StateMachine {
	allowed := make(map[State][]State, len(transitions))
	for from, to := range transitions {
		allowed[from] = append([]State(nil), to...)
	}
	return &StateMachine{allowedTransitions: allowed}
}

// CanTransition checks if a state transition is allowed
func (sm *StateMachine) CanTransition(from, to State) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition returns to when the move is allowed, or an error naming both states.
func (sm *StateMachine) Transition(from, to State) (State, error) {
	if !sm.CanTransition(from, to) {
		return from, fmt.Errorf("transition %s -> %s not allowed", from, to)
	}
	return to, nil
}

// GetAllowedTransitions returns the allowed next states for a given state
func (sm *StateMachine) GetAllowedTransitions(from State) []State {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []State{}
	}
	return append([]State(nil), allowed...)
}
