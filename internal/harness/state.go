package harness

import (
	"fmt"
	"slices"
)

// Stage of a harness run.
type State string

const (
	StateIdle            State = "idle"
	StateImageLoaded     State = "image-loaded"
	StateSuiteRunning    State = "suite-running"
	StateResultsCaptured State = "results-captured"
	StateNormalized      State = "normalized"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Forward transitions. Failed is reachable from every non-terminal state
// and is not listed.
var transitions = map[State]State{
	StateIdle:            StateImageLoaded,
	StateImageLoaded:     StateSuiteRunning,
	StateSuiteRunning:    StateResultsCaptured,
	StateResultsCaptured: StateNormalized,
	StateNormalized:      StateDone,
}

// Reports whether the state ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Reports whether a run may move from s to next.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return transitions[s] == next
}

// Tracks the state of one run and the path it took.
type machine struct {
	state   State   // Current state.
	history []State // Every state entered, in order, starting with Idle.
}

// Creates a machine in the Idle state.
func newMachine() *machine {
	return &machine{state: StateIdle, history: []State{StateIdle}}
}

// Moves to next, or returns [ErrInvalidTransition].
func (m *machine) transition(next State) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}

// Moves to Failed unless the run already ended.
func (m *machine) fail() {
	if !m.state.Terminal() {
		m.transition(StateFailed)
	}
}

// Returns a copy of the states entered so far.
func (m *machine) path() []State {
	return slices.Clone(m.history)
}
