package flow

import (
	"fmt"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// State is the submission state of a page flow.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

const (
	textCodeSubmissionInFlight = "SUBMISSION_IN_FLIGHT"
	textCodeInvalidTransition  = "INVALID_FLOW_TRANSITION"
)

// ErrSubmissionInFlight rejects a second submission while one is running.
var ErrSubmissionInFlight = goerrors.New("submission already in flight", goerrors.CategoryConflict).
	WithTextCode(textCodeSubmissionInFlight).
	WithCode(goerrors.CodeConflict)

// ErrInvalidTransition is returned for transitions the machine does not allow.
var ErrInvalidTransition = goerrors.New("invalid flow state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

var transitions = map[State]map[State]struct{}{
	StateIdle: {
		StateSubmitting: {},
	},
	StateSubmitting: {
		StateSucceeded: {},
		StateFailed:    {},
	},
	StateSucceeded: {
		StateSubmitting: {},
		StateIdle:       {},
	},
	StateFailed: {
		StateSubmitting: {},
		StateIdle:       {},
	},
}

// Machine guards the state of one page flow.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns an idle machine.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loading reports whether a submission is in flight.
func (m *Machine) Loading() bool {
	return m.State() == StateSubmitting
}

// Begin enters submitting. Callers validate their input first.
func (m *Machine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSubmitting {
		return ErrSubmissionInFlight
	}
	return m.move(StateSubmitting)
}

// Succeed leaves submitting for succeeded.
func (m *Machine) Succeed() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(StateSucceeded)
}

// Fail leaves submitting for failed.
func (m *Machine) Fail() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(StateFailed)
}

// Reset returns a settled flow to idle.
func (m *Machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle {
		return nil
	}
	return m.move(StateIdle)
}

func (m *Machine) move(to State) error {
	if _, ok := transitions[m.state][to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
	}
	m.state = to
	return nil
}
